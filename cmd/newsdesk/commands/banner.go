package commands

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/teranos/newsdesk/am"
	"github.com/teranos/newsdesk/sym"
	"github.com/teranos/newsdesk/version"
)

// printStartupBanner prints the server's startup summary
func printStartupBanner(cfg *am.Config, port int, dbPath, configPath string, workers int) {
	info := version.Get()

	pterm.DefaultHeader.WithFullWidth().Printfln("%s newsdesk %s", sym.Enrich, info.Version)

	if configPath == "" {
		configPath = "(defaults and environment only)"
	}
	rows := [][]string{
		{"Version", fmt.Sprintf("%s (commit %s)", info.Version, info.Short())},
		{"Listening", fmt.Sprintf("http://localhost:%d", port)},
		{"Database", dbPath},
		{"Articles", cfg.Articles.Driver},
		{"Config", configPath},
		{"Model", cfg.OpenRouter.Model},
		{sym.Pulse + " Workers", fmt.Sprintf("%d (batch %d, %dms between items)", workers, cfg.Pulse.BatchSize, cfg.Pulse.ItemDelayMS)},
		{"Actors", fmt.Sprintf("%d", len(cfg.Auth.Actors))},
	}
	_ = pterm.DefaultTable.WithData(rows).Render()
	pterm.Println()
	pterm.Info.Println("Press Ctrl+C to stop")
}
