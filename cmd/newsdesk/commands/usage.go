package commands

import (
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/newsdesk/ai/tracker"
	"github.com/teranos/newsdesk/errors"
	"github.com/teranos/newsdesk/sym"
)

// UsageCmd reports completion usage recorded by the OpenRouter client
var UsageCmd = &cobra.Command{
	Use:   "usage",
	Short: sym.Usage + " Show completion usage",
	Long: sym.Usage + ` usage - Show completion requests and tokens

Examples:
  newsdesk usage                # Last 24 hours
  newsdesk usage --since 7d     # Last week`,
	RunE: runUsage,
}

var usageSince string

func init() {
	UsageCmd.Flags().StringVar(&usageSince, "since", "24h", "Window to report, as a duration (90m, 24h) or days (7d)")
}

func runUsage(cmd *cobra.Command, args []string) error {
	window, err := parseWindow(usageSince)
	if err != nil {
		return err
	}
	since := time.Now().Add(-window)

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	t := tracker.NewUsageTracker(database)
	stats, err := t.GetUsageStats(since)
	if err != nil {
		return err
	}
	breakdown, err := t.GetModelBreakdown(since)
	if err != nil {
		return err
	}

	pterm.DefaultSection.Printfln("%s Usage since %s", sym.Usage, since.Local().Format("2006-01-02 15:04"))
	pterm.Printfln("  Requests:     %d (%d successful, %.1f%%)", stats.TotalRequests, stats.SuccessfulRequests, stats.SuccessRate*100)
	pterm.Printfln("  Tokens:       %d", stats.TotalTokens)
	pterm.Printfln("  Models:       %d", stats.UniqueModels)

	if len(breakdown) == 0 {
		return nil
	}
	rows := [][]string{{"MODEL", "PROVIDER", "REQUESTS", "FAILED", "TOKENS"}}
	for _, mb := range breakdown {
		rows = append(rows, []string{
			mb.ModelName,
			mb.ModelProvider,
			strconv.Itoa(mb.RequestCount),
			strconv.Itoa(mb.FailedCount),
			strconv.Itoa(mb.TotalTokens),
		})
	}
	pterm.Println()
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// parseWindow accepts Go durations plus a whole-day "Nd" form
func parseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, errors.Newf("invalid window %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, errors.WithHint(errors.Newf("invalid window %q", s), "Use a duration like 90m or 24h, or days like 7d")
	}
	return d, nil
}
