package commands

import (
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/newsdesk/am"
	"github.com/teranos/newsdesk/db"
	"github.com/teranos/newsdesk/errors"
	"github.com/teranos/newsdesk/logger"
	"github.com/teranos/newsdesk/pulse/async"
	"github.com/teranos/newsdesk/sym"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Manage the newsdesk database",
	Long: sym.DB + ` db - Manage the newsdesk database

Examples:
  newsdesk db migrate             # Apply pending migrations
  newsdesk db stats               # Show job counts by status`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	RunE:  runDbMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job counts by status",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	path, err := am.GetDatabasePath()
	if err != nil {
		return errors.Wrap(err, "failed to get database path")
	}

	database, err := db.Open(path, logger.Logger)
	if err != nil {
		return err
	}
	defer database.Close()

	applied, err := db.MigrateCount(database, logger.Logger)
	if err != nil {
		return err
	}
	if applied == 0 {
		pterm.Info.Printfln("%s %s is up to date", sym.DB, path)
		return nil
	}
	pterm.Success.Printfln("%s Applied %d migration(s) to %s", sym.DB, applied, path)
	return nil
}

func runDbStats(cmd *cobra.Command, args []string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	stats, err := async.NewQueue(database).GetStats()
	if err != nil {
		return err
	}

	rows := [][]string{
		{"STATUS", "JOBS"},
		{sym.StatusGlyph("queued") + " queued", strconv.Itoa(stats.Queued)},
		{sym.StatusGlyph("processing") + " processing", strconv.Itoa(stats.Processing)},
		{sym.StatusGlyph("completed") + " completed", strconv.Itoa(stats.Completed)},
		{sym.StatusGlyph("cancelled") + " cancelled", strconv.Itoa(stats.Cancelled)},
		{sym.StatusGlyph("failed") + " failed", strconv.Itoa(stats.Failed)},
		{"total", strconv.Itoa(stats.Total)},
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
