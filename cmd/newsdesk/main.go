package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/newsdesk/cmd/newsdesk/commands"
	"github.com/teranos/newsdesk/logger"
)

var rootCmd = &cobra.Command{
	Use:   "newsdesk",
	Short: "newsdesk - editorial enrichment jobs for the article store",
	Long: `newsdesk - generates editorial context for articles in resumable background jobs.

A job enumerates the articles matching a filter, then asks the completion
service for background, why-it-matters and what-to-watch notes one article at a
time, checkpointing progress after every micro-batch.

Available commands:
  server - Run the HTTP API and the job worker pool
  enrich - Preview, start, inspect and cancel enrichment jobs
  db     - Manage the newsdesk database
  am     - Manage configuration ("I am")
  usage  - Show completion usage

Examples:
  newsdesk server                         # Serve the API and run queued jobs
  newsdesk enrich preview art-123         # Generate context without saving it
  newsdesk enrich start --category city   # Queue a job over every city article
  newsdesk enrich ls                      # List recent jobs`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		if err := logger.InitializeWithLevel(jsonLogs, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	rootCmd.AddCommand(commands.ServerCmd)
	rootCmd.AddCommand(commands.EnrichCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.UsageCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
