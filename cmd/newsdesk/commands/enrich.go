package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/newsdesk/am"
	"github.com/teranos/newsdesk/articles"
	"github.com/teranos/newsdesk/auth"
	"github.com/teranos/newsdesk/errors"
	"github.com/teranos/newsdesk/pulse/async"
	"github.com/teranos/newsdesk/sym"
)

// DefaultOperatorActor is the actor recorded on jobs started from the CLI
const DefaultOperatorActor = "operator@local"

// EnrichCmd groups the editorial-context job commands
var EnrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: sym.Enrich + " Generate editorial context for articles",
	Long: sym.Enrich + ` enrich - Generate editorial context for articles

Commands act directly on the database as a local operator with the admin role.
Jobs started here are executed by a running 'newsdesk server'.

Examples:
  newsdesk enrich preview art-123
  newsdesk enrich start --status published --since 2025-01-01
  newsdesk enrich status 6f1c...
  newsdesk enrich cancel 6f1c...
  newsdesk enrich ls --status processing`,
}

var enrichPreviewCmd = &cobra.Command{
	Use:   "preview <article-id>",
	Short: "Generate context for one article without saving it",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnrichPreview,
}

var enrichStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Queue a job over every article matching the filter",
	RunE:  runEnrichStart,
}

var enrichStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show a job's progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnrichStatus,
}

var enrichCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Stop a job at its next batch boundary",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnrichCancel,
}

var enrichLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List recent jobs",
	RunE:    runEnrichLs,
}

var (
	enrichActor    string
	enrichJSON     bool
	filterStatus   string
	filterCategory string
	filterSince    string
	filterUntil    string
	lsStatus       string
	lsLimit        int
)

func init() {
	EnrichCmd.PersistentFlags().StringVar(&enrichActor, "actor", DefaultOperatorActor, "Actor recorded on jobs and in logs")
	EnrichCmd.PersistentFlags().BoolVar(&enrichJSON, "json", false, "Print results as JSON")

	enrichStartCmd.Flags().StringVar(&filterStatus, "status", "", "Only articles with this status (draft, published, archived)")
	enrichStartCmd.Flags().StringVar(&filterCategory, "category", "", "Only articles in this category")
	enrichStartCmd.Flags().StringVar(&filterSince, "since", "", "Only articles published at or after this date (YYYY-MM-DD or RFC 3339)")
	enrichStartCmd.Flags().StringVar(&filterUntil, "until", "", "Only articles published before this date (YYYY-MM-DD or RFC 3339)")

	enrichLsCmd.Flags().StringVar(&lsStatus, "status", "", "Only jobs with this status")
	enrichLsCmd.Flags().IntVar(&lsLimit, "limit", 20, "Maximum jobs to list")

	EnrichCmd.AddCommand(enrichPreviewCmd)
	EnrichCmd.AddCommand(enrichStartCmd)
	EnrichCmd.AddCommand(enrichStatusCmd)
	EnrichCmd.AddCommand(enrichCancelCmd)
	EnrichCmd.AddCommand(enrichLsCmd)
}

// withEnrichment opens the database and controller for one command run
func withEnrichment(fn func(ctx context.Context, e *enrichment) error) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	e, err := newEnrichment(ctx, cfg, database, nil, nil)
	if err != nil {
		return err
	}
	defer e.Close()

	return fn(operatorContext(ctx, enrichActor), e)
}

// operatorContext carries the local operator as an admin actor
func operatorContext(ctx context.Context, actorID string) context.Context {
	if strings.TrimSpace(actorID) == "" {
		actorID = DefaultOperatorActor
	}
	return auth.WithActor(ctx, &auth.Actor{ID: actorID, Admin: true})
}

func runEnrichPreview(cmd *cobra.Command, args []string) error {
	return withEnrichment(func(ctx context.Context, e *enrichment) error {
		if !e.client.IsConfigured() {
			return errors.WithHint(errors.New("openrouter.api_key is not set"),
				"Set NEWSDESK_OPENROUTER_API_KEY or OPENROUTER_API_KEY")
		}

		spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Generating context for %s with %s...", args[0], e.client.Model()))
		result, err := e.controller.Preview(ctx, args[0])
		if err != nil {
			spinner.Fail(err.Error())
			return err
		}
		spinner.Success("Preview ready (not saved)")

		if enrichJSON {
			return printJSON(result)
		}
		printContext("Generated", result.Result)
		if result.ExistingValue != nil {
			printContext("Currently stored", result.ExistingValue)
		} else {
			pterm.Info.Println("The article has no stored editorial context")
		}
		return nil
	})
}

func runEnrichStart(cmd *cobra.Command, args []string) error {
	filter, err := parseFilter(filterStatus, filterCategory, filterSince, filterUntil)
	if err != nil {
		return err
	}

	return withEnrichment(func(ctx context.Context, e *enrichment) error {
		result, err := e.controller.Start(ctx, filter)
		if err != nil {
			return err
		}
		if enrichJSON {
			return printJSON(result)
		}
		if result.TotalItems == 0 {
			pterm.Warning.Printfln("No articles matched; job %s was recorded as completed", result.JobID)
			return nil
		}
		pterm.Success.Printfln("Queued job %s over %d articles", result.JobID, result.TotalItems)
		pterm.Info.Println("A running 'newsdesk server' picks it up within its poll interval")
		return nil
	})
}

func runEnrichStatus(cmd *cobra.Command, args []string) error {
	return withEnrichment(func(ctx context.Context, e *enrichment) error {
		job, err := e.controller.Status(ctx, args[0])
		if err != nil {
			return err
		}
		if enrichJSON {
			return printJSON(job.Summary())
		}
		printJob(job)
		return nil
	})
}

func runEnrichCancel(cmd *cobra.Command, args []string) error {
	return withEnrichment(func(ctx context.Context, e *enrichment) error {
		if _, err := e.controller.Cancel(ctx, args[0]); err != nil {
			return err
		}
		job, err := e.controller.Status(ctx, args[0])
		if err != nil {
			return err
		}
		if enrichJSON {
			return printJSON(job.Summary())
		}
		if job.Status == async.JobStatusCancelled {
			pterm.Success.Printfln("Job %s cancelled after %d of %d articles", job.ID, job.ProcessedItems, job.TotalItems)
		} else {
			pterm.Info.Printfln("Job %s had already finished (%s)", job.ID, job.Status)
		}
		return nil
	})
}

func runEnrichLs(cmd *cobra.Command, args []string) error {
	var status *async.JobStatus
	if lsStatus != "" {
		st := async.JobStatus(lsStatus)
		status = &st
	}

	return withEnrichment(func(ctx context.Context, e *enrichment) error {
		jobs, err := e.controller.List(ctx, status, lsLimit)
		if err != nil {
			return err
		}
		if enrichJSON {
			return printJSON(jobs)
		}
		if len(jobs) == 0 {
			pterm.Info.Println("No jobs")
			return nil
		}
		return pterm.DefaultTable.WithHasHeader().WithData(jobTable(jobs)).Render()
	})
}

// parseFilter builds an article filter from command-line values
func parseFilter(status, category, since, until string) (articles.Filter, error) {
	filter := articles.Filter{
		Status:   articles.Status(strings.TrimSpace(status)),
		Category: strings.TrimSpace(category),
	}
	if since != "" {
		t, err := parseDate(since)
		if err != nil {
			return filter, errors.Wrap(err, "--since")
		}
		filter.PublishedAfter = &t
	}
	if until != "" {
		t, err := parseDate(until)
		if err != nil {
			return filter, errors.Wrap(err, "--until")
		}
		filter.PublishedBefore = &t
	}
	return filter, filter.Validate()
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.WithHint(
			errors.WrapAs(articles.ErrInvalidFilter, errors.ErrInvalidRequest, "cannot parse date %q", s),
			"Use YYYY-MM-DD or RFC 3339")
	}
	return t.UTC(), nil
}

// jobTable renders jobs as table rows, header first
func jobTable(jobs []*async.Job) [][]string {
	rows := [][]string{{"", "JOB", "STATUS", "PROGRESS", "OK", "FAILED", "BY", "CREATED"}}
	for _, job := range jobs {
		rows = append(rows, []string{
			sym.StatusGlyph(string(job.Status)),
			job.ID,
			string(job.Status),
			fmt.Sprintf("%d/%d (%.0f%%)", job.ProcessedItems, job.TotalItems, job.Percentage()),
			strconv.Itoa(job.SuccessfulItems),
			strconv.Itoa(job.FailedItems),
			job.CreatedBy,
			job.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return rows
}

func printJob(job *async.Job) {
	pterm.DefaultSection.Printfln("%s Job %s", sym.StatusGlyph(string(job.Status)), job.ID)
	pterm.Printfln("  Status:     %s", job.Status)
	pterm.Printfln("  Progress:   %d/%d (%.1f%%)", job.ProcessedItems, job.TotalItems, job.Percentage())
	pterm.Printfln("  Successful: %d", job.SuccessfulItems)
	pterm.Printfln("  Failed:     %d", job.FailedItems)
	pterm.Printfln("  Started by: %s", job.CreatedBy)
	pterm.Printfln("  Created:    %s", job.CreatedAt.Local().Format(time.RFC3339))
	if job.StartedAt != nil {
		pterm.Printfln("  Started:    %s", job.StartedAt.Local().Format(time.RFC3339))
	}
	if job.CompletedAt != nil {
		pterm.Printfln("  Finished:   %s", job.CompletedAt.Local().Format(time.RFC3339))
	}
	if job.LastError != "" {
		pterm.Warning.Printfln("Last error: %s", job.LastError)
	}
}

func printContext(title string, c *articles.EditorialContext) {
	pterm.DefaultSection.Println(title)
	pterm.Printfln("Background:     %s", c.Background)
	pterm.Printfln("Why it matters: %s", c.WhyItMatters)
	pterm.Printfln("What to watch:  %s", c.WhatToWatch)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	fmt.Println(string(data))
	return nil
}
