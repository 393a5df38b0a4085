package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/newsdesk/am"
	"github.com/teranos/newsdesk/auth"
	"github.com/teranos/newsdesk/enrich"
	"github.com/teranos/newsdesk/errors"
	"github.com/teranos/newsdesk/logger"
	"github.com/teranos/newsdesk/pulse/async"
	"github.com/teranos/newsdesk/server"
)

// ServerCmd runs the HTTP API together with the job worker pool
var ServerCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   "Run the enrichment API and worker pool",
	Long: `Serve the enrichment API and execute queued jobs.

Jobs left processing by a previous run are re-queued at their last checkpoint
before any worker starts. Editing the active am.toml reloads the [[auth.actors]]
tokens without a restart.`,
	RunE: runServer,
}

var (
	serverPort   int
	serverDBPath string
)

func init() {
	ServerCmd.Flags().IntVar(&serverPort, "port", 0, "Port to listen on (overrides server.port)")
	ServerCmd.Flags().StringVar(&serverDBPath, "db-path", "", "Custom database path (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		// Servers log progress by default
		verbosity = logger.VerbosityInfo
		if err := logger.InitializeWithLevel(logger.JSONOutput, logger.VerbosityToLevel(verbosity)); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
	}

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	port := cfg.Server.Port
	if serverPort > 0 {
		port = serverPort
	}

	dbPath := serverDBPath
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}
	if dbPath == "" {
		dbPath = am.DefaultDatabasePath
	}
	database, err := openDatabase(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := async.NewWorkerPoolFromDB(ctx, database, cfg.Pulse, logger.Logger)
	e, err := newEnrichment(ctx, cfg, database, pool.Queue(), pool)
	if err != nil {
		return err
	}
	defer e.Close()
	pool.Registry().Register(enrich.NewContextHandler(e.store, e.enricher, logger.Logger))

	if !e.client.IsConfigured() {
		pterm.Warning.Println("openrouter.api_key is not set; every item will fail until it is")
	}

	authn := auth.NewAuthenticator(cfg.Auth, logger.Logger)
	if len(cfg.Auth.Actors) == 0 {
		pterm.Warning.Println("No [[auth.actors]] configured; every API call will be rejected")
	}

	configPath := am.ActiveConfigPath()
	if configPath != "" {
		watcher, err := am.NewConfigWatcher(configPath, logger.Logger)
		if err != nil {
			logger.Warnw("Config hot reload disabled", logger.FieldPath, configPath, logger.FieldError, err)
		} else {
			watcher.OnReload(authn.OnConfigReload)
			watcher.Start()
			defer watcher.Stop()
		}
	}

	srv, err := server.New(server.Options{
		Controller:     e.controller,
		Queue:          pool.Queue(),
		Pool:           pool,
		Auth:           authn,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger.Logger,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}

	printStartupBanner(cfg, port, dbPath, configPath, pool.Workers())

	pool.Start()
	logger.PulseInfow("Worker pool started", "workers", pool.Workers(), "batch_size", cfg.Pulse.BatchSize)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(port)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		pool.Stop()
		return errors.Wrap(err, "server stopped unexpectedly")
	case <-sigChan:
		pterm.Info.Println("Shutting down gracefully (press Ctrl+C again to force)...")
		logger.PulseWarnw("Stopping workers, running jobs will be re-queued", "running", len(pool.Running()))

		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- srv.Stop()
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}
			pterm.Success.Println("Server stopped; running jobs were re-queued")
			return nil
		case <-sigChan:
			pterm.Warning.Println("Force shutdown - exiting immediately")
			os.Exit(1)
			return nil
		}
	}
}
