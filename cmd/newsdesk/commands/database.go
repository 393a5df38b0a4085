package commands

import (
	"context"
	"database/sql"
	"time"

	"github.com/teranos/newsdesk/ai/openrouter"
	"github.com/teranos/newsdesk/am"
	"github.com/teranos/newsdesk/articles"
	"github.com/teranos/newsdesk/db"
	"github.com/teranos/newsdesk/enrich"
	"github.com/teranos/newsdesk/errors"
	"github.com/teranos/newsdesk/logger"
	"github.com/teranos/newsdesk/pulse/async"
)

// openDatabase opens and migrates a database using the specified path.
// If dbPath is empty, it loads from am config. Uses logger.Logger for db operations.
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		path, err := am.GetDatabasePath()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get database path")
		}
		dbPath = path
	}

	database, err := db.OpenWithMigrations(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", dbPath)
	}
	return database, nil
}

// newCompletionClient builds the OpenRouter client from config. Usage is
// recorded in database when it is non-nil.
func newCompletionClient(cfg *am.Config, database *sql.DB) *openrouter.Client {
	temperature := cfg.OpenRouter.Temperature
	maxTokens := cfg.OpenRouter.MaxTokens

	rc := openrouter.Config{
		APIKey:        cfg.OpenRouter.APIKey,
		BaseURL:       cfg.OpenRouter.BaseURL,
		Model:         cfg.OpenRouter.Model,
		Temperature:   &temperature,
		Timeout:       time.Duration(cfg.OpenRouter.TimeoutSeconds) * time.Second,
		Logger:        logger.Logger,
		DB:            database,
		OperationType: enrich.OperationType,
	}
	if maxTokens > 0 {
		rc.MaxTokens = &maxTokens
	}
	return openrouter.NewClient(rc)
}

// enrichment is everything an enrich command or the server needs
type enrichment struct {
	store      *articles.Store
	client     *openrouter.Client
	enricher   *enrich.Enricher
	queue      *async.Queue
	controller *enrich.Controller
}

// newEnrichment wires the article store, completion client and controller.
// notifier may be nil; queued jobs are then picked up by a server's poll.
func newEnrichment(ctx context.Context, cfg *am.Config, database *sql.DB, queue *async.Queue, notifier enrich.Notifier) (*enrichment, error) {
	store, err := articles.Open(ctx, cfg.Articles, database, logger.Logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open article store")
	}

	client := newCompletionClient(cfg, database)
	enricher := enrich.NewEnricher(client, cfg.Enrichment, logger.Logger)
	if queue == nil {
		queue = async.NewQueue(database)
	}

	return &enrichment{
		store:      store,
		client:     client,
		enricher:   enricher,
		queue:      queue,
		controller: enrich.NewController(store, queue, enricher, notifier, cfg.Pulse.EnumerationPageSize, logger.Logger),
	}, nil
}

func (e *enrichment) Close() {
	e.store.Close()
}
