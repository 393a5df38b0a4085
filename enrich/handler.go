package enrich

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/newsdesk/articles"
	"github.com/teranos/newsdesk/errors"
	"github.com/teranos/newsdesk/logger"
	"github.com/teranos/newsdesk/pulse/async"
)

// OperationType tags jobs that fill in editorial context
const OperationType = "editorial-context.update"

// RecordStore is the part of the article store the enrichment job uses
type RecordStore interface {
	Get(ctx context.Context, id string) (*articles.Article, error)
	FetchByIDs(ctx context.Context, ids []string) ([]articles.Article, error)
	ScanPage(ctx context.Context, filter articles.Filter, offset, limit int) ([]string, error)
	Update(ctx context.Context, id string, patch articles.Patch) error
}

// ContextHandler runs the enricher for each article of an editorial-context job.
// Articles that already carry complete context are skipped.
type ContextHandler struct {
	store    RecordStore
	enricher *Enricher
	logger   *zap.SugaredLogger
}

// NewContextHandler creates the handler registered for OperationType
func NewContextHandler(store RecordStore, enricher *Enricher, log *zap.SugaredLogger) *ContextHandler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ContextHandler{store: store, enricher: enricher, logger: log.Named("enrich")}
}

// Name returns OperationType
func (h *ContextHandler) Name() string {
	return OperationType
}

// FetchBatch loads the batch's articles in one query
func (h *ContextHandler) FetchBatch(ctx context.Context, itemIDs []string) (async.Batch, error) {
	fetched, err := h.store.FetchByIDs(ctx, itemIDs)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %d articles", len(itemIDs))
	}

	byID := make(map[string]*articles.Article, len(fetched))
	for i := range fetched {
		byID[fetched[i].ID] = &fetched[i]
	}
	return &contextBatch{handler: h, articles: byID}, nil
}

type contextBatch struct {
	handler  *ContextHandler
	articles map[string]*articles.Article
}

// Process enriches one article and writes the merged summary back
func (b *contextBatch) Process(ctx context.Context, itemID string) (async.Outcome, error) {
	a, ok := b.articles[itemID]
	if !ok {
		return async.OutcomeSkipped, articles.NotFound(itemID)
	}
	if a.DecodeErr != nil {
		return async.OutcomeSkipped, a.DecodeErr
	}
	if a.TLDR.HasCompleteContext() {
		b.handler.logger.Debugw("Article already has editorial context", logger.FieldItemID, itemID)
		return async.OutcomeSkipped, nil
	}

	ec, err := b.handler.enricher.Generate(ctx, a)
	if err != nil {
		return async.OutcomeUpdated, err
	}

	patch := articles.Patch{TLDR: a.TLDR.WithContext(*ec)}
	if err := b.handler.store.Update(ctx, itemID, patch); err != nil {
		return async.OutcomeUpdated, errors.Wrap(err, "failed to store editorial context")
	}
	return async.OutcomeUpdated, nil
}
