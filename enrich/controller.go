package enrich

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/newsdesk/articles"
	"github.com/teranos/newsdesk/auth"
	"github.com/teranos/newsdesk/errors"
	"github.com/teranos/newsdesk/logger"
	"github.com/teranos/newsdesk/pulse/async"
)

// DefaultPageSize is the number of ids read per enumeration query
const DefaultPageSize = 500

// Notifier wakes whatever executes queued jobs
type Notifier interface {
	Notify()
}

// PreviewResult pairs a freshly generated context with the one stored on the article
type PreviewResult struct {
	Result        *articles.EditorialContext `json:"result"`
	ExistingValue *articles.EditorialContext `json:"existingValue"`
}

// StartResult identifies a newly created job
type StartResult struct {
	JobID      string `json:"jobId"`
	TotalItems int    `json:"totalItems"`
}

// CancelResult acknowledges a cancel request
type CancelResult struct {
	Acknowledged bool `json:"acknowledged"`
}

// Controller is the entry point for editorial-context jobs.
// Every operation requires an admin actor in the context.
type Controller struct {
	store    RecordStore
	queue    *async.Queue
	enricher *Enricher
	notifier Notifier
	pageSize int
	logger   *zap.SugaredLogger
}

// NewController creates a controller. notifier may be nil when jobs are picked
// up by polling (e.g. a CLI writing to a database a server is running on).
func NewController(store RecordStore, queue *async.Queue, enricher *Enricher, notifier Notifier, pageSize int, log *zap.SugaredLogger) *Controller {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Controller{
		store:    store,
		queue:    queue,
		enricher: enricher,
		notifier: notifier,
		pageSize: pageSize,
		logger:   log.Named("enrich"),
	}
}

// Preview generates editorial context for one article without storing it
func (c *Controller) Preview(ctx context.Context, itemID string) (*PreviewResult, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, errors.NewInvalidRequestError("itemId is required")
	}

	a, err := c.store.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}

	result, err := c.enricher.Generate(ctx, a)
	if err != nil {
		return nil, errors.Wrapf(err, "preview of article %s failed", itemID)
	}

	var existing *articles.EditorialContext
	if a.TLDR != nil && a.TLDR.Context != nil {
		current := *a.TLDR.Context
		existing = &current
	}
	return &PreviewResult{Result: result, ExistingValue: existing}, nil
}

// Start enumerates the articles matching filter and queues a job over them.
// It returns once the job is persisted; the worker pool runs it.
func (c *Controller) Start(ctx context.Context, filter articles.Filter) (*StartResult, error) {
	actor, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	ids, err := c.enumerate(ctx, filter)
	if err != nil {
		return nil, err
	}

	job, err := async.NewJob(OperationType, ids, actor.ID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create job")
	}
	if err := c.queue.Enqueue(job); err != nil {
		return nil, err
	}

	c.logger.Infow("Job started",
		logger.FieldJobID, job.ID,
		logger.FieldActor, actor.ID,
		logger.FieldTotal, job.TotalItems,
		logger.FieldStatus, job.Status,
	)
	if job.Status == async.JobStatusQueued && c.notifier != nil {
		c.notifier.Notify()
	}
	return &StartResult{JobID: job.ID, TotalItems: job.TotalItems}, nil
}

// enumerate collects matching ids page by page until a short page
func (c *Controller) enumerate(ctx context.Context, filter articles.Filter) ([]string, error) {
	var ids []string
	for offset := 0; ; offset += c.pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := c.store.ScanPage(ctx, filter, offset, c.pageSize)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to enumerate articles at offset %d", offset)
		}
		ids = append(ids, page...)
		if len(page) < c.pageSize {
			return ids, nil
		}
	}
}

// Status returns the current state of a job, including its item list
func (c *Controller) Status(ctx context.Context, jobID string) (*async.Job, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(jobID) == "" {
		return nil, errors.NewInvalidRequestError("jobId is required")
	}
	return c.queue.GetJob(jobID)
}

// Cancel stops a job at its next batch boundary. Cancelling a finished job changes nothing.
func (c *Controller) Cancel(ctx context.Context, jobID string) (*CancelResult, error) {
	actor, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(jobID) == "" {
		return nil, errors.NewInvalidRequestError("jobId is required")
	}

	job, err := c.queue.CancelJob(jobID)
	if err != nil {
		return nil, err
	}
	c.logger.Infow("Job cancel requested",
		logger.FieldJobID, jobID,
		logger.FieldActor, actor.ID,
		logger.FieldStatus, job.Status,
		logger.FieldProcessed, job.ProcessedItems,
	)
	return &CancelResult{Acknowledged: true}, nil
}

// List returns recent jobs newest first, optionally filtered by status
func (c *Controller) List(ctx context.Context, status *async.JobStatus, limit int) ([]*async.Job, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if status != nil && !async.IsValidStatus(string(*status)) {
		return nil, errors.NewInvalidRequestError("unknown job status %q", *status)
	}
	return c.queue.ListJobs(status, limit)
}
