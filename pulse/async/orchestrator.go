package async

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/newsdesk/am"
	"github.com/teranos/newsdesk/errors"
	"github.com/teranos/newsdesk/logger"
)

// ErrInterrupted marks a run stopped by its context. The job was requeued, not failed.
var ErrInterrupted = errors.New("job run interrupted")

// OrchestratorConfig controls micro-batching and pacing
type OrchestratorConfig struct {
	BatchSize   int           // items per checkpoint
	ItemDelay   time.Duration // minimum spacing between items, shared by all jobs
	BatchDelay  time.Duration // pause between batches of one job
	ItemTimeout time.Duration // 0 = no per-item timeout
}

// DefaultOrchestratorConfig returns the production pacing
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		BatchSize:  5,
		ItemDelay:  time.Second,
		BatchDelay: 2 * time.Second,
	}
}

// OrchestratorConfigFrom converts the pulse config section
func OrchestratorConfigFrom(cfg am.PulseConfig) OrchestratorConfig {
	return OrchestratorConfig{
		BatchSize:   cfg.BatchSize,
		ItemDelay:   time.Duration(cfg.ItemDelayMS) * time.Millisecond,
		BatchDelay:  time.Duration(cfg.BatchDelayMS) * time.Millisecond,
		ItemTimeout: time.Duration(cfg.ItemTimeoutSeconds) * time.Second,
	}
}

// Orchestrator drives claimed jobs through their items in micro-batches.
//
// Per batch: re-read the job and stop unless it is still processing, fetch the
// batch's records in one call, process each item in order behind the shared
// rate limiter, then checkpoint the batch tally as one increment. A checkpoint
// that changes no row means the job was cancelled meanwhile.
type Orchestrator struct {
	queue    *Queue
	registry *HandlerRegistry
	config   OrchestratorConfig
	limiter  *rate.Limiter
	logger   pulseLogger
}

// NewOrchestrator creates an orchestrator. The rate limiter it builds is shared by every job it runs.
func NewOrchestrator(queue *Queue, registry *HandlerRegistry, cfg OrchestratorConfig, log *zap.SugaredLogger) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultOrchestratorConfig().BatchSize
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	limit := rate.Inf
	if cfg.ItemDelay > 0 {
		limit = rate.Every(cfg.ItemDelay)
	}

	return &Orchestrator{
		queue:    queue,
		registry: registry,
		config:   cfg,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   pulseLogger{logger.AddPulseSymbol(log.Named("orchestrator"))},
	}
}

// Run processes a claimed job until it is terminal.
//
// Returns nil once the job is completed or was found cancelled. When ctx ends
// mid-run the interrupted batch is discarded, the job is requeued and an error
// marked ErrInterrupted is returned. Any other error has already moved the job to failed.
func (o *Orchestrator) Run(ctx context.Context, job *Job) error {
	log := pulseLogger{o.logger.With(
		logger.FieldJobID, job.ID,
		logger.FieldOperationType, job.OperationType,
	)}

	handler := o.registry.Get(job.OperationType)
	if handler == nil {
		return o.fail(log, job, errors.Wrapf(ErrHandlerNotRegistered, "%q", job.OperationType))
	}

	log.Infow("Job running",
		logger.FieldTotal, job.TotalItems,
		logger.FieldProcessed, job.ProcessedItems,
	)

	for batchNo := 0; ; batchNo++ {
		current, err := o.queue.GetJob(job.ID)
		if err != nil {
			return o.fail(log, job, errors.Wrap(err, "failed to re-read job"))
		}
		if current.Status != JobStatusProcessing {
			log.Infow("Job left processing, stopping", logger.FieldStatus, current.Status, logger.FieldProcessed, current.ProcessedItems)
			return nil
		}

		remaining := current.Remaining()
		if len(remaining) == 0 {
			break
		}
		batch := remaining[:min(o.config.BatchSize, len(remaining))]

		tally, err := o.runBatch(ctx, handler, batch)
		if err != nil {
			return o.interrupt(log, current, err)
		}

		applied, err := o.queue.Checkpoint(job.ID, tally)
		if err != nil {
			return o.fail(log, current, err)
		}
		if !applied {
			log.Infow("Checkpoint not applied, job was stopped concurrently",
				logger.FieldBatch, batchNo,
				logger.FieldProcessed, current.ProcessedItems,
			)
			return nil
		}

		log.Debugw("Batch checkpointed",
			logger.FieldBatch, batchNo,
			logger.FieldSuccessful, tally.Successful,
			logger.FieldFailed, tally.Failed,
			logger.FieldProcessed, current.ProcessedItems+tally.Processed(),
		)

		if len(remaining) > len(batch) && o.config.BatchDelay > 0 {
			if err := sleepCtx(ctx, o.config.BatchDelay); err != nil {
				current.ProcessedItems += tally.Processed()
				return o.interrupt(log, current, err)
			}
		}
	}

	applied, err := o.queue.CompleteJob(job.ID)
	if err != nil {
		return o.fail(log, job, err)
	}
	if applied {
		log.Infow("Job completed")
	}
	return nil
}

// runBatch processes one micro-batch. An error means ctx ended and the tally must be discarded.
func (o *Orchestrator) runBatch(ctx context.Context, handler JobHandler, ids []string) (Tally, error) {
	var tally Tally

	fetched, err := handler.FetchBatch(ctx, ids)
	if err != nil {
		if ctx.Err() != nil {
			return Tally{}, ctx.Err()
		}
		o.logger.Warnw("Batch fetch failed, failing its items",
			logger.FieldCount, len(ids),
			logger.FieldError, err,
		)
		tally.Failed = len(ids)
		tally.LastError = itemError(ids[0], err)
		return tally, nil
	}

	for _, id := range ids {
		if err := o.limiter.Wait(ctx); err != nil {
			return Tally{}, err
		}

		outcome, err := o.processItem(ctx, fetched, id)
		if err != nil {
			if ctx.Err() != nil {
				return Tally{}, ctx.Err()
			}
			tally.Failed++
			tally.LastError = itemError(id, err)
			o.logger.Warnw("Item failed", logger.FieldItemID, id, logger.FieldError, err)
			continue
		}
		tally.Successful++
		o.logger.Debugw("Item done", logger.FieldItemID, id, "outcome", outcome.String())
	}
	return tally, nil
}

// processItem runs one item under the per-item timeout and turns a panic into an item failure
func (o *Orchestrator) processItem(ctx context.Context, batch Batch, id string) (outcome Outcome, err error) {
	if o.config.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.ItemTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic processing item: %v", r)
		}
	}()

	return batch.Process(ctx, id)
}

// fail records an orchestration error on the job
func (o *Orchestrator) fail(log pulseLogger, job *Job, cause error) error {
	log.Errorw("Orchestration error, failing job",
		logger.FieldProcessed, job.ProcessedItems,
		logger.FieldTotal, job.TotalItems,
		logger.FieldError, cause,
	)
	if _, err := o.queue.FailJob(job.ID, cause); err != nil {
		log.Errorw("Failed to mark job failed", logger.FieldError, err)
		return errors.CombineErrors(cause, err)
	}
	return cause
}

// interrupt requeues a job whose run was stopped by ctx
func (o *Orchestrator) interrupt(log pulseLogger, job *Job, cause error) error {
	log.Closing("Job interrupted, re-queuing for resume", logger.FieldProcessed, job.ProcessedItems)
	if _, err := o.queue.RequeueJob(job.ID); err != nil {
		log.Errorw("Failed to re-queue interrupted job", logger.FieldError, err)
	}
	return errors.Mark(errors.Wrapf(cause, "job %s", job.ID), ErrInterrupted)
}

// sleepCtx waits for d or until ctx ends
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
