package async

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/newsdesk/am"
	"github.com/teranos/newsdesk/db"
	"github.com/teranos/newsdesk/errors"
	"github.com/teranos/newsdesk/logger"
)

const (
	// MaxOrphanedJobsToRecover limits how many orphaned jobs are re-queued on startup
	MaxOrphanedJobsToRecover = 1000

	// DefaultStopTimeout bounds how long Stop waits for running jobs to requeue
	DefaultStopTimeout = 30 * time.Second
)

// pulseLogger wraps zap.SugaredLogger with special methods for Pulse operations
// Uses different log levels to create visual distinction:
// - DEBUG level → STARTING (✿ Opening operations)
// - WARN level → CLOSING (❀ Closing operations)
// - INFO level → PULSE (general worker/daemon operations)
type pulseLogger struct {
	*zap.SugaredLogger
}

// Starting logs an Opening (✿) event - uses DEBUG level for "STARTING" appearance
func (l pulseLogger) Starting(msg string, keysAndValues ...interface{}) {
	l.Debugw("✿ "+msg, keysAndValues...)
}

// Closing logs a Closing (❀) event - uses WARN level for "CLOSING" appearance
func (l pulseLogger) Closing(msg string, keysAndValues ...interface{}) {
	l.Warnw("❀ "+msg, keysAndValues...)
}

// Pulse logs general Pulse/worker operations - uses INFO level
func (l pulseLogger) Pulse(msg string, keysAndValues ...interface{}) {
	l.Infow(msg, keysAndValues...)
}

// WorkerPoolConfig contains configuration for the worker pool
type WorkerPoolConfig struct {
	Workers      int           `json:"workers"`       // Number of concurrent workers
	PollInterval time.Duration `json:"poll_interval"` // Fallback check for jobs enqueued by other processes
	StopTimeout  time.Duration `json:"stop_timeout"`  // How long Stop waits for workers
}

// DefaultWorkerPoolConfig returns sensible defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:      2,
		PollInterval: 2 * time.Second,
		StopTimeout:  DefaultStopTimeout,
	}
}

// WorkerPoolConfigFrom converts the pulse config section
func WorkerPoolConfigFrom(cfg am.PulseConfig) WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:      cfg.Workers,
		PollInterval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		StopTimeout:  DefaultStopTimeout,
	}
}

// WorkerPool owns every running job: a fixed set of workers claims queued jobs
// and hands each to the orchestrator. Notify wakes an idle worker at once; the
// poll interval catches jobs enqueued by other processes.
type WorkerPool struct {
	queue        *Queue
	registry     *HandlerRegistry
	orchestrator *Orchestrator
	poolConfig   WorkerPoolConfig
	workers      int
	parentCtx    context.Context
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	wake         chan struct{}
	running      map[string]time.Time // job id -> claimed at
	logger       pulseLogger
	mu           sync.Mutex
}

// NewWorkerPool creates a worker pool over queue. Register handlers in
// Registry() before calling Start.
//
// The pool's context derives from ctx: cancelling ctx stops every worker, and
// running jobs are re-queued at their last checkpoint.
func NewWorkerPool(ctx context.Context, queue *Queue, poolCfg WorkerPoolConfig, orchCfg OrchestratorConfig, log *zap.SugaredLogger) *WorkerPool {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	defaults := DefaultWorkerPoolConfig()
	if poolCfg.Workers <= 0 {
		poolCfg.Workers = defaults.Workers
	}
	if poolCfg.PollInterval <= 0 {
		poolCfg.PollInterval = defaults.PollInterval
	}
	if poolCfg.StopTimeout <= 0 {
		poolCfg.StopTimeout = defaults.StopTimeout
	}

	workerCtx, cancel := context.WithCancel(ctx)
	pulseLog := log.Named("pulse")
	registry := NewHandlerRegistry()

	return &WorkerPool{
		queue:        queue,
		registry:     registry,
		orchestrator: NewOrchestrator(queue, registry, orchCfg, pulseLog),
		poolConfig:   poolCfg,
		workers:      poolCfg.Workers,
		parentCtx:    ctx,
		ctx:          workerCtx,
		cancel:       cancel,
		wake:         make(chan struct{}, poolCfg.Workers),
		running:      make(map[string]time.Time),
		logger:       pulseLogger{logger.AddPulseSymbol(pulseLog)},
	}
}

// NewWorkerPoolFromDB builds the queue and the pool from an open database
func NewWorkerPoolFromDB(ctx context.Context, conn *sql.DB, cfg am.PulseConfig, log *zap.SugaredLogger) *WorkerPool {
	return NewWorkerPool(ctx, NewQueue(conn), WorkerPoolConfigFrom(cfg), OrchestratorConfigFrom(cfg), log)
}

// Start recovers jobs orphaned by a crash, then begins processing
// ✿ Opening: orphaned jobs are re-queued before any worker claims
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	select {
	case <-wp.ctx.Done():
		wp.ctx, wp.cancel = context.WithCancel(wp.parentCtx)
		wp.logger.Starting("Recreated worker context after previous shutdown")
	default:
	}
	wp.mu.Unlock()

	if n, err := wp.recoverOrphanedJobs(); err != nil {
		wp.logger.Warnw("Failed to recover orphaned jobs", logger.FieldError, err)
	} else if n > 0 {
		wp.logger.Starting("Opening - recovered orphaned jobs from previous run", logger.FieldCount, n)
	}

	wp.logger.Starting("Worker pool starting",
		"workers", wp.workers,
		"handlers", wp.registry.Names(),
	)
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	wp.Notify()
}

// recoverOrphanedJobs re-queues jobs left processing by an ungraceful shutdown.
// They resume from their last checkpoint.
func (wp *WorkerPool) recoverOrphanedJobs() (int, error) {
	processing := JobStatusProcessing
	orphaned, err := wp.queue.ListJobs(&processing, MaxOrphanedJobsToRecover)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list processing jobs")
	}

	recovered := 0
	for _, job := range orphaned {
		applied, err := wp.queue.RequeueJob(job.ID)
		if err != nil {
			wp.logger.Warnw("Failed to recover orphaned job", logger.FieldJobID, job.ID, logger.FieldError, err)
			continue
		}
		if applied {
			recovered++
			wp.logger.Starting("Recovered orphaned job",
				logger.FieldJobID, job.ID,
				logger.FieldOperationType, job.OperationType,
				logger.FieldProcessed, job.ProcessedItems,
				logger.FieldTotal, job.TotalItems,
			)
		}
	}
	return recovered, nil
}

// Notify wakes an idle worker to look for queued jobs. Never blocks.
func (wp *WorkerPool) Notify() {
	select {
	case wp.wake <- struct{}{}:
	default:
	}
}

// Stop gracefully stops the worker pool
// ❀ Closing: running jobs are re-queued at their last checkpoint
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	cancel := wp.cancel
	wp.mu.Unlock()
	cancel()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.logger.Pulse("❀ WorkerPool.Stop() complete - all workers exited cleanly")
	case <-time.After(wp.poolConfig.StopTimeout):
		wp.logger.Closing("WorkerPool.Stop() timeout - workers may still be re-queuing", "timeout", wp.poolConfig.StopTimeout)
	}
}

// worker claims and runs jobs until the pool context ends
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	wp.mu.Lock()
	ctx := wp.ctx
	wp.mu.Unlock()

	ticker := time.NewTicker(wp.poolConfig.PollInterval)
	defer ticker.Stop()

	errorCount := 0
	const maxConsecutiveErrors = 5
	backoffDuration := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-wp.wake:
		}

		if err := wp.drain(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, sql.ErrConnDone) || db.IsDatabaseClosed(err) {
				wp.logger.Closing("Database closed, worker exiting", logger.FieldWorker, id)
				return
			}
			errorCount++
			wp.logger.Errorw("Worker error processing job",
				logger.FieldWorker, id,
				logger.FieldError, err,
				"consecutive_errors", errorCount)

			if errorCount >= maxConsecutiveErrors {
				wp.logger.Warnw("Worker backing off due to consecutive errors",
					logger.FieldWorker, id,
					"backoff", backoffDuration)
				if sleepCtx(ctx, backoffDuration) != nil {
					return
				}
				backoffDuration = min(backoffDuration*2, maxBackoff)
			}
			continue
		}

		if errorCount > 0 {
			wp.logger.Infow("Worker recovered from errors",
				logger.FieldWorker, id,
				"previous_error_count", errorCount)
		}
		errorCount = 0
		backoffDuration = time.Second
	}
}

// drain runs queued jobs one after another until none is left
func (wp *WorkerPool) drain(ctx context.Context) error {
	for ctx.Err() == nil {
		claimed, err := wp.processNextJob(ctx)
		if err != nil || !claimed {
			return err
		}
	}
	return nil
}

// processNextJob claims one job and runs it. Reports whether a job was claimed.
func (wp *WorkerPool) processNextJob(ctx context.Context) (bool, error) {
	job, err := wp.queue.Claim()
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	wp.track(job.ID, true)
	defer wp.track(job.ID, false)

	if err := wp.orchestrator.Run(ctx, job); err != nil && !errors.Is(err, ErrInterrupted) {
		// already recorded on the job; the worker keeps going
		wp.logger.Warnw("Job failed", logger.FieldJobID, job.ID, logger.FieldError, err)
	}
	return true, nil
}

func (wp *WorkerPool) track(jobID string, running bool) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if running {
		wp.running[jobID] = time.Now()
	} else {
		delete(wp.running, jobID)
	}
}

// Running returns the ids of jobs currently executing in this process, sorted
func (wp *WorkerPool) Running() []string {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	ids := make([]string, 0, len(wp.running))
	for id := range wp.running {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Queue returns the job queue (useful for enqueuing jobs)
func (wp *WorkerPool) Queue() *Queue {
	return wp.queue
}

// Workers returns the number of concurrent workers configured for this pool
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// Registry returns the handler registry for registering job handlers.
// Register handlers before calling Start():
//
//	pool := async.NewWorkerPool(ctx, queue, poolCfg, orchCfg, logger)
//	pool.Registry().Register(enrich.NewContextHandler(store, enricher, logger))
//	pool.Start()
func (wp *WorkerPool) Registry() *HandlerRegistry {
	return wp.registry
}
