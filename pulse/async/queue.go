package async

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/teranos/newsdesk/errors"
)

const (
	// MaxJobsLimit caps list queries
	MaxJobsLimit = 10000
	// SubscriberChannelBufferSize is the buffer size for subscriber channels
	SubscriberChannelBufferSize = 100
)

// Queue wraps the job store and tells subscribers about every job change.
// Subscribers receive summaries (no item list) of the job after the change.
type Queue struct {
	store       *Store
	mu          sync.RWMutex
	subscribers []chan *Job
}

// NewQueue creates a new job queue
func NewQueue(db *sql.DB) *Queue {
	return &Queue{
		store:       NewStore(db),
		subscribers: make([]chan *Job, 0),
	}
}

// Store returns the underlying job store
func (q *Queue) Store() *Store {
	return q.store
}

// Enqueue persists a new job
func (q *Queue) Enqueue(job *Job) error {
	if err := q.store.CreateJob(job); err != nil {
		err = errors.Wrap(err, "failed to enqueue job")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Operation: %s", job.OperationType))
		err = errors.WithDetail(err, fmt.Sprintf("Items: %d", job.TotalItems))
		return err
	}

	q.notifySubscribers(job.Summary())
	return nil
}

// Claim takes the oldest queued job and marks it processing. Returns nil when the queue is empty.
func (q *Queue) Claim() (*Job, error) {
	job, err := q.store.ClaimNext()
	if err != nil {
		return nil, errors.Wrap(err, "failed to claim job")
	}
	if job != nil {
		q.notifySubscribers(job.Summary())
	}
	return job, nil
}

// GetJob retrieves a job by ID
func (q *Queue) GetJob(id string) (*Job, error) {
	return q.store.GetJob(id)
}

// Checkpoint applies a batch tally. Returns false if the job left processing.
func (q *Queue) Checkpoint(id string, tally Tally) (bool, error) {
	applied, err := q.store.Checkpoint(id, tally)
	if err != nil {
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", id))
		err = errors.WithDetail(err, fmt.Sprintf("Tally: %d ok, %d failed", tally.Successful, tally.Failed))
		return false, err
	}
	if applied {
		q.notifyChanged(id)
	}
	return applied, nil
}

// CompleteJob marks a processing job completed
func (q *Queue) CompleteJob(id string) (bool, error) {
	applied, err := q.store.Complete(id)
	if err != nil {
		return false, errors.WithDetail(err, fmt.Sprintf("Job ID: %s", id))
	}
	if applied {
		q.notifyChanged(id)
	}
	return applied, nil
}

// FailJob marks a queued or processing job failed
func (q *Queue) FailJob(id string, jobErr error) (bool, error) {
	reason := ""
	if jobErr != nil {
		reason = jobErr.Error()
	}
	applied, err := q.store.Fail(id, reason)
	if err != nil {
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", id))
		err = errors.WithDetail(err, fmt.Sprintf("Job error: %s", reason))
		return false, err
	}
	if applied {
		q.notifyChanged(id)
	}
	return applied, nil
}

// CancelJob cancels a job that is not yet terminal and returns its current state.
// Cancelling a terminal job changes nothing.
func (q *Queue) CancelJob(id string) (*Job, error) {
	applied, err := q.store.Cancel(id)
	if err != nil {
		return nil, errors.WithDetail(err, fmt.Sprintf("Job ID: %s", id))
	}

	job, err := q.store.GetJob(id)
	if err != nil {
		return nil, err
	}
	if applied {
		q.notifySubscribers(job.Summary())
	}
	return job, nil
}

// RequeueJob returns a processing job to the queue
func (q *Queue) RequeueJob(id string) (bool, error) {
	applied, err := q.store.Requeue(id)
	if err != nil {
		return false, errors.WithDetail(err, fmt.Sprintf("Job ID: %s", id))
	}
	if applied {
		q.notifyChanged(id)
	}
	return applied, nil
}

// ListJobs returns jobs, optionally filtered by status
func (q *Queue) ListJobs(status *JobStatus, limit int) ([]*Job, error) {
	if limit <= 0 || limit > MaxJobsLimit {
		limit = MaxJobsLimit
	}
	return q.store.ListJobs(status, limit)
}

// ListActiveJobs returns all queued and processing jobs
func (q *Queue) ListActiveJobs(limit int) ([]*Job, error) {
	if limit <= 0 || limit > MaxJobsLimit {
		limit = MaxJobsLimit
	}
	return q.store.ListActiveJobs(limit)
}

// QueueStats returns statistics about the queue
type QueueStats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// GetStats returns queue statistics
func (q *Queue) GetStats() (*QueueStats, error) {
	counts, err := q.store.CountByStatus()
	if err != nil {
		return nil, err
	}

	stats := &QueueStats{
		Queued:     counts[JobStatusQueued],
		Processing: counts[JobStatusProcessing],
		Completed:  counts[JobStatusCompleted],
		Cancelled:  counts[JobStatusCancelled],
		Failed:     counts[JobStatusFailed],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

// Subscribe returns a channel that receives job updates.
// The caller is responsible for calling Unsubscribe when done.
// The returned channel is buffered to prevent blocking the notifier.
func (q *Queue) Subscribe() chan *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch := make(chan *Job, SubscriberChannelBufferSize)
	q.subscribers = append(q.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel from the queue.
// The channel is NOT closed by this method; callers own its lifecycle.
func (q *Queue) Unsubscribe(ch chan *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, sub := range q.subscribers {
		if sub == ch {
			q.subscribers = append(q.subscribers[:i], q.subscribers[i+1:]...)
			return
		}
	}
}

// notifyChanged re-reads a job and sends it to subscribers
func (q *Queue) notifyChanged(id string) {
	q.mu.RLock()
	n := len(q.subscribers)
	q.mu.RUnlock()
	if n == 0 {
		return
	}

	job, err := q.store.GetJob(id)
	if err != nil {
		return
	}
	q.notifySubscribers(job.Summary())
}

// notifySubscribers uses non-blocking sends so a slow subscriber never stalls a job
func (q *Queue) notifySubscribers(job *Job) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, ch := range q.subscribers {
		select {
		case ch <- job:
		default:
		}
	}
}
