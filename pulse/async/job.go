// Package async runs batch jobs over fixed item lists with pulse control:
// persisted job records, a claimable queue, a micro-batch orchestrator and
// the worker pool that owns every running job.
package async

import (
	"time"

	"github.com/google/uuid"

	"github.com/teranos/newsdesk/errors"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
	JobStatusFailed     JobStatus = "failed"
)

// IsValidStatus returns true if the status string is a valid JobStatus
func IsValidStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusQueued, JobStatusProcessing,
		JobStatusCompleted, JobStatusCancelled, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition can leave this status
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled || s == JobStatusFailed
}

// Job is one bulk operation over a fixed, ordered list of item ids.
//
// ItemIDs never change after creation. Counters only grow, and
// ProcessedItems == SuccessfulItems + FailedItems at every checkpoint.
// A job resumes from ItemIDs[ProcessedItems:].
type Job struct {
	ID              string     `json:"id"`
	OperationType   string     `json:"operation_type"`
	ItemIDs         []string   `json:"item_ids,omitempty"`
	TotalItems      int        `json:"total_items"`
	ProcessedItems  int        `json:"processed_items"`
	SuccessfulItems int        `json:"successful_items"`
	FailedItems     int        `json:"failed_items"`
	Status          JobStatus  `json:"status"`
	CreatedBy       string     `json:"created_by"`
	LastError       string     `json:"last_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewJob creates a queued job over itemIDs. A job with no items is created completed.
func NewJob(operationType string, itemIDs []string, actor string) (*Job, error) {
	if operationType == "" {
		return nil, errors.New("operation type cannot be empty")
	}
	if actor == "" {
		return nil, errors.New("job actor cannot be empty")
	}

	ids := make([]string, len(itemIDs))
	copy(ids, itemIDs)

	now := time.Now().UTC()
	job := &Job{
		ID:            uuid.NewString(),
		OperationType: operationType,
		ItemIDs:       ids,
		TotalItems:    len(ids),
		Status:        JobStatusQueued,
		CreatedBy:     actor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if len(ids) == 0 {
		job.Status = JobStatusCompleted
		job.StartedAt = &now
		job.CompletedAt = &now
	}
	return job, nil
}

// Remaining returns the item ids not yet processed, in order
func (j *Job) Remaining() []string {
	if j.ProcessedItems >= len(j.ItemIDs) {
		return nil
	}
	return j.ItemIDs[j.ProcessedItems:]
}

// Percentage calculates progress as a percentage (0-100)
func (j *Job) Percentage() float64 {
	if j.TotalItems == 0 {
		return 100
	}
	return float64(j.ProcessedItems) / float64(j.TotalItems) * 100
}

// Summary is the job without its item list, for listings and push updates
func (j *Job) Summary() *Job {
	s := *j
	s.ItemIDs = nil
	return &s
}

// Tally is the outcome of one micro-batch, applied to a job as an increment
type Tally struct {
	Successful int
	Failed     int
	LastError  string
}

// Processed returns the number of items the tally covers
func (t Tally) Processed() int {
	return t.Successful + t.Failed
}

// Add folds other into t. A non-empty LastError in other wins.
func (t *Tally) Add(other Tally) {
	t.Successful += other.Successful
	t.Failed += other.Failed
	if other.LastError != "" {
		t.LastError = other.LastError
	}
}
