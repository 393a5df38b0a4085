package async

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/newsdesk/errors"
	ndtest "github.com/teranos/newsdesk/internal/testing"
)

func runJob(t *testing.T, o *Orchestrator, q *Queue, job *Job) *Job {
	t.Helper()
	require.NoError(t, o.Run(context.Background(), job))
	got, err := q.GetJob(job.ID)
	require.NoError(t, err)
	return got
}

func TestOrchestrator_MicroBatches(t *testing.T) {
	q := NewQueue(ndtest.CreateTestDB(t))
	h := newFakeHandler()
	job := claimJob(t, q, itemIDs(7))

	got := runJob(t, newTestOrchestrator(q, h, fastConfig(3)), q, job)

	assert.Equal(t, JobStatusCompleted, got.Status)
	assert.Equal(t, 7, got.ProcessedItems)
	assert.Equal(t, 7, got.SuccessfulItems)
	assert.Zero(t, got.FailedItems)
	assert.NotNil(t, got.CompletedAt)

	assert.Equal(t, [][]string{
		{"i-1", "i-2", "i-3"},
		{"i-4", "i-5", "i-6"},
		{"i-7"},
	}, h.Fetches(), "one fetch per micro-batch")
	assert.Equal(t, itemIDs(7), h.Seen(), "items run in enumeration order")
}

func TestOrchestrator_FailureIsolation(t *testing.T) {
	q := NewQueue(ndtest.CreateTestDB(t))
	h := newFakeHandler()
	h.failures["i-2"] = errors.New("rate limited")
	h.panics["i-4"] = true
	job := claimJob(t, q, itemIDs(5))

	got := runJob(t, newTestOrchestrator(q, h, fastConfig(2)), q, job)

	assert.Equal(t, JobStatusCompleted, got.Status, "item failures never fail the job")
	assert.Equal(t, 5, got.ProcessedItems)
	assert.Equal(t, 3, got.SuccessfulItems)
	assert.Equal(t, 2, got.FailedItems)
	assert.True(t, strings.HasPrefix(got.LastError, "i-4: "), "last error names the latest failed item: %q", got.LastError)
	assert.Contains(t, got.LastError, "panic")
	assert.Equal(t, itemIDs(5), h.Seen())
}

func TestOrchestrator_ItemTimeout(t *testing.T) {
	q := NewQueue(ndtest.CreateTestDB(t))
	h := newFakeHandler()
	h.blockIDs["i-2"] = true
	job := claimJob(t, q, itemIDs(3))

	cfg := fastConfig(3)
	cfg.ItemTimeout = 50 * time.Millisecond
	got := runJob(t, newTestOrchestrator(q, h, cfg), q, job)

	assert.Equal(t, JobStatusCompleted, got.Status)
	assert.Equal(t, 2, got.SuccessfulItems)
	assert.Equal(t, 1, got.FailedItems)
	assert.Equal(t, "i-2: context deadline exceeded", got.LastError)
}

func TestOrchestrator_FetchFailureFailsBatch(t *testing.T) {
	q := NewQueue(ndtest.CreateTestDB(t))
	h := newFakeHandler()
	h.fetchFail = func(ids []string) error {
		if slices.Contains(ids, "i-4") {
			return errors.New("article store unavailable")
		}
		return nil
	}
	job := claimJob(t, q, itemIDs(7))

	got := runJob(t, newTestOrchestrator(q, h, fastConfig(3)), q, job)

	assert.Equal(t, JobStatusCompleted, got.Status)
	assert.Equal(t, 7, got.ProcessedItems)
	assert.Equal(t, 4, got.SuccessfulItems)
	assert.Equal(t, 3, got.FailedItems)
	assert.Equal(t, "i-4: article store unavailable", got.LastError)
	assert.Equal(t, []string{"i-1", "i-2", "i-3", "i-7"}, h.Seen())
}

func TestOrchestrator_CancelStopsAtBatchBoundary(t *testing.T) {
	q := NewQueue(ndtest.CreateTestDB(t))
	h := newFakeHandler()
	job := claimJob(t, q, itemIDs(7))
	h.onItem = func(id string) {
		if id == "i-2" {
			_, err := q.CancelJob(job.ID)
			require.NoError(t, err)
		}
	}

	got := runJob(t, newTestOrchestrator(q, h, fastConfig(3)), q, job)

	assert.Equal(t, JobStatusCancelled, got.Status)
	assert.LessOrEqual(t, len(h.Seen()), 3, "at most one more batch runs after cancel")
	assert.Zero(t, got.ProcessedItems, "the in-flight batch is not checkpointed")
	assert.Len(t, h.Fetches(), 1)
}

func TestOrchestrator_CancelledBeforeRun(t *testing.T) {
	q := NewQueue(ndtest.CreateTestDB(t))
	h := newFakeHandler()
	job := claimJob(t, q, itemIDs(3))
	_, err := q.CancelJob(job.ID)
	require.NoError(t, err)

	got := runJob(t, newTestOrchestrator(q, h, fastConfig(3)), q, job)

	assert.Equal(t, JobStatusCancelled, got.Status)
	assert.Empty(t, h.Seen())
}

func TestOrchestrator_CountersOnlyGrow(t *testing.T) {
	q := NewQueue(ndtest.CreateTestDB(t))
	h := newFakeHandler()
	h.failures["i-3"] = errors.New("bad output")
	h.failures["i-8"] = errors.New("bad output")
	job := claimJob(t, q, itemIDs(10))

	updates := q.Subscribe()
	defer q.Unsubscribe(updates)

	runJob(t, newTestOrchestrator(q, h, fastConfig(3)), q, job)

	var snapshots []*Job
	for len(updates) > 0 {
		snapshots = append(snapshots, <-updates)
	}
	require.NotEmpty(t, snapshots)

	prev := 0
	for _, s := range snapshots {
		assert.Equal(t, s.ProcessedItems, s.SuccessfulItems+s.FailedItems)
		assert.LessOrEqual(t, s.ProcessedItems, s.TotalItems)
		assert.GreaterOrEqual(t, s.ProcessedItems, prev)
		prev = s.ProcessedItems
	}
	last := snapshots[len(snapshots)-1]
	assert.Equal(t, JobStatusCompleted, last.Status)
	assert.Equal(t, 10, last.ProcessedItems)
	assert.Equal(t, 2, last.FailedItems)
}

func TestOrchestrator_RerunSkipsFinishedItems(t *testing.T) {
	q := NewQueue(ndtest.CreateTestDB(t))
	h := newFakeHandler()
	o := newTestOrchestrator(q, h, fastConfig(2))

	first := runJob(t, o, q, claimJob(t, q, itemIDs(4)))
	require.Equal(t, 4, first.SuccessfulItems)

	second := runJob(t, o, q, claimJob(t, q, itemIDs(4)))
	assert.Equal(t, JobStatusCompleted, second.Status)
	assert.Equal(t, 4, second.SuccessfulItems, "skipped items count as successful")
	assert.Len(t, h.done, 4)
}

func TestOrchestrator_InterruptRequeuesAndResumes(t *testing.T) {
	q := NewQueue(ndtest.CreateTestDB(t))
	h := newFakeHandler()
	o := newTestOrchestrator(q, h, fastConfig(3))
	job := claimJob(t, q, itemIDs(7))

	ctx, cancel := context.WithCancel(context.Background())
	h.onItem = func(id string) {
		if id == "i-5" {
			cancel()
		}
	}
	h.blockIDs["i-5"] = true

	err := o.Run(ctx, job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInterrupted))
	assert.True(t, errors.Is(err, context.Canceled))

	requeued, err := q.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusQueued, requeued.Status)
	assert.Equal(t, 3, requeued.ProcessedItems, "only the first batch was checkpointed")

	t.Log("Resuming from the last checkpoint")
	h.onItem = nil
	h.blockIDs = map[string]bool{}
	claimed, err := q.Claim()
	require.NoError(t, err)
	require.Equal(t, job.ID, claimed.ID)

	got := runJob(t, o, q, claimed)
	assert.Equal(t, JobStatusCompleted, got.Status)
	assert.Equal(t, 7, got.ProcessedItems)
	assert.Equal(t, 7, got.SuccessfulItems)

	fetches := h.Fetches()
	assert.Equal(t, []string{"i-4", "i-5", "i-6"}, fetches[2], "resume starts after the checkpoint")
	assert.Equal(t, []string{"i-1", "i-2", "i-3", "i-4", "i-4", "i-5", "i-6", "i-7"}, h.Seen(),
		"i-4 ran in the discarded batch and again on resume")
}

func TestOrchestrator_MissingHandlerFailsJob(t *testing.T) {
	q := NewQueue(ndtest.CreateTestDB(t))
	job := claimJob(t, q, itemIDs(2))

	err := newTestOrchestrator(q, nil, fastConfig(3)).Run(context.Background(), job)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHandlerNotRegistered))

	got, err := q.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, got.Status)
	assert.Contains(t, got.LastError, testOperation)
}

func TestOrchestrator_ItemPacing(t *testing.T) {
	q := NewQueue(ndtest.CreateTestDB(t))
	h := newFakeHandler()
	job := claimJob(t, q, itemIDs(4))

	cfg := fastConfig(2)
	cfg.ItemDelay = 25 * time.Millisecond
	cfg.BatchDelay = 10 * time.Millisecond

	start := time.Now()
	got := runJob(t, newTestOrchestrator(q, h, cfg), q, job)

	assert.Equal(t, JobStatusCompleted, got.Status)
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond, "three item gaps of 25ms")
}

func TestOrchestratorConfigDefaults(t *testing.T) {
	o := NewOrchestrator(nil, NewHandlerRegistry(), OrchestratorConfig{}, nil)
	assert.Equal(t, DefaultOrchestratorConfig().BatchSize, o.config.BatchSize)
}
