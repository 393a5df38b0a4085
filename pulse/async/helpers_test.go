package async

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teranos/newsdesk/am"
)

const testOperation = "test.touch"

// fakeHandler records every fetch and item it sees. Items listed in done are skipped.
type fakeHandler struct {
	name string

	mu        sync.Mutex
	fetches   [][]string
	seen      []string
	done      map[string]bool
	failures  map[string]error
	panics    map[string]bool
	blockIDs  map[string]bool
	blockAll  bool
	fetchFail func(ids []string) error
	onItem    func(id string)
}

func newFakeHandler() *fakeHandler {
	return &fakeHandler{
		name:     testOperation,
		done:     make(map[string]bool),
		failures: make(map[string]error),
		panics:   make(map[string]bool),
		blockIDs: make(map[string]bool),
	}
}

func (h *fakeHandler) Name() string { return h.name }

func (h *fakeHandler) FetchBatch(ctx context.Context, ids []string) (Batch, error) {
	h.mu.Lock()
	h.fetches = append(h.fetches, append([]string(nil), ids...))
	fetchFail := h.fetchFail
	h.mu.Unlock()

	if fetchFail != nil {
		if err := fetchFail(ids); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *fakeHandler) Process(ctx context.Context, id string) (Outcome, error) {
	if h.onItem != nil {
		h.onItem(id)
	}

	h.mu.Lock()
	block := h.blockAll || h.blockIDs[id]
	h.mu.Unlock()
	if block {
		<-ctx.Done()
		return OutcomeUpdated, ctx.Err()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, id)

	if h.panics[id] {
		panic("boom on " + id)
	}
	if err := h.failures[id]; err != nil {
		return OutcomeUpdated, err
	}
	if h.done[id] {
		return OutcomeSkipped, nil
	}
	h.done[id] = true
	return OutcomeUpdated, nil
}

func (h *fakeHandler) Seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

func (h *fakeHandler) Fetches() [][]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]string(nil), h.fetches...)
}

func itemIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("i-%d", i+1)
	}
	return ids
}

// enqueueJob creates and persists a queued job
func enqueueJob(t *testing.T, q *Queue, ids []string) *Job {
	t.Helper()
	job, err := NewJob(testOperation, ids, "editor@test")
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(job))
	return job
}

// claimJob enqueues a job and claims it as a worker would
func claimJob(t *testing.T, q *Queue, ids []string) *Job {
	t.Helper()
	job := enqueueJob(t, q, ids)
	claimed, err := q.Claim()
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, job.ID, claimed.ID)
	return claimed
}

func fastConfig(batchSize int) OrchestratorConfig {
	return OrchestratorConfig{BatchSize: batchSize}
}

func newTestOrchestrator(q *Queue, h JobHandler, cfg OrchestratorConfig) *Orchestrator {
	registry := NewHandlerRegistry()
	if h != nil {
		registry.Register(h)
	}
	return NewOrchestrator(q, registry, cfg, nil)
}

func pulseConfigFixture() am.PulseConfig {
	return am.PulseConfig{
		Workers:            3,
		PollIntervalMS:     500,
		BatchSize:          4,
		ItemDelayMS:        250,
		BatchDelayMS:       1000,
		ItemTimeoutSeconds: 30,
	}
}
