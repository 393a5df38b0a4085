package enrich

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teranos/newsdesk/ai/schema"
	"github.com/teranos/newsdesk/am"
	"github.com/teranos/newsdesk/articles"
	"github.com/teranos/newsdesk/auth"
	ndtest "github.com/teranos/newsdesk/internal/testing"
	"github.com/teranos/newsdesk/pulse/async"
)

const generatedContext = `{"background":"The council voted in March.","why_it_matters":"Fares rise for 40,000 riders.","what_to_watch":"A second vote in June."}`

// fakeCompleter answers every request with reply unless fail returns an error for the call
type fakeCompleter struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	fail    func(call int) error
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, s *schema.Schema) (json.RawMessage, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, userPrompt)
	call := len(f.prompts)
	f.mu.Unlock()

	if f.fail != nil {
		if err := f.fail(call); err != nil {
			return nil, err
		}
	}
	reply := f.reply
	if reply == "" {
		reply = generatedContext
	}
	if err := s.Validate([]byte(reply)); err != nil {
		return nil, err
	}
	return json.RawMessage(reply), nil
}

func (f *fakeCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type countingNotifier struct {
	n atomic.Int32
}

func (c *countingNotifier) Notify() { c.n.Add(1) }

type fixture struct {
	db        *sql.DB
	store     *articles.Store
	queue     *async.Queue
	completer *fakeCompleter
	notifier  *countingNotifier
	ctrl      *Controller
}

func newFixture(t *testing.T, pageSize int) *fixture {
	t.Helper()
	db := ndtest.CreateTestDB(t)
	f := &fixture{
		db:        db,
		store:     articles.NewStore(db, articles.DialectSQLite, nil),
		queue:     async.NewQueue(db),
		completer: &fakeCompleter{},
		notifier:  &countingNotifier{},
	}
	enricher := NewEnricher(f.completer, am.EnrichmentConfig{}, nil)
	f.ctrl = NewController(f.store, f.queue, enricher, f.notifier, pageSize, nil)
	return f
}

// seed stores n published articles art-1..art-n
func (f *fixture) seed(t *testing.T, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		require.NoError(t, f.store.Upsert(context.Background(), &articles.Article{
			ID:       fmt.Sprintf("art-%d", i),
			Title:    fmt.Sprintf("Story %d", i),
			Excerpt:  "What happened",
			Content:  articles.PlainContent("Full text of the story."),
			Status:   articles.StatusPublished,
			Category: "city",
		}))
	}
}

func adminCtx() context.Context {
	return auth.WithActor(context.Background(), &auth.Actor{ID: "editor@newsdesk", Admin: true})
}

// runQueued drives every queued job to a terminal state with the real orchestrator
func (f *fixture) runQueued(t *testing.T, batchSize int) {
	t.Helper()
	registry := async.NewHandlerRegistry()
	registry.Register(NewContextHandler(f.store, NewEnricher(f.completer, am.EnrichmentConfig{}, nil), nil))
	orch := async.NewOrchestrator(f.queue, registry, async.OrchestratorConfig{BatchSize: batchSize}, nil)

	for {
		job, err := f.queue.Claim()
		require.NoError(t, err)
		if job == nil {
			return
		}
		require.NoError(t, orch.Run(context.Background(), job))
	}
}
