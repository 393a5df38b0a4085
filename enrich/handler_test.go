package enrich

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/newsdesk/articles"
	"github.com/teranos/newsdesk/errors"
	"github.com/teranos/newsdesk/pulse/async"
)

func TestContextHandler_Process(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.seed(t, 2)

	var existing articles.TLDR
	require.NoError(t, json.Unmarshal([]byte(`{"summary":"Fares up","key_points":["7-4 vote"],"audio_url":"https://cdn/a.mp3"}`), &existing))
	require.NoError(t, f.store.Update(ctx, "art-1", articles.Patch{TLDR: &existing}))

	complete := existing.WithContext(articles.EditorialContext{Background: "b", WhyItMatters: "w", WhatToWatch: "n"})
	require.NoError(t, f.store.Update(ctx, "art-2", articles.Patch{TLDR: complete}))

	h := NewContextHandler(f.store, f.ctrl.enricher, nil)
	assert.Equal(t, OperationType, h.Name())

	batch, err := h.FetchBatch(ctx, []string{"art-1", "art-2", "art-404"})
	require.NoError(t, err)

	t.Run("generates and merges", func(t *testing.T) {
		outcome, err := batch.Process(ctx, "art-1")
		require.NoError(t, err)
		assert.Equal(t, async.OutcomeUpdated, outcome)

		stored, err := f.store.Get(ctx, "art-1")
		require.NoError(t, err)
		require.True(t, stored.TLDR.HasCompleteContext())
		assert.Equal(t, "The council voted in March.", stored.TLDR.Context.Background)
		assert.Equal(t, "Fares up", stored.TLDR.Summary, "siblings carried forward")
		assert.Equal(t, []string{"7-4 vote"}, stored.TLDR.KeyPoints)

		raw, err := json.Marshal(stored.TLDR)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"audio_url":"https://cdn/a.mp3"`, "unknown keys survive")
	})

	t.Run("already enriched is skipped", func(t *testing.T) {
		calls := f.completer.Calls()
		outcome, err := batch.Process(ctx, "art-2")
		require.NoError(t, err)
		assert.Equal(t, async.OutcomeSkipped, outcome)
		assert.Equal(t, calls, f.completer.Calls(), "no completion call for enriched articles")

		stored, err := f.store.Get(ctx, "art-2")
		require.NoError(t, err)
		assert.Equal(t, "b", stored.TLDR.Context.Background)
	})

	t.Run("missing article fails the item", func(t *testing.T) {
		_, err := batch.Process(ctx, "art-404")
		require.Error(t, err)
		assert.True(t, errors.IsNotFoundError(err))
	})
}

func TestContextHandler_CompletionFailureLeavesArticle(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.seed(t, 1)
	f.completer.fail = func(int) error { return errors.New("boom") }

	h := NewContextHandler(f.store, f.ctrl.enricher, nil)
	batch, err := h.FetchBatch(ctx, []string{"art-1"})
	require.NoError(t, err)

	_, err = batch.Process(ctx, "art-1")
	require.Error(t, err)

	stored, err := f.store.Get(ctx, "art-1")
	require.NoError(t, err)
	assert.Nil(t, stored.TLDR)
}
