// Package enrich generates editorial context for articles and runs it as a
// batch job: the per-item routine, the job handler the orchestrator drives,
// and the controller behind the preview/start/status/cancel actions.
package enrich

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/teranos/newsdesk/ai/openrouter"
	"github.com/teranos/newsdesk/ai/schema"
	"github.com/teranos/newsdesk/am"
	"github.com/teranos/newsdesk/articles"
	"github.com/teranos/newsdesk/errors"
	"github.com/teranos/newsdesk/logger"
)

// DefaultMaxSourceChars bounds the article text sent with each request, in runes
const DefaultMaxSourceChars = 6000

const defaultSystemPrompt = `You are a senior news editor. For the article you are given, write an editorial context block for readers:
- background: the events and facts a reader needs to follow the story (2-3 sentences)
- why_it_matters: who is affected and how (1-2 sentences)
- what_to_watch: the next developments to follow (1-2 sentences)
Use only information from the article. Write plain prose without markdown.`

// ContextSchema is the structured output every completion must match
var ContextSchema = schema.MustCompile("editorial_context", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"background":     map[string]any{"type": "string", "minLength": 1, "description": "Background the reader needs"},
		"why_it_matters": map[string]any{"type": "string", "minLength": 1, "description": "Why the story matters"},
		"what_to_watch":  map[string]any{"type": "string", "minLength": 1, "description": "What to watch next"},
	},
	"required":             []any{"background", "why_it_matters", "what_to_watch"},
	"additionalProperties": false,
})

// Completer requests one structured completion validated against s
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, s *schema.Schema) (json.RawMessage, error)
}

// Enricher turns one article into an EditorialContext. It never persists anything.
type Enricher struct {
	client         Completer
	systemPrompt   string
	maxSourceChars int
	logger         *zap.SugaredLogger
}

// NewEnricher creates an enricher; zero config values select the defaults
func NewEnricher(client Completer, cfg am.EnrichmentConfig, log *zap.SugaredLogger) *Enricher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	e := &Enricher{
		client:         client,
		systemPrompt:   cfg.SystemPrompt,
		maxSourceChars: cfg.MaxSourceChars,
		logger:         log.Named("enrich"),
	}
	if strings.TrimSpace(e.systemPrompt) == "" {
		e.systemPrompt = defaultSystemPrompt
	}
	if e.maxSourceChars <= 0 {
		e.maxSourceChars = DefaultMaxSourceChars
	}
	return e
}

// BuildPrompt renders the user prompt for a: title, excerpt and the body text
// cut to the source limit
func (e *Enricher) BuildPrompt(a *articles.Article) string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(strings.TrimSpace(a.Title))
	b.WriteString("\n")
	if excerpt := strings.TrimSpace(a.Excerpt); excerpt != "" {
		b.WriteString("Excerpt: ")
		b.WriteString(excerpt)
		b.WriteString("\n")
	}
	if body := truncateRunes(strings.TrimSpace(a.Content.Text()), e.maxSourceChars); body != "" {
		b.WriteString("\nArticle:\n")
		b.WriteString(body)
		b.WriteString("\n")
	}
	return b.String()
}

// Generate requests editorial context for a. Completion errors keep their
// openrouter identity; unusable output is marked openrouter.ErrMalformedResponse.
func (e *Enricher) Generate(ctx context.Context, a *articles.Article) (*articles.EditorialContext, error) {
	ctx = openrouter.WithEntity(ctx, "article", a.ID)

	raw, err := e.client.Complete(ctx, e.systemPrompt, e.BuildPrompt(a), ContextSchema)
	if err != nil {
		return nil, err
	}

	var ec articles.EditorialContext
	if err := json.Unmarshal(raw, &ec); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to decode editorial context"), openrouter.ErrMalformedResponse)
	}
	if !ec.IsComplete() {
		return nil, errors.Wrap(openrouter.ErrMalformedResponse, "editorial context has blank fields")
	}

	ec.Background = strings.TrimSpace(ec.Background)
	ec.WhyItMatters = strings.TrimSpace(ec.WhyItMatters)
	ec.WhatToWatch = strings.TrimSpace(ec.WhatToWatch)

	e.logger.Debugw("Editorial context generated", logger.FieldItemID, a.ID)
	return &ec, nil
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
