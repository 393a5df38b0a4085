package openrouter

import (
	"time"

	"github.com/teranos/newsdesk/ai/tracker"
	"github.com/teranos/newsdesk/logger"
)

type usageCall struct {
	started    time.Time
	statusCode int
	entity     entity
}

// track records one call. Tracking failures are logged, never returned.
func (c *Client) track(call usageCall, usage *Usage, callErr error) {
	if c.usageTracker == nil {
		return
	}

	finished := time.Now()
	row := &tracker.ModelUsage{
		OperationType:     c.config.OperationType,
		EntityType:        call.entity.kind,
		EntityID:          call.entity.id,
		ModelName:         c.config.Model,
		ModelProvider:     "openrouter",
		RequestTimestamp:  call.started,
		ResponseTimestamp: &finished,
		Success:           callErr == nil,
	}
	if call.statusCode != 0 {
		code := call.statusCode
		row.StatusCode = &code
	}
	if usage != nil {
		prompt, completion, total := usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens
		row.PromptTokens = &prompt
		row.CompletionTokens = &completion
		row.TokensUsed = &total
	}
	if callErr != nil {
		msg := callErr.Error()
		row.ErrorMessage = &msg
	}

	if err := c.usageTracker.TrackUsage(row); err != nil {
		c.logger.Warnw("Failed to track usage",
			logger.FieldError, err,
			logger.FieldModel, c.config.Model,
		)
	}
}
