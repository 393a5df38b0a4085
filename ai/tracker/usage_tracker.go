// Package tracker records completion-service usage in the model_usage table.
package tracker

import (
	"database/sql"
	"time"

	"github.com/teranos/newsdesk/errors"
)

// ModelUsage represents one completion call, successful or not
type ModelUsage struct {
	ID                int        `json:"id"`
	OperationType     string     `json:"operation_type"`
	EntityType        string     `json:"entity_type"`
	EntityID          string     `json:"entity_id"`
	ModelName         string     `json:"model_name"`
	ModelProvider     string     `json:"model_provider"`
	RequestTimestamp  time.Time  `json:"request_timestamp"`
	ResponseTimestamp *time.Time `json:"response_timestamp,omitempty"`
	PromptTokens      *int       `json:"prompt_tokens,omitempty"`
	CompletionTokens  *int       `json:"completion_tokens,omitempty"`
	TokensUsed        *int       `json:"tokens_used,omitempty"`
	Success           bool       `json:"success"`
	StatusCode        *int       `json:"status_code,omitempty"`
	ErrorMessage      *string    `json:"error_message,omitempty"`
}

// UsageTracker writes and aggregates usage rows
type UsageTracker struct {
	db *sql.DB
}

// NewUsageTracker creates a new usage tracker
func NewUsageTracker(db *sql.DB) *UsageTracker {
	return &UsageTracker{db: db}
}

// TrackUsage records one completion call
func (t *UsageTracker) TrackUsage(usage *ModelUsage) error {
	query := `
		INSERT INTO model_usage (
			operation_type, entity_type, entity_id, model_name, model_provider,
			request_timestamp, response_timestamp, prompt_tokens, completion_tokens,
			tokens_used, success, status_code, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var responseTimestamp interface{}
	if usage.ResponseTimestamp != nil {
		responseTimestamp = usage.ResponseTimestamp.UTC()
	}

	_, err := t.db.Exec(query,
		usage.OperationType, usage.EntityType, usage.EntityID,
		usage.ModelName, usage.ModelProvider,
		usage.RequestTimestamp.UTC(), responseTimestamp,
		usage.PromptTokens, usage.CompletionTokens, usage.TokensUsed,
		usage.Success, usage.StatusCode, usage.ErrorMessage,
	)
	if err != nil {
		return errors.Wrap(err, "failed to record model usage")
	}
	return nil
}

// UsageStats represents aggregated usage statistics
type UsageStats struct {
	TotalRequests      int     `json:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests"`
	SuccessRate        float64 `json:"success_rate"`
	TotalTokens        int     `json:"total_tokens"`
	UniqueModels       int     `json:"unique_models"`
}

// GetUsageStats returns usage statistics since the given time
func (t *UsageTracker) GetUsageStats(since time.Time) (*UsageStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN success = 1 THEN 1 END),
			COALESCE(SUM(COALESCE(tokens_used, 0)), 0),
			COUNT(DISTINCT model_name)
		FROM model_usage
		WHERE request_timestamp >= ?`

	var stats UsageStats
	err := t.db.QueryRow(query, since.UTC()).Scan(
		&stats.TotalRequests, &stats.SuccessfulRequests,
		&stats.TotalTokens, &stats.UniqueModels,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate model usage")
	}

	if stats.TotalRequests > 0 {
		stats.SuccessRate = float64(stats.SuccessfulRequests) / float64(stats.TotalRequests)
	}
	return &stats, nil
}

// ModelBreakdown represents usage for one model
type ModelBreakdown struct {
	ModelName     string `json:"model_name"`
	ModelProvider string `json:"model_provider"`
	RequestCount  int    `json:"request_count"`
	FailedCount   int    `json:"failed_count"`
	TotalTokens   int    `json:"total_tokens"`
}

// GetModelBreakdown returns usage grouped by model since the given time, busiest first
func (t *UsageTracker) GetModelBreakdown(since time.Time) ([]ModelBreakdown, error) {
	query := `
		SELECT
			model_name,
			model_provider,
			COUNT(*) AS request_count,
			COUNT(CASE WHEN success = 0 THEN 1 END),
			COALESCE(SUM(COALESCE(tokens_used, 0)), 0)
		FROM model_usage
		WHERE request_timestamp >= ?
		GROUP BY model_name, model_provider
		ORDER BY request_count DESC, model_name ASC`

	rows, err := t.db.Query(query, since.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "failed to query model breakdown")
	}
	defer rows.Close()

	var breakdown []ModelBreakdown
	for rows.Next() {
		var mb ModelBreakdown
		if err := rows.Scan(&mb.ModelName, &mb.ModelProvider, &mb.RequestCount, &mb.FailedCount, &mb.TotalTokens); err != nil {
			return nil, errors.Wrap(err, "failed to scan model breakdown")
		}
		breakdown = append(breakdown, mb)
	}
	return breakdown, errors.Wrap(rows.Err(), "model breakdown rows")
}
