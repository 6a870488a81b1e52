// Package tracker records language model calls in the ai_model_usage table
// and aggregates them for reporting.
package tracker

import (
	"context"
	"database/sql"
	"time"

	"github.com/teranos/FINQ/errors"
)

// ModelUsage represents a record of AI model usage
type ModelUsage struct {
	ID                int64      `json:"id"`
	OperationType     string     `json:"operation_type"`
	ModelName         string     `json:"model_name"`
	ModelProvider     string     `json:"model_provider"`
	RequestTimestamp  time.Time  `json:"request_timestamp"`
	ResponseTimestamp *time.Time `json:"response_timestamp,omitempty"`
	PromptTokens      *int       `json:"prompt_tokens,omitempty"`
	CompletionTokens  *int       `json:"completion_tokens,omitempty"`
	Cost              *float64   `json:"cost,omitempty"`
	Success           bool       `json:"success"`
	ErrorMessage      *string    `json:"error_message,omitempty"`
}

// UsageTracker provides functionality to track AI model usage
type UsageTracker struct {
	db *sql.DB
}

// NewUsageTracker creates a new AI usage tracker
func NewUsageTracker(db *sql.DB) *UsageTracker {
	return &UsageTracker{db: db}
}

// TrackUsage records AI model usage in the database. Timestamps are stored
// in UTC so range filters compare consistently.
func (t *UsageTracker) TrackUsage(usage *ModelUsage) error {
	query := `
		INSERT INTO ai_model_usage (
			operation_type, model_name, model_provider,
			request_timestamp, response_timestamp,
			prompt_tokens, completion_tokens, cost, success, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var responseTS interface{}
	if usage.ResponseTimestamp != nil {
		responseTS = usage.ResponseTimestamp.UTC()
	}

	_, err := t.db.Exec(query,
		usage.OperationType, usage.ModelName, usage.ModelProvider,
		usage.RequestTimestamp.UTC(), responseTS,
		usage.PromptTokens, usage.CompletionTokens, usage.Cost,
		usage.Success, usage.ErrorMessage,
	)
	return errors.Wrap(err, "insert ai_model_usage")
}

// UsageStats represents aggregated usage statistics
type UsageStats struct {
	TotalRequests      int     `json:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests"`
	SuccessRate        float64 `json:"success_rate"`
	PromptTokens       int     `json:"prompt_tokens"`
	CompletionTokens   int     `json:"completion_tokens"`
	TotalTokens        int     `json:"total_tokens"`
	TotalCost          float64 `json:"total_cost"`
	UniqueModels       int     `json:"unique_models"`
}

// GetUsageStats returns usage statistics for a given time period
func (t *UsageTracker) GetUsageStats(since time.Time) (*UsageStats, error) {
	query := `
		SELECT
			COUNT(*) as total_requests,
			COUNT(CASE WHEN success = 1 THEN 1 END) as successful_requests,
			COALESCE(SUM(COALESCE(prompt_tokens, 0)), 0) as prompt_tokens,
			COALESCE(SUM(COALESCE(completion_tokens, 0)), 0) as completion_tokens,
			COALESCE(SUM(COALESCE(cost, 0)), 0) as total_cost,
			COUNT(DISTINCT model_name) as unique_models
		FROM ai_model_usage
		WHERE request_timestamp >= ?`

	var stats UsageStats
	err := t.db.QueryRow(query, since.UTC()).Scan(
		&stats.TotalRequests, &stats.SuccessfulRequests,
		&stats.PromptTokens, &stats.CompletionTokens,
		&stats.TotalCost, &stats.UniqueModels,
	)
	if err != nil {
		return nil, errors.Wrap(err, "usage stats")
	}

	stats.TotalTokens = stats.PromptTokens + stats.CompletionTokens
	if stats.TotalRequests > 0 {
		stats.SuccessRate = float64(stats.SuccessfulRequests) / float64(stats.TotalRequests)
	}

	return &stats, nil
}

// ModelBreakdown represents usage statistics for a specific model
type ModelBreakdown struct {
	ModelName     string  `json:"model_name"`
	ModelProvider string  `json:"model_provider"`
	RequestCount  int     `json:"request_count"`
	TotalTokens   int     `json:"total_tokens"`
	TotalCost     float64 `json:"total_cost"`
}

// GetModelBreakdown returns successful usage grouped by model, most
// expensive first
func (t *UsageTracker) GetModelBreakdown(since time.Time) ([]ModelBreakdown, error) {
	query := `
		SELECT
			model_name,
			model_provider,
			COUNT(*) as request_count,
			COALESCE(SUM(COALESCE(prompt_tokens, 0) + COALESCE(completion_tokens, 0)), 0) as total_tokens,
			COALESCE(SUM(COALESCE(cost, 0)), 0) as total_cost
		FROM ai_model_usage
		WHERE request_timestamp >= ? AND success = 1
		GROUP BY model_name, model_provider
		ORDER BY total_cost DESC, model_name`

	rows, err := t.db.Query(query, since.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "model breakdown")
	}
	defer rows.Close()

	breakdown := []ModelBreakdown{}
	for rows.Next() {
		var mb ModelBreakdown
		if err := rows.Scan(&mb.ModelName, &mb.ModelProvider, &mb.RequestCount,
			&mb.TotalTokens, &mb.TotalCost); err != nil {
			return nil, errors.Wrap(err, "scan model breakdown")
		}
		breakdown = append(breakdown, mb)
	}
	return breakdown, errors.Wrap(rows.Err(), "iterate model breakdown")
}

// Report bundles the aggregate view served by the usage endpoint.
type Report struct {
	Since  time.Time        `json:"since"`
	Stats  *UsageStats      `json:"stats"`
	Models []ModelBreakdown `json:"models"`
}

// GetReport aggregates usage over the last days days.
func (t *UsageTracker) GetReport(ctx context.Context, days int) (*Report, error) {
	if days <= 0 {
		return nil, errors.NewInvalidRequestError("days must be positive, got %d", days)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	stats, err := t.GetUsageStats(since)
	if err != nil {
		return nil, err
	}
	models, err := t.GetModelBreakdown(since)
	if err != nil {
		return nil, err
	}
	return &Report{Since: since, Stats: stats, Models: models}, nil
}
