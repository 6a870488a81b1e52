package tracker

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/FINQ/errors"
	finqtest "github.com/teranos/FINQ/internal/testing"
	"github.com/teranos/FINQ/internal/util"
)

func usage(model string, at time.Time, prompt, completion int, cost float64, ok bool) *ModelUsage {
	u := &ModelUsage{
		OperationType:    "nl-query",
		ModelName:        model,
		ModelProvider:    "openrouter",
		RequestTimestamp: at,
		PromptTokens:     util.Ptr(prompt),
		CompletionTokens: util.Ptr(completion),
		Cost:             util.Ptr(cost),
		Success:          ok,
	}
	if !ok {
		u.ErrorMessage = util.Ptr("status 500")
		u.PromptTokens, u.CompletionTokens, u.Cost = nil, nil, nil
	}
	return u
}

func TestTrackUsageAndStats(t *testing.T) {
	tracker := NewUsageTracker(finqtest.CreateTestDB(t))
	now := time.Now()

	require.NoError(t, tracker.TrackUsage(usage("openai/gpt-4o-mini", now.Add(-time.Hour), 100, 20, 0.01, true)))
	require.NoError(t, tracker.TrackUsage(usage("openai/gpt-4o-mini", now.Add(-30*time.Minute), 200, 40, 0.02, true)))
	require.NoError(t, tracker.TrackUsage(usage("openai/gpt-4o", now.Add(-10*time.Minute), 0, 0, 0, false)))
	require.NoError(t, tracker.TrackUsage(usage("openai/gpt-4o", now.AddDate(0, 0, -30), 999, 999, 9, true)))

	stats, err := tracker.GetUsageStats(now.Add(-24 * time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalRequests)
	assert.Equal(t, 2, stats.SuccessfulRequests)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 1e-9)
	assert.Equal(t, 300, stats.PromptTokens)
	assert.Equal(t, 60, stats.CompletionTokens)
	assert.Equal(t, 360, stats.TotalTokens)
	assert.InDelta(t, 0.03, stats.TotalCost, 1e-9)
	assert.Equal(t, 2, stats.UniqueModels)
}

func TestGetUsageStats_Empty(t *testing.T) {
	tracker := NewUsageTracker(finqtest.CreateTestDB(t))

	stats, err := tracker.GetUsageStats(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRequests)
	assert.Zero(t, stats.SuccessRate)
}

func TestGetModelBreakdown(t *testing.T) {
	tracker := NewUsageTracker(finqtest.CreateTestDB(t))
	now := time.Now()

	require.NoError(t, tracker.TrackUsage(usage("cheap", now, 10, 10, 0.001, true)))
	require.NoError(t, tracker.TrackUsage(usage("pricey", now, 10, 10, 0.5, true)))
	require.NoError(t, tracker.TrackUsage(usage("pricey", now, 5, 5, 0.5, true)))
	require.NoError(t, tracker.TrackUsage(usage("broken", now, 0, 0, 0, false)))

	breakdown, err := tracker.GetModelBreakdown(now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, breakdown, 2, "failed calls are excluded")

	assert.Equal(t, "pricey", breakdown[0].ModelName)
	assert.Equal(t, 2, breakdown[0].RequestCount)
	assert.Equal(t, 30, breakdown[0].TotalTokens)
	assert.InDelta(t, 1.0, breakdown[0].TotalCost, 1e-9)
	assert.Equal(t, "cheap", breakdown[1].ModelName)
}

func TestGetReport(t *testing.T) {
	tracker := NewUsageTracker(finqtest.CreateTestDB(t))
	require.NoError(t, tracker.TrackUsage(usage("m", time.Now(), 1, 1, 0.1, true)))

	report, err := tracker.GetReport(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stats.TotalRequests)
	assert.Len(t, report.Models, 1)

	_, err = tracker.GetReport(context.Background(), 0)
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestTrackUsage_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ai_model_usage")).
		WithArgs(
			"nl-query", "openai/gpt-4o-mini", "openrouter",
			at.UTC(), nil,
			100, 20, 0.01, true, nil,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	tracker := NewUsageTracker(db)
	require.NoError(t, tracker.TrackUsage(usage("openai/gpt-4o-mini", at, 100, 20, 0.01, true)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUsageStats_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"total_requests", "successful_requests", "prompt_tokens", "completion_tokens", "total_cost", "unique_models",
	}).AddRow(4, 3, 400, 100, 0.25, 2)

	mock.ExpectQuery(regexp.QuoteMeta("FROM ai_model_usage")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	stats, err := NewUsageTracker(db).GetUsageStats(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 500, stats.TotalTokens)
	assert.InDelta(t, 0.75, stats.SuccessRate, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUsageStats_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("no such table: ai_model_usage"))

	_, err = NewUsageTracker(db).GetUsageStats(time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage stats")
}
