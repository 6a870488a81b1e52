package facts

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/teranos/FINQ/errors"
)

// DatasetSummary describes one ingested dataset.
type DatasetSummary struct {
	DatasetID  string     `json:"dataset_id"`
	Records    int        `json:"records"`
	Metrics    int        `json:"metrics"`
	FirstStart civil.Date `json:"first_period_start"`
	LastEnd    civil.Date `json:"last_period_end"`
}

// Datasets lists every dataset with record counts and period coverage.
func (s *Store) Datasets(ctx context.Context) ([]DatasetSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dataset_id, COUNT(*), COUNT(DISTINCT metric), MIN(period_start), MAX(period_end)
		FROM financial_records
		GROUP BY dataset_id
		ORDER BY dataset_id`)
	if err != nil {
		return nil, errors.Wrap(err, "list datasets")
	}
	defer rows.Close()

	summaries := []DatasetSummary{}
	for rows.Next() {
		var (
			sum        DatasetSummary
			first, end string
		)
		if err := rows.Scan(&sum.DatasetID, &sum.Records, &sum.Metrics, &first, &end); err != nil {
			return nil, errors.Wrap(err, "scan dataset summary")
		}
		if sum.FirstStart, err = civil.ParseDate(first); err != nil {
			return nil, errors.Wrapf(err, "dataset %s first period", sum.DatasetID)
		}
		if sum.LastEnd, err = civil.ParseDate(end); err != nil {
			return nil, errors.Wrapf(err, "dataset %s last period", sum.DatasetID)
		}
		summaries = append(summaries, sum)
	}
	return summaries, errors.Wrap(rows.Err(), "iterate datasets")
}

// DeleteDataset removes every record of a dataset and returns how many were
// removed. An unknown dataset yields ErrNotFound.
func (s *Store) DeleteDataset(ctx context.Context, datasetID string) (int64, error) {
	if strings.TrimSpace(datasetID) == "" {
		return 0, errors.NewInvalidRequestError("dataset id is required")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM financial_records WHERE dataset_id = ?`, datasetID)
	if err != nil {
		return 0, errors.Wrapf(err, "delete dataset %s", datasetID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return 0, errors.NewNotFoundError("dataset %s", datasetID)
	}

	s.logger.Infow("Dataset deleted", "dataset_id", datasetID, "count", n)
	return n, nil
}

// MonthTotal is the summed amount of one metric for records whose period
// starts in Month.
type MonthTotal struct {
	Month civil.Date // first day of the month
	Total decimal.Decimal
}

// MonthlyTotals aggregates a metric by the calendar month of period_start,
// oldest first. Records of every dataset contribute.
func (s *Store) MonthlyTotals(ctx context.Context, metric string) ([]MonthTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT SUBSTR(period_start, 1, 7) AS month, SUM(amount)
		FROM financial_records
		WHERE metric = ?
		GROUP BY month
		ORDER BY month`, strings.ToLower(metric))
	if err != nil {
		return nil, errors.Wrapf(err, "monthly totals for %s", metric)
	}
	defer rows.Close()

	var totals []MonthTotal
	for rows.Next() {
		var (
			month string
			mt    MonthTotal
		)
		if err := rows.Scan(&month, &mt.Total); err != nil {
			return nil, errors.Wrap(err, "scan monthly total")
		}
		if mt.Month, err = civil.ParseDate(month + "-01"); err != nil {
			return nil, errors.Wrapf(err, "month %q", month)
		}
		totals = append(totals, mt)
	}
	return totals, errors.Wrap(rows.Err(), "iterate monthly totals")
}

// Run is the audit row written after each ingestion.
type Run struct {
	ID         int64         `json:"id,omitempty"`
	DatasetID  string        `json:"dataset_id"`
	File       string        `json:"file"`
	Format     string        `json:"format"`
	Total      int           `json:"total"`
	Added      int           `json:"added"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
	CreatedAt  string        `json:"created_at,omitempty"`
}

// RecordRun appends an ingestion audit row.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (dataset_id, file, format, total, added, skipped, failed, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.DatasetID, run.File, run.Format, run.Total, run.Added, run.Skipped, run.Failed,
		run.Duration.Milliseconds(),
	)
	return errors.Wrapf(err, "record ingest run for %s", run.DatasetID)
}

// Runs returns the most recent ingestion runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dataset_id, file, format, total, added, skipped, failed, duration_ms, created_at
		FROM ingest_runs
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list ingest runs")
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run Run
			ms  int64
		)
		if err := rows.Scan(&run.ID, &run.DatasetID, &run.File, &run.Format, &run.Total,
			&run.Added, &run.Skipped, &run.Failed, &ms, &run.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan ingest run")
		}
		run.Duration = time.Duration(ms) * time.Millisecond
		run.DurationMS = ms
		runs = append(runs, run)
	}
	return runs, errors.Wrap(rows.Err(), "iterate ingest runs")
}
