package facts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"github.com/teranos/FINQ/db"
	"github.com/teranos/FINQ/errors"
)

// Store persists canonical records in the financial_records table.
type Store struct {
	db      *sql.DB
	dialect db.Dialect
	logger  *zap.SugaredLogger
}

// NewStore creates a store over an already migrated database.
func NewStore(database *sql.DB, dialect db.Dialect, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{db: database, dialect: dialect, logger: logger}
}

// DB exposes the underlying handle for collaborators sharing the database.
func (s *Store) DB() *sql.DB {
	return s.db
}

const recordColumns = `id, dataset_id, period_start, period_end, metric, amount, currency, category, sub_category, raw_source_id`

var insertColumns = []string{
	"dataset_id", "period_start", "period_end", "metric", "amount",
	"currency", "category", "sub_category", "raw_source_id",
}

// AddRecords proposes each record independently and reports a per-record
// outcome. Each insert is its own commit, so a failing record never undoes
// or blocks the others. The returned error is non-nil only when ctx is
// cancelled or the database is closed mid-batch; the partial result is
// returned alongside it.
func (s *Store) AddRecords(ctx context.Context, records []Record) (*AddResult, error) {
	result := &AddResult{Outcomes: make([]Outcome, 0, len(records))}

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, errors.Wrapf(err, "add records interrupted after %d of %d", i, len(records))
		}

		outcome := s.Add(ctx, rec)
		if outcome.Status == Failed && db.IsDatabaseClosed(outcome.Err) {
			result.record(outcome)
			return result, errors.Wrap(db.ErrDatabaseClosed, "add records")
		}
		if outcome.Status == Failed {
			s.logger.Warnw("Record not stored",
				"dataset_id", rec.DatasetID,
				"metric", rec.Metric,
				"index", i,
				"error", outcome.Err,
			)
		}
		result.record(outcome)
	}

	s.logger.Debugw("Records proposed",
		"total", result.Total,
		"added", result.Added,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}

// Add inserts one record unless an identical one already exists.
func (s *Store) Add(ctx context.Context, rec Record) Outcome {
	if err := rec.Validate(); err != nil {
		return Outcome{Status: Failed, Reason: err.Error(), Err: err}
	}

	query := s.dialect.InsertIgnore("financial_records", insertColumns...)

	res, err := s.db.ExecContext(ctx, query,
		rec.DatasetID,
		rec.PeriodStart.String(),
		rec.PeriodEnd.String(),
		rec.Metric,
		rec.Amount,
		rec.Currency,
		rec.Category,
		rec.SubCategory,
		rec.RawSourceID,
	)
	if err != nil {
		err = errors.Wrapf(err, "insert %s", rec.SourceKey())
		return Outcome{Status: Failed, Reason: err.Error(), Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		err = errors.Wrap(err, "rows affected")
		return Outcome{Status: Failed, Reason: err.Error(), Err: err}
	}
	if n == 0 {
		return Outcome{Status: Skipped, Reason: ReasonDuplicate}
	}
	return Outcome{Status: Inserted}
}

// List returns records matching f ordered by period, metric and insertion.
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	qb := f.builder()
	query := "SELECT " + recordColumns + " FROM financial_records"
	if where := qb.build(); where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY period_start, metric, id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
		if f.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", f.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, qb.args...)
	if err != nil {
		return nil, errors.Wrap(err, "list records")
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate records")
	}
	return records, nil
}

// Count returns the number of records matching f. Limit and Offset are ignored.
func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}

	qb := f.builder()
	query := "SELECT COUNT(*) FROM financial_records"
	if where := qb.build(); where != "" {
		query += " WHERE " + where
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, qb.args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count records")
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec                  Record
		start, end           string
		category, sub, rawID sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.DatasetID, &start, &end, &rec.Metric, &rec.Amount,
		&rec.Currency, &category, &sub, &rawID); err != nil {
		return Record{}, errors.Wrap(err, "scan record")
	}

	var err error
	if rec.PeriodStart, err = civil.ParseDate(strings.TrimSpace(start)); err != nil {
		return Record{}, errors.Wrapf(err, "record %d period_start", rec.ID)
	}
	if rec.PeriodEnd, err = civil.ParseDate(strings.TrimSpace(end)); err != nil {
		return Record{}, errors.Wrapf(err, "record %d period_end", rec.ID)
	}
	rec.Category = nullString(category)
	rec.SubCategory = nullString(sub)
	rec.RawSourceID = nullString(rawID)
	return rec, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
