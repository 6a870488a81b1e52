package facts

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/FINQ/db"
	"github.com/teranos/FINQ/errors"
	finqtest "github.com/teranos/FINQ/internal/testing"
	"github.com/teranos/FINQ/internal/util"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(finqtest.CreateTestDB(t), db.SQLite, zaptest.NewLogger(t).Sugar())
}

func date(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func rec(dataset, metric, start, end, amount string, rawID *string) Record {
	return Record{
		DatasetID:   dataset,
		PeriodStart: date(start),
		PeriodEnd:   date(end),
		Metric:      metric,
		Amount:      decimal.RequireFromString(amount),
		Currency:    DefaultCurrency,
		RawSourceID: rawID,
	}
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	records := []Record{
		rec("ds1", "revenue", "2024-01-15", "2024-01-15", "1200.5", util.Ptr("q1")),
		rec("ds1", "expense", "2024-01-15", "2024-01-15", "300", util.Ptr("q1")),
		rec("ds1", "revenue", "2024-02-10", "2024-02-10", "800", util.Ptr("q2")),
		rec("ds2", "revenue", "2024-04-01", "2024-06-30", "5000", nil),
	}
	cogs := rec("ds2", "cogs", "2024-04-01", "2024-06-30", "-1500.25", util.Ptr("r9"))
	cogs.Category = util.Ptr("operating")
	records = append(records, cogs)

	res, err := s.AddRecords(context.Background(), records)
	require.NoError(t, err)
	require.Equal(t, len(records), res.Added)
}

func TestAddRecords_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []Record{
		rec("ds1", "revenue", "2024-01-15", "2024-01-15", "1000", util.Ptr("r1")),
		rec("ds1", "expense", "2024-01-15", "2024-01-15", "400", util.Ptr("r1")),
	}

	first, err := s.AddRecords(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Added)
	assert.Equal(t, 0, first.Skipped)

	second, err := s.AddRecords(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 2, second.Total)
	for _, o := range second.Outcomes {
		assert.Equal(t, Skipped, o.Status)
		assert.Equal(t, ReasonDuplicate, o.Reason)
	}

	n, err := s.Count(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAddRecords_Identity(t *testing.T) {
	tests := []struct {
		name      string
		first     Record
		second    Record
		wantAdded int
	}{
		{
			name:      "null raw ids collide",
			first:     rec("ds", "revenue", "2024-01-01", "2024-03-31", "10", nil),
			second:    rec("ds", "revenue", "2024-01-01", "2024-03-31", "99", nil),
			wantAdded: 1,
		},
		{
			name:      "distinct raw ids coexist",
			first:     rec("ds", "revenue", "2024-01-01", "2024-03-31", "10", util.Ptr("a")),
			second:    rec("ds", "revenue", "2024-01-01", "2024-03-31", "10", util.Ptr("b")),
			wantAdded: 2,
		},
		{
			name:      "datasets are separate",
			first:     rec("ds1", "revenue", "2024-01-01", "2024-01-01", "10", nil),
			second:    rec("ds2", "revenue", "2024-01-01", "2024-01-01", "10", nil),
			wantAdded: 2,
		},
		{
			name:      "period end is part of identity",
			first:     rec("ds", "revenue", "2024-01-01", "2024-01-31", "10", nil),
			second:    rec("ds", "revenue", "2024-01-01", "2024-03-31", "10", nil),
			wantAdded: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			res, err := s.AddRecords(context.Background(), []Record{tt.first, tt.second})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAdded, res.Added)
			assert.Equal(t, 2-tt.wantAdded, res.Skipped)
		})
	}
}

func TestAddRecords_InvalidRecordDoesNotAbort(t *testing.T) {
	s := newTestStore(t)

	bad := rec("ds", "Revenue", "2024-01-01", "2024-01-01", "1", nil)
	empty := rec("ds", "", "2024-01-01", "2024-01-01", "1", nil)
	good := rec("ds", "revenue", "2024-01-01", "2024-01-01", "1", nil)

	res, err := s.AddRecords(context.Background(), []Record{bad, empty, good})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, Failed, res.Outcomes[0].Status)
	assert.Contains(t, res.Outcomes[0].Reason, "lowercase")
	assert.True(t, errors.Is(res.Outcomes[1].Err, errors.ErrMissingField))
	assert.Equal(t, Inserted, res.Outcomes[2].Status)
}

func TestAddRecords_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.AddRecords(ctx, []Record{rec("ds", "revenue", "2024-01-01", "2024-01-01", "1", nil)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, res.Total)
}

func TestAddRecords_WriteFailureIsPerRecord(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	insert := regexp.QuoteMeta("INSERT OR IGNORE INTO financial_records")
	mock.ExpectExec(insert).WillReturnError(errors.New("disk I/O error"))
	mock.ExpectExec(insert).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(insert).WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewStore(mockDB, db.SQLite, zaptest.NewLogger(t).Sugar())
	res, err := s.AddRecords(context.Background(), []Record{
		rec("ds", "revenue", "2024-01-01", "2024-01-01", "1", nil),
		rec("ds", "expense", "2024-01-01", "2024-01-01", "1", nil),
		rec("ds", "expense", "2024-01-01", "2024-01-01", "1", nil),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Skipped)
	assert.Contains(t, res.Outcomes[0].Reason, "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddRecords_MySQLStatement(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	args := []driver.Value{"ds", "2024-01-01", "2024-03-31", "revenue", sqlmock.AnyArg(), "USD", nil, nil, "r1"}
	stmt := regexp.QuoteMeta("INSERT INTO financial_records (dataset_id, period_start, period_end, metric, amount, currency, category, sub_category, raw_source_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON DUPLICATE KEY UPDATE id = id")

	mock.ExpectExec(stmt).WithArgs(args...).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(stmt).WithArgs(args...).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(stmt).WithArgs(args...).
		WillReturnError(errors.New("Error 1406 (22001): Data too long for column 'category'"))

	s := NewStore(mockDB, db.MySQL, nil)
	r := rec("ds", "revenue", "2024-01-01", "2024-03-31", "5", util.Ptr("r1"))

	assert.Equal(t, Inserted, s.Add(context.Background(), r).Status)

	dup := s.Add(context.Background(), r)
	assert.Equal(t, Skipped, dup.Status)
	assert.Equal(t, ReasonDuplicate, dup.Reason)

	bad := s.Add(context.Background(), r)
	assert.Equal(t, Failed, bad.Status)
	assert.Contains(t, bad.Reason, "Data too long")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_Filters(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"no filter", Filter{}, 5},
		{"metric", Filter{Metric: util.Ptr("revenue")}, 3},
		{"metric is case-folded", Filter{Metric: util.Ptr("REVENUE")}, 3},
		{"dataset", Filter{DatasetID: util.Ptr("ds2")}, 2},
		{"category", Filter{Category: util.Ptr("operating")}, 1},
		{"start bound", Filter{Start: util.Ptr(date("2024-02-01"))}, 3},
		{"end bound", Filter{End: util.Ptr(date("2024-01-31"))}, 2},
		{"window", Filter{Start: util.Ptr(date("2024-01-01")), End: util.Ptr(date("2024-03-31"))}, 3},
		{"conjunctive", Filter{Metric: util.Ptr("revenue"), DatasetID: util.Ptr("ds1")}, 2},
		{"limit", Filter{Limit: 2}, 2},
		{"nothing", Filter{Metric: util.Ptr("ebitda")}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)

			n, err := s.Count(ctx, tt.filter)
			require.NoError(t, err)
			if tt.filter.Limit == 0 {
				assert.Equal(t, tt.want, n)
			}
		})
	}
}

func TestList_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	got, err := s.List(context.Background(), Filter{Metric: util.Ptr("cogs")})
	require.NoError(t, err)
	require.Len(t, got, 1)

	r := got[0]
	assert.NotZero(t, r.ID)
	assert.Equal(t, "ds2", r.DatasetID)
	assert.Equal(t, date("2024-04-01"), r.PeriodStart)
	assert.Equal(t, date("2024-06-30"), r.PeriodEnd)
	assert.True(t, decimal.RequireFromString("-1500.25").Equal(r.Amount), "amount %s", r.Amount)
	assert.Equal(t, "USD", r.Currency)
	assert.Equal(t, "operating", util.Deref(r.Category))
	assert.Nil(t, r.SubCategory)
	assert.Equal(t, "r9", util.Deref(r.RawSourceID))
}

func TestList_InvalidFilter(t *testing.T) {
	s := newTestStore(t)

	_, err := s.List(context.Background(), Filter{Limit: -1})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))

	_, err = s.List(context.Background(), Filter{Limit: MaxListLimit + 1})
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestDatasets(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	got, err := s.Datasets(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "ds1", got[0].DatasetID)
	assert.Equal(t, 3, got[0].Records)
	assert.Equal(t, 2, got[0].Metrics)
	assert.Equal(t, date("2024-01-15"), got[0].FirstStart)
	assert.Equal(t, date("2024-02-10"), got[0].LastEnd)

	assert.Equal(t, "ds2", got[1].DatasetID)
	assert.Equal(t, 2, got[1].Records)
}

func TestDeleteDataset(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	n, err := s.DeleteDataset(ctx, "ds1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	remaining, err := s.Count(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	_, err = s.DeleteDataset(ctx, "ds1")
	assert.True(t, errors.IsNotFoundError(err))

	_, err = s.DeleteDataset(ctx, "  ")
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestMonthlyTotals(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	totals, err := s.MonthlyTotals(context.Background(), "revenue")
	require.NoError(t, err)
	require.Len(t, totals, 3)

	assert.Equal(t, date("2024-01-01"), totals[0].Month)
	assert.True(t, decimal.RequireFromString("1200.5").Equal(totals[0].Total))
	assert.Equal(t, date("2024-02-01"), totals[1].Month)
	assert.Equal(t, date("2024-04-01"), totals[2].Month)
	assert.True(t, decimal.NewFromInt(5000).Equal(totals[2].Total))

	none, err := s.MonthlyTotals(context.Background(), "ebitda")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRun(ctx, Run{DatasetID: "ds1", File: "qb.json", Format: "qb", Total: 4, Added: 4}))
	require.NoError(t, s.RecordRun(ctx, Run{DatasetID: "ds1", File: "qb.json", Format: "qb", Total: 4, Skipped: 4}))

	runs, err := s.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 4, runs[0].Skipped, "newest first")
	assert.Equal(t, 4, runs[1].Added)
	assert.NotEmpty(t, runs[0].CreatedAt)
}
