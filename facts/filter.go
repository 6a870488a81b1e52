package facts

import (
	"strings"

	"cloud.google.com/go/civil"

	"github.com/teranos/FINQ/errors"
)

// MaxListLimit caps the number of records returned by one List call.
const MaxListLimit = 10000

// Filter selects records. All fields are optional and combine with AND.
// Only fixed column names reach SQL; every value is bound as a parameter.
type Filter struct {
	DatasetID *string
	Metric    *string
	Category  *string
	Start     *civil.Date // period_start >= Start
	End       *civil.Date // period_end <= End
	Limit     int
	Offset    int
}

// Validate rejects filters that cannot produce a sensible query.
func (f Filter) Validate() error {
	if f.Limit < 0 || f.Limit > MaxListLimit {
		return errors.NewInvalidRequestError("limit %d outside 0..%d", f.Limit, MaxListLimit)
	}
	if f.Offset < 0 {
		return errors.NewInvalidRequestError("offset %d must not be negative", f.Offset)
	}
	if f.Start != nil && !f.Start.IsValid() {
		return errors.Wrap(errors.ErrMalformedPeriod, "filter start")
	}
	if f.End != nil && !f.End.IsValid() {
		return errors.Wrap(errors.ErrMalformedPeriod, "filter end")
	}
	return nil
}

// queryBuilder accumulates SQL WHERE clauses and parameters for record queries
type queryBuilder struct {
	whereClauses []string
	args         []interface{}
}

// addClause appends a WHERE clause with its arguments
func (qb *queryBuilder) addClause(clause string, args ...interface{}) {
	qb.whereClauses = append(qb.whereClauses, clause)
	qb.args = append(qb.args, args...)
}

// build returns the WHERE clauses joined with AND
func (qb *queryBuilder) build() string {
	return strings.Join(qb.whereClauses, " AND ")
}

func (f Filter) builder() *queryBuilder {
	qb := &queryBuilder{}
	if f.DatasetID != nil {
		qb.addClause("dataset_id = ?", *f.DatasetID)
	}
	if f.Metric != nil {
		qb.addClause("metric = ?", strings.ToLower(*f.Metric))
	}
	if f.Category != nil {
		qb.addClause("category = ?", *f.Category)
	}
	// Dates are stored as ISO text, so string comparison is date order
	if f.Start != nil {
		qb.addClause("period_start >= ?", f.Start.String())
	}
	if f.End != nil {
		qb.addClause("period_end <= ?", f.End.String())
	}
	return qb
}
