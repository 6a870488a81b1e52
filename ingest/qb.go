package ingest

import (
	"github.com/teranos/FINQ/facts"
	"github.com/teranos/FINQ/period"
)

// QB metric names. Every QB row yields one record of each, in this order.
const (
	MetricRevenue = "revenue"
	MetricExpense = "expense"
)

// ParseQB converts an accounting-software export. Each row needs a "date";
// "revenue" and "expenses" default to 0, "currency" to USD, and an "id"
// (string or number) is kept as the raw source id of both records.
//
//	[{"date": "2024-01-31", "revenue": 12345, "expenses": 4567, "id": 1}]
func ParseQB(datasetID string, raw []byte) ([]facts.Record, error) {
	rows, err := decodeRows(raw)
	if err != nil {
		return nil, err
	}

	records := make([]facts.Record, 0, 2*len(rows))
	for i, r := range rows {
		pair, err := qbRow(datasetID, r)
		if err != nil {
			return nil, rowError(i, err)
		}
		records = append(records, pair...)
	}
	return records, nil
}

func qbRow(datasetID string, r row) ([]facts.Record, error) {
	ds, err := r.requiredStr("date")
	if err != nil {
		return nil, err
	}
	day, err := period.ParseDate(ds)
	if err != nil {
		return nil, err
	}

	revenue, _, err := r.amount("revenue")
	if err != nil {
		return nil, err
	}
	expenses, _, err := r.amount("expenses")
	if err != nil {
		return nil, err
	}
	currency, err := r.currency()
	if err != nil {
		return nil, err
	}
	rawID, err := r.id("id")
	if err != nil {
		return nil, err
	}

	base := facts.Record{
		DatasetID:   datasetID,
		PeriodStart: day,
		PeriodEnd:   day,
		Currency:    currency,
		RawSourceID: rawID,
	}

	rev := base
	rev.Metric = MetricRevenue
	rev.Amount = revenue

	exp := base
	exp.Metric = MetricExpense
	exp.Amount = expenses

	return []facts.Record{rev, exp}, nil
}
