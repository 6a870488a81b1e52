package ingest

import (
	"strings"

	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/facts"
	"github.com/teranos/FINQ/internal/util"
	"github.com/teranos/FINQ/period"
)

// ParseRootfi converts a finance-platform export. Each row needs a
// "period" (quarter, range or date), a "type" that becomes the lowercased
// metric, and a numeric "value". "currency", "category", "sub_category"
// and "uid" are optional.
//
//	[{"period": "Q1-2024", "type": "Profit", "value": 4321, "uid": "a-1"}]
func ParseRootfi(datasetID string, raw []byte) ([]facts.Record, error) {
	rows, err := decodeRows(raw)
	if err != nil {
		return nil, err
	}

	records := make([]facts.Record, 0, len(rows))
	for i, r := range rows {
		rec, err := rootfiRow(datasetID, r)
		if err != nil {
			return nil, rowError(i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func rootfiRow(datasetID string, r row) (facts.Record, error) {
	expr, err := r.requiredStr("period")
	if err != nil {
		return facts.Record{}, err
	}
	start, end, err := period.Resolve(expr)
	if err != nil {
		return facts.Record{}, err
	}

	kind, err := r.requiredStr("type")
	if err != nil {
		return facts.Record{}, err
	}

	value, ok, err := r.amount("value")
	if err != nil {
		return facts.Record{}, err
	}
	if !ok {
		return facts.Record{}, errors.Wrapf(errors.ErrMissingField, "%q", "value")
	}

	currency, err := r.currency()
	if err != nil {
		return facts.Record{}, err
	}
	category, err := r.optionalStr("category")
	if err != nil {
		return facts.Record{}, err
	}
	sub, err := r.optionalStr("sub_category")
	if err != nil {
		return facts.Record{}, err
	}
	uid, err := r.id("uid")
	if err != nil {
		return facts.Record{}, err
	}

	return facts.Record{
		DatasetID:   datasetID,
		PeriodStart: start,
		PeriodEnd:   end,
		Metric:      strings.ToLower(strings.TrimSpace(kind)),
		Amount:      value,
		Currency:    currency,
		Category:    trimmed(category),
		SubCategory: trimmed(sub),
		RawSourceID: uid,
	}, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	return util.OptionalString(*s)
}
