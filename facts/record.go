// Package facts holds the canonical financial fact record and its store.
//
// Every ingestion source is normalized into Record. The store inserts records
// one at a time with insert-or-ignore semantics so re-ingesting a file is
// idempotent and readers only ever observe whole records.
package facts

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/teranos/FINQ/errors"
)

// DefaultCurrency is applied when a source row carries no currency.
const DefaultCurrency = "USD"

func init() {
	// Amounts are numbers on the wire, as they were in the source files
	decimal.MarshalJSONWithoutQuotes = true
}

// Record is one financial measurement over an inclusive period.
type Record struct {
	ID          int64           `json:"id,omitempty"`
	DatasetID   string          `json:"dataset_id"`
	PeriodStart civil.Date      `json:"period_start"`
	PeriodEnd   civil.Date      `json:"period_end"`
	Metric      string          `json:"metric"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Category    *string         `json:"category,omitempty"`
	SubCategory *string         `json:"sub_category,omitempty"`
	RawSourceID *string         `json:"raw_source_id,omitempty"`
}

// Validate checks the fields a record must carry before it is stored.
// Period ordering is not checked: explicit source ranges are kept verbatim.
func (r Record) Validate() error {
	if strings.TrimSpace(r.DatasetID) == "" {
		return errors.Wrap(errors.ErrMissingField, "dataset_id")
	}
	if strings.TrimSpace(r.Metric) == "" {
		return errors.Wrap(errors.ErrMissingField, "metric")
	}
	if r.Metric != strings.ToLower(r.Metric) {
		return errors.NewInvalidRequestError("metric %q must be lowercase", r.Metric)
	}
	if !r.PeriodStart.IsValid() || !r.PeriodEnd.IsValid() {
		return errors.Wrap(errors.ErrMalformedPeriod, "period dates must be set")
	}
	if strings.TrimSpace(r.Currency) == "" {
		return errors.Wrap(errors.ErrMissingField, "currency")
	}
	return nil
}

// SourceKey identifies the record for deduplication:
// (dataset_id, metric, period_start, period_end, raw_source_id).
func (r Record) SourceKey() string {
	raw := ""
	if r.RawSourceID != nil {
		raw = *r.RawSourceID
	}
	return strings.Join([]string{r.DatasetID, r.Metric, r.PeriodStart.String(), r.PeriodEnd.String(), raw}, "|")
}
