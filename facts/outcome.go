package facts

// Status is the result of proposing one record to the store.
type Status int

const (
	// Inserted means the record was committed.
	Inserted Status = iota
	// Skipped means an identical record already exists.
	Skipped
	// Failed means the record was rejected or the write failed.
	Failed
)

func (s Status) String() string {
	switch s {
	case Inserted:
		return "inserted"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ReasonDuplicate is the Skipped reason for an identity collision.
const ReasonDuplicate = "duplicate record"

// Outcome is the per-record result of AddRecords.
type Outcome struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

// AddResult summarizes one AddRecords call.
type AddResult struct {
	Outcomes []Outcome `json:"-"`
	Total    int       `json:"total"`
	Added    int       `json:"added"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
}

func (r *AddResult) record(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Total++
	switch o.Status {
	case Inserted:
		r.Added++
	case Skipped:
		r.Skipped++
	case Failed:
		r.Failed++
	}
}
