package display

import (
	"encoding/json"
	"os"
)

// CompactEnv requests single-line JSON, e.g. for log shippers
const CompactEnv = "FINQ_JSON_COMPACT"

// MarshalJSON marshals JSON with pretty formatting unless FINQ_JSON_COMPACT
// is set
func MarshalJSON(v interface{}) ([]byte, error) {
	if os.Getenv(CompactEnv) != "" {
		return json.Marshal(v)
	}
	return json.MarshalIndent(v, "", "  ")
}
