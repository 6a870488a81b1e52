// Package display renders command results for terminals and scripts.
package display

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teranos/FINQ/errors"
)

// OutputEnv selects JSON output for every command when set to "json"
const OutputEnv = "FINQ_OUTPUT"

// ShouldOutputJSON determines if a command should output JSON based on the
// --json flag, falling back to FINQ_OUTPUT
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return jsonFromEnv()
	}

	// An explicit local --json flag wins, including --json=false
	if f := cmd.Flags().Lookup("json"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetBool("json")
		return v
	}

	if root := cmd.Root(); root != nil {
		if v, _ := root.PersistentFlags().GetBool("json"); v {
			return true
		}
	}

	return jsonFromEnv()
}

func jsonFromEnv() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(OutputEnv)), "json")
}

// OutputJSON prints v as JSON on stdout
func OutputJSON(v interface{}) error {
	return WriteJSON(os.Stdout, v)
}

// WriteJSON writes v as JSON followed by a newline
func WriteJSON(w io.Writer, v interface{}) error {
	data, err := MarshalJSON(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
