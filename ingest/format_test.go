package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/FINQ/errors"
)

func TestSelectFormat(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
		wantErr  bool
	}{
		{"qb_2024.json", FormatQB, false},
		{"exports/QB-January.JSON", FormatQB, false},
		{"my_qbooks.json", FormatQB, false},
		{"rootfi_q1.json", FormatRootfi, false},
		{"/data/ROOTFI.json", FormatRootfi, false},
		{"rootfi_and_qb.json", FormatQB, false},
		{"qb/ledger.json", "", true},
		{"ledger.json", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := SelectFormat(tt.filename)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsUnsupportedFormat(err))
				assert.False(t, errors.IsMalformedPeriod(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectFormat_ErrorNamesFile(t *testing.T) {
	_, err := SelectFormat("/tmp/ledger.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger.json")
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"qb", FormatQB, false},
		{"QB", FormatQB, false},
		{"a", FormatQB, false},
		{" rootfi ", FormatRootfi, false},
		{"B", FormatRootfi, false},
		{"csv", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.True(t, errors.IsUnsupportedFormat(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescribe(t *testing.T) {
	src, err := Describe("data/qb_export.json", "rootfi")
	require.NoError(t, err)
	assert.Equal(t, Source{Format: FormatRootfi, Path: "data/qb_export.json"}, src, "explicit format wins over the name")

	src, err = Describe("data/qb_export.json", "")
	require.NoError(t, err)
	assert.Equal(t, FormatQB, src.Format)

	_, err = Describe("data/export.json", "")
	assert.True(t, errors.IsUnsupportedFormat(err))

	_, err = Describe("data/qb_export.json", "xml")
	assert.True(t, errors.IsUnsupportedFormat(err))
}

func TestFormatAdapter(t *testing.T) {
	for _, f := range Formats() {
		a, err := f.Adapter()
		require.NoError(t, err)
		assert.NotNil(t, a)
	}

	_, err := Format("csv").Adapter()
	assert.True(t, errors.IsUnsupportedFormat(err))
}
