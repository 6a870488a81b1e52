// Package ingest turns source export files into canonical fact records.
//
// Each supported export format has an adapter that reads a JSON array of
// objects and emits facts.Record values. A Source names the file and, when
// known, its format; otherwise the format is sniffed from the filename.
package ingest

import (
	"path/filepath"
	"strings"

	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/facts"
)

// Format identifies a source export schema.
type Format string

const (
	// FormatQB is the accounting-software export: one dated row carrying
	// revenue and expenses.
	FormatQB Format = "qb"
	// FormatRootfi is the finance-platform export: one typed value per
	// period expression.
	FormatRootfi Format = "rootfi"
)

// Adapter converts a raw export into canonical records for one dataset.
type Adapter func(datasetID string, raw []byte) ([]facts.Record, error)

var adapters = map[Format]Adapter{
	FormatQB:     ParseQB,
	FormatRootfi: ParseRootfi,
}

// Formats lists the supported formats in dispatch order.
func Formats() []Format {
	return []Format{FormatQB, FormatRootfi}
}

// Adapter returns the parser for f.
func (f Format) Adapter() (Adapter, error) {
	a, ok := adapters[f]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnsupportedFormat, "format %q", string(f))
	}
	return a, nil
}

func (f Format) String() string {
	return string(f)
}

// ParseFormat accepts a format name or its single-letter alias
// (a = qb, b = rootfi), case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "qb", "a":
		return FormatQB, nil
	case "rootfi", "b":
		return FormatRootfi, nil
	default:
		return "", errors.WithHint(
			errors.Wrapf(errors.ErrUnsupportedFormat, "format %q", s),
			"supported formats are qb and rootfi")
	}
}

// SelectFormat sniffs the format from a filename: a case-insensitive "qb"
// anywhere in the base name wins, then "rootfi". A name containing both
// routes to qb.
func SelectFormat(filename string) (Format, error) {
	name := strings.ToLower(filepath.Base(filename))
	switch {
	case strings.Contains(name, "qb"):
		return FormatQB, nil
	case strings.Contains(name, "rootfi"):
		return FormatRootfi, nil
	default:
		return "", errors.WithHint(
			errors.Wrapf(errors.ErrUnsupportedFormat, "%s", filepath.Base(filename)),
			"name the file with qb or rootfi, or pass the format explicitly")
	}
}

// Source describes one input file.
type Source struct {
	Format Format `json:"format" yaml:"format" toml:"format"`
	Path   string `json:"path" yaml:"path" toml:"path"`
}

// Describe builds a Source for path. An explicit format takes precedence;
// the filename is sniffed only when explicit is empty.
func Describe(path, explicit string) (Source, error) {
	if strings.TrimSpace(explicit) != "" {
		f, err := ParseFormat(explicit)
		if err != nil {
			return Source{}, err
		}
		return Source{Format: f, Path: path}, nil
	}

	f, err := SelectFormat(path)
	if err != nil {
		return Source{}, err
	}
	return Source{Format: f, Path: path}, nil
}
