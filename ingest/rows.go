package ingest

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/facts"
)

// row is one source object with its fields left raw until an adapter asks
// for them. JSON null counts as absent.
type row map[string]json.RawMessage

func decodeRows(raw []byte) ([]row, error) {
	var rows []row
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, errors.WithHint(
			errors.Wrap(err, "decode rows"),
			"the file must contain a JSON array of objects")
	}
	return rows, nil
}

func (r row) field(name string) (json.RawMessage, bool) {
	v, ok := r[name]
	if !ok {
		return nil, false
	}
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, false
	}
	return v, true
}

// str returns a string field. ok is false when the field is absent.
func (r row) str(name string) (string, bool, error) {
	v, ok := r.field(name)
	if !ok {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", true, errors.Wrapf(errors.ErrInvalidRequest, "field %q must be a string", name)
	}
	return s, true, nil
}

func (r row) requiredStr(name string) (string, error) {
	s, ok, err := r.str(name)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(s) == "" {
		return "", errors.Wrapf(errors.ErrMissingField, "%q", name)
	}
	return s, nil
}

// optionalStr returns nil for an absent or blank field.
func (r row) optionalStr(name string) (*string, error) {
	s, ok, err := r.str(name)
	if err != nil || !ok || strings.TrimSpace(s) == "" {
		return nil, err
	}
	return &s, nil
}

// id returns an identifier field given either as a string or a number.
func (r row) id(name string) (*string, error) {
	v, ok := r.field(name)
	if !ok {
		return nil, nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		s := n.String()
		return &s, nil
	}
	return r.optionalStr(name)
}

// amount returns a numeric field given as a JSON number or numeric string.
// ok is false when the field is absent.
func (r row) amount(name string) (decimal.Decimal, bool, error) {
	v, ok := r.field(name)
	if !ok {
		return decimal.Zero, false, nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(v); err != nil {
		return decimal.Zero, true, errors.Wrapf(errors.ErrInvalidAmount, "field %q: %s", name, string(v))
	}
	return d, true, nil
}

func (r row) currency() (string, error) {
	c, err := r.optionalStr("currency")
	if err != nil || c == nil {
		return facts.DefaultCurrency, err
	}
	return strings.ToUpper(strings.TrimSpace(*c)), nil
}

// rowError attaches the zero-based row index and a hint to an adapter error.
func rowError(i int, err error) error {
	err = errors.Wrapf(err, "row %d", i)
	switch {
	case errors.Is(err, errors.ErrMissingField):
		return errors.WithHint(err, "every row must carry the required fields of its format")
	case errors.Is(err, errors.ErrInvalidAmount):
		return errors.WithHint(err, "amounts must be numbers or numeric strings")
	default:
		return err
	}
}
