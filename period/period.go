// Package period resolves source-specific period expressions into inclusive
// calendar date ranges.
//
// Three forms are understood, tried in this order:
//
//	Q2-2024                     quarter → 2024-04-01 .. 2024-06-30
//	2024-02-01/2024-02-28       explicit range, returned verbatim
//	2024-02-01T10:00:00+02:00   bare date, start == end
//
// Any time or zone suffix on a date is discarded.
package period

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/teranos/FINQ/errors"
)

var quarterPattern = regexp.MustCompile(`^[Qq](\d+)-(\d{4})$`)

// quarterMonths maps a quarter number to its first and last calendar month.
var quarterMonths = map[int][2]time.Month{
	1: {time.January, time.March},
	2: {time.April, time.June},
	3: {time.July, time.September},
	4: {time.October, time.December},
}

// Resolve converts a period expression into (start, end).
//
// The range form is not checked for ordering: "2024-03-01/2024-01-01" yields
// a start after its end. Callers that need ordered ranges check Ordered.
func Resolve(expr string) (civil.Date, civil.Date, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return civil.Date{}, civil.Date{}, errors.WithHint(
			errors.Wrap(errors.ErrMalformedPeriod, "empty period expression"),
			"expected Q<n>-<YYYY>, <date>/<date> or a single ISO-8601 date")
	}

	if s[0] == 'Q' || s[0] == 'q' {
		return resolveQuarter(s)
	}

	if left, right, ok := strings.Cut(s, "/"); ok {
		start, err := ParseDate(left)
		if err != nil {
			return civil.Date{}, civil.Date{}, errors.Wrapf(err, "range %q start", s)
		}
		end, err := ParseDate(right)
		if err != nil {
			return civil.Date{}, civil.Date{}, errors.Wrapf(err, "range %q end", s)
		}
		return start, end, nil
	}

	d, err := ParseDate(s)
	if err != nil {
		return civil.Date{}, civil.Date{}, err
	}
	return d, d, nil
}

func resolveQuarter(s string) (civil.Date, civil.Date, error) {
	m := quarterPattern.FindStringSubmatch(s)
	if m == nil {
		return civil.Date{}, civil.Date{}, errors.WithHint(
			errors.Wrapf(errors.ErrMalformedPeriod, "quarter %q", s),
			"quarters are written Q<n>-<YYYY>, e.g. Q1-2024")
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return civil.Date{}, civil.Date{}, errors.Wrapf(errors.ErrMalformedPeriod, "quarter %q", s)
	}
	year, _ := strconv.Atoi(m[2])

	start, end, err := Quarter(year, n)
	if err != nil {
		return civil.Date{}, civil.Date{}, errors.Wrapf(err, "quarter %q", s)
	}
	return start, end, nil
}

// Quarter returns the first and last day of quarter n (1-4) of year.
func Quarter(year, n int) (civil.Date, civil.Date, error) {
	months, ok := quarterMonths[n]
	if !ok {
		return civil.Date{}, civil.Date{}, errors.WithHint(
			errors.Wrapf(errors.ErrMalformedPeriod, "quarter number %d", n),
			"quarter numbers run from 1 to 4")
	}
	start := civil.Date{Year: year, Month: months[0], Day: 1}
	end := civil.Date{Year: year, Month: months[1], Day: MonthEnd(year, months[1])}
	return start, end, nil
}

// QuarterOf returns the quarter number (1-4) containing d.
func QuarterOf(d civil.Date) int {
	return (int(d.Month)-1)/3 + 1
}

// IsLeapYear applies the Gregorian rule: divisible by 4, except centuries
// not divisible by 400.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// MonthEnd returns the last day number of month in year.
func MonthEnd(year int, month time.Month) int {
	switch month {
	case time.February:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// ParseDate parses an ISO-8601 calendar date, discarding any time or zone
// suffix ("2024-01-31T23:59:59Z" → 2024-01-31).
func ParseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "Tt "); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return civil.Date{}, errors.Wrap(errors.ErrMalformedPeriod, "empty date")
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, errors.WithHint(
			errors.Wrapf(errors.ErrMalformedPeriod, "date %q", s),
			"dates must be YYYY-MM-DD")
	}
	return d, nil
}

// Ordered reports whether start does not fall after end.
func Ordered(start, end civil.Date) bool {
	return !start.After(end)
}
