package forecast

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/facts"
)

func month(year int, m time.Month, total int64) facts.MonthTotal {
	return facts.MonthTotal{
		Month: civil.Date{Year: year, Month: m, Day: 1},
		Total: decimal.NewFromInt(total),
	}
}

func TestLinear_PerfectTrend(t *testing.T) {
	totals := []facts.MonthTotal{
		month(2024, time.January, 100),
		month(2024, time.February, 200),
		month(2024, time.March, 300),
	}

	points, fit, err := Linear(totals, 2, 0.8)
	require.NoError(t, err)

	assert.Equal(t, 100.0, fit.Slope)
	assert.Equal(t, 100.0, fit.Intercept)
	assert.Equal(t, 1.0, fit.R2)
	assert.Equal(t, 3, fit.Observations)
	assert.Zero(t, fit.StandardError)

	require.Len(t, points, 2)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.April, Day: 30}, points[0].DS)
	assert.Equal(t, 400.0, points[0].YHat)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.May, Day: 31}, points[1].DS)
	assert.Equal(t, 500.0, points[1].YHat)

	// No residual error, no band
	assert.Equal(t, points[0].YHat, points[0].YHatLower)
	assert.Equal(t, points[0].YHat, points[0].YHatUpper)
}

func TestLinear_MissingMonthsKeepSpacing(t *testing.T) {
	totals := []facts.MonthTotal{
		month(2024, time.January, 100),
		month(2024, time.March, 300),
	}

	points, fit, err := Linear(totals, 1, 0.8)
	require.NoError(t, err)
	assert.Equal(t, 100.0, fit.Slope)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.April, Day: 30}, points[0].DS)
	assert.Equal(t, 400.0, points[0].YHat)
}

func TestLinear_YearRolloverAndLeapFebruary(t *testing.T) {
	totals := []facts.MonthTotal{
		month(2023, time.November, 10),
		month(2023, time.December, 20),
	}

	points, _, err := Linear(totals, 3, 0.8)
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.January, Day: 31}, points[0].DS)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.February, Day: 29}, points[1].DS)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 31}, points[2].DS)
	assert.Equal(t, 50.0, points[2].YHat)
}

func TestLinear_BandWidensWithDistance(t *testing.T) {
	totals := []facts.MonthTotal{
		month(2024, time.January, 10),
		month(2024, time.February, 30),
		month(2024, time.March, 20),
		month(2024, time.April, 40),
		month(2024, time.May, 35),
	}

	points, fit, err := Linear(totals, 6, 0.8)
	require.NoError(t, err)
	assert.Greater(t, fit.StandardError, 0.0)
	assert.Less(t, fit.R2, 1.0)

	prevWidth := 0.0
	for _, p := range points {
		assert.Less(t, p.YHatLower, p.YHat)
		assert.Greater(t, p.YHatUpper, p.YHat)
		width := p.YHatUpper - p.YHatLower
		assert.Greater(t, width, prevWidth)
		prevWidth = width
	}
}

func TestLinear_HigherConfidenceWiderBand(t *testing.T) {
	totals := []facts.MonthTotal{
		month(2024, time.January, 10),
		month(2024, time.February, 30),
		month(2024, time.March, 20),
	}

	narrow, _, err := Linear(totals, 1, 0.5)
	require.NoError(t, err)
	wide, _, err := Linear(totals, 1, 0.95)
	require.NoError(t, err)

	assert.Greater(t, wide[0].YHatUpper-wide[0].YHatLower, narrow[0].YHatUpper-narrow[0].YHatLower)
}

func TestLinear_Errors(t *testing.T) {
	_, _, err := Linear(nil, 12, 0.8)
	assert.True(t, errors.IsNotFoundError(err))

	_, _, err = Linear([]facts.MonthTotal{month(2024, time.January, 1)}, 12, 0.8)
	assert.True(t, errors.IsInvalidRequestError(err))

	two := []facts.MonthTotal{month(2024, time.January, 1), month(2024, time.February, 2)}
	_, _, err = Linear(two, 0, 0.8)
	assert.True(t, errors.IsInvalidRequestError(err))

	_, _, err = Linear(two, 1, 1)
	assert.True(t, errors.IsInvalidRequestError(err))
}
