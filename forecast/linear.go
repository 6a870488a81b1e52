// Package forecast projects a metric's monthly totals forward with a
// least-squares linear trend.
package forecast

import (
	"math"
	"time"

	"cloud.google.com/go/civil"

	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/facts"
	"github.com/teranos/FINQ/period"
)

// Point is one projected month. Field names follow the ds/yhat convention
// of time-series forecasting tools.
type Point struct {
	DS        civil.Date `json:"ds"`
	YHat      float64    `json:"yhat"`
	YHatLower float64    `json:"yhat_lower"`
	YHatUpper float64    `json:"yhat_upper"`
}

// Fit describes the fitted trend y = Slope*x + Intercept, where x counts
// months since the first observed month
type Fit struct {
	Slope         float64 `json:"slope"`
	Intercept     float64 `json:"intercept"`
	R2            float64 `json:"r2"`
	StandardError float64 `json:"standard_error"`
	Observations  int     `json:"observations"`
}

type observation struct {
	x, y float64
}

// Linear fits a trend through totals (oldest first, one per month) and
// projects periods month-ends past the last observed month. The band covers
// confidence of the normal prediction interval; with two observations the
// residual error is undefined and the band collapses onto the trend.
func Linear(totals []facts.MonthTotal, periods int, confidence float64) ([]Point, *Fit, error) {
	if len(totals) == 0 {
		return nil, nil, errors.NewNotFoundError("no monthly totals to fit")
	}
	if len(totals) < 2 {
		return nil, nil, errors.WithHint(
			errors.NewInvalidRequestError("at least 2 months of data are required, got %d", len(totals)),
			"ingest more history for this metric")
	}
	if periods <= 0 {
		return nil, nil, errors.NewInvalidRequestError("periods must be positive, got %d", periods)
	}
	if confidence <= 0 || confidence >= 1 {
		return nil, nil, errors.NewInvalidRequestError("confidence must be within (0, 1), got %f", confidence)
	}

	first := totals[0].Month
	obs := make([]observation, len(totals))
	for i, t := range totals {
		obs[i] = observation{
			x: float64(monthsBetween(first, t.Month)),
			y: t.Total.InexactFloat64(),
		}
	}

	// a = (n*sum(x*y) - sum(x)*sum(y)) / (n*sum(x^2) - (sum(x))^2)
	// b = (sum(y) - a*sum(x)) / n
	n := float64(len(obs))
	var sumX, sumY, sumXY, sumX2 float64
	for _, o := range obs {
		sumX += o.x
		sumY += o.y
		sumXY += o.x * o.y
		sumX2 += o.x * o.x
	}

	denominator := n*sumX2 - sumX*sumX
	if math.Abs(denominator) < 1e-10 {
		return nil, nil, errors.NewInvalidRequestError("monthly totals share a single month")
	}
	slope := (n*sumXY - sumX*sumY) / denominator
	intercept := (sumY - slope*sumX) / n

	meanX, meanY := sumX/n, sumY/n
	var sxx, ssRes, ssTot float64
	for _, o := range obs {
		residual := o.y - (slope*o.x + intercept)
		sxx += (o.x - meanX) * (o.x - meanX)
		ssRes += residual * residual
		ssTot += (o.y - meanY) * (o.y - meanY)
	}

	fit := &Fit{
		Slope:        roundToThousandth(slope),
		Intercept:    roundToThousandth(intercept),
		R2:           1,
		Observations: len(obs),
	}
	if ssTot > 0 {
		fit.R2 = roundToThousandth(1 - ssRes/ssTot)
	}

	var se float64
	if len(obs) > 2 {
		se = math.Sqrt(ssRes / (n - 2))
	}
	fit.StandardError = roundToThousandth(se)

	z := math.Sqrt2 * math.Erfinv(confidence)
	lastX := obs[len(obs)-1].x
	last := totals[len(totals)-1].Month

	points := make([]Point, periods)
	for i := range points {
		x := lastX + float64(i+1)
		yhat := slope*x + intercept
		margin := z * se * math.Sqrt(1+1/n+(x-meanX)*(x-meanX)/sxx)

		month := addMonths(last, i+1)
		points[i] = Point{
			DS:        civil.Date{Year: month.Year, Month: month.Month, Day: period.MonthEnd(month.Year, month.Month)},
			YHat:      roundToThousandth(yhat),
			YHatLower: roundToThousandth(yhat - margin),
			YHatUpper: roundToThousandth(yhat + margin),
		}
	}
	return points, fit, nil
}

func roundToThousandth(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func monthsBetween(a, b civil.Date) int {
	return (b.Year-a.Year)*12 + int(b.Month) - int(a.Month)
}

// addMonths returns the first day of the month n months after d's month
func addMonths(d civil.Date, n int) civil.Date {
	idx := int(d.Month) - 1 + n
	return civil.Date{Year: d.Year + idx/12, Month: time.Month(idx%12 + 1), Day: 1}
}
