package forecast

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/facts"
	"github.com/teranos/FINQ/logger"
)

// Defaults used when Options leave a field zero
const (
	DefaultPeriods    = 12
	DefaultConfidence = 0.8
	MaxPeriods        = 120
)

// TotalsSource supplies monthly totals per metric. *facts.Store implements it.
type TotalsSource interface {
	MonthlyTotals(ctx context.Context, metric string) ([]facts.MonthTotal, error)
}

// Options tunes a Forecaster
type Options struct {
	DefaultPeriods int
	Confidence     float64
	Logger         *zap.SugaredLogger
}

// Result is the response of Forecast
type Result struct {
	Metric     string  `json:"metric"`
	Confidence float64 `json:"confidence"`
	Fit        *Fit    `json:"fit"`
	Forecast   []Point `json:"forecast"`
}

// Forecaster projects metrics stored in a TotalsSource
type Forecaster struct {
	source     TotalsSource
	periods    int
	confidence float64
	logger     *zap.SugaredLogger
}

// New creates a Forecaster
func New(source TotalsSource, opts Options) *Forecaster {
	f := &Forecaster{
		source:     source,
		periods:    opts.DefaultPeriods,
		confidence: opts.Confidence,
		logger:     opts.Logger,
	}
	if f.periods <= 0 {
		f.periods = DefaultPeriods
	}
	if f.confidence <= 0 || f.confidence >= 1 {
		f.confidence = DefaultConfidence
	}
	if f.logger == nil {
		f.logger = zap.NewNop().Sugar()
	}
	return f
}

// Forecast fits metric's monthly totals and projects periods months ahead.
// periods <= 0 selects the configured default.
func (f *Forecaster) Forecast(ctx context.Context, metric string, periods int) (*Result, error) {
	metric = strings.ToLower(strings.TrimSpace(metric))
	if metric == "" {
		return nil, errors.NewInvalidRequestError("metric is required")
	}
	if periods <= 0 {
		periods = f.periods
	}
	if periods > MaxPeriods {
		return nil, errors.NewInvalidRequestError("periods must be at most %d, got %d", MaxPeriods, periods)
	}

	totals, err := f.source.MonthlyTotals(ctx, metric)
	if err != nil {
		return nil, err
	}
	if len(totals) == 0 {
		return nil, errors.WithHint(
			errors.NewNotFoundError("no data for metric %q", metric),
			"list stored metrics with: finq datasets")
	}

	points, fit, err := Linear(totals, periods, f.confidence)
	if err != nil {
		return nil, errors.Wrapf(err, "forecast %s", metric)
	}

	f.logger.Debugw("Forecast computed",
		logger.FieldMetric, metric,
		logger.FieldCount, len(points),
		"observations", fit.Observations,
		"slope", fit.Slope,
	)

	return &Result{
		Metric:     metric,
		Confidence: f.confidence,
		Fit:        fit,
		Forecast:   points,
	}, nil
}
