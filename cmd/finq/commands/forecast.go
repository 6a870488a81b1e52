package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/FINQ/display"
	"github.com/teranos/FINQ/forecast"
	"github.com/teranos/FINQ/logger"
)

// ForecastCmd projects a metric's monthly totals
var ForecastCmd = &cobra.Command{
	Use:   "forecast <metric>",
	Short: "Project a metric's monthly trend",
	Long: `Fit a linear trend to a metric's monthly totals across all datasets and
project it forward. Each projected month-end carries a confidence band
(forecast.confidence, default 80%).

Examples:
  finq forecast revenue
  finq forecast expense --periods 6 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runForecast,
}

var forecastPeriods int

func init() {
	ForecastCmd.Flags().IntVar(&forecastPeriods, "periods", 0, "Months to project (default: forecast.default_periods)")
}

func runForecast(cmd *cobra.Command, args []string) error {
	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.DB().Close()

	f := forecast.New(store, forecast.Options{
		DefaultPeriods: cfg.Forecast.DefaultPeriods,
		Confidence:     cfg.Forecast.Confidence,
		Logger:         logger.Logger,
	})
	res, err := f.Forecast(cmd.Context(), args[0], forecastPeriods)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), res)
	}

	pterm.DefaultSection.Printfln("%s forecast", res.Metric)
	pterm.Info.Printfln("Trend %+.2f per month over %d months (R² %.3f)", res.Fit.Slope, res.Fit.Observations, res.Fit.R2)

	band := fmt.Sprintf("%.0f%% band", res.Confidence*100)
	data := pterm.TableData{{"Month end", "Forecast", band + " low", band + " high"}}
	for _, p := range res.Forecast {
		data = append(data, []string{
			p.DS.String(),
			fmt.Sprintf("%.2f", p.YHat),
			fmt.Sprintf("%.2f", p.YHatLower),
			fmt.Sprintf("%.2f", p.YHatUpper),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithRightAlignment().WithData(data).Render()
}
