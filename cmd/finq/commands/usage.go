package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/FINQ/ai/tracker"
	"github.com/teranos/FINQ/display"
)

// UsageCmd reports language model usage
var UsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show language model usage and cost",
	Args:  cobra.NoArgs,
	RunE:  runUsage,
}

var usageDays int

func init() {
	UsageCmd.Flags().IntVar(&usageDays, "days", 7, "Report the last N days")
}

func runUsage(cmd *cobra.Command, args []string) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.DB().Close()

	report, err := tracker.NewUsageTracker(store.DB()).GetReport(cmd.Context(), usageDays)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), report)
	}

	s := report.Stats
	pterm.DefaultSection.Printfln("Model usage, last %d days", usageDays)
	pterm.Printfln("Requests:  %d (%.0f%% successful)", s.TotalRequests, s.SuccessRate*100)
	pterm.Printfln("Tokens:    %d (%d prompt, %d completion)", s.TotalTokens, s.PromptTokens, s.CompletionTokens)
	pterm.Printfln("Cost:      $%.4f", s.TotalCost)

	if len(report.Models) == 0 {
		return nil
	}
	data := pterm.TableData{{"Model", "Provider", "Requests", "Tokens", "Cost"}}
	for _, m := range report.Models {
		data = append(data, []string{
			m.ModelName,
			m.ModelProvider,
			fmt.Sprint(m.RequestCount),
			fmt.Sprint(m.TotalTokens),
			fmt.Sprintf("$%.4f", m.TotalCost),
		})
	}
	pterm.Println()
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
