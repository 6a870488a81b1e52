package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/FINQ/ai/tracker"
	"github.com/teranos/FINQ/display"
	"github.com/teranos/FINQ/facts"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the FINQ database",
	Long: `db: FINQ database operations

Examples:
  finq db stats                   # Show record, dataset and ingestion statistics
  finq db stats --limit 10        # Show the last 10 ingestion runs`,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long:  "Display record and dataset counts, recent ingestion runs and model usage totals",
	Args:  cobra.NoArgs,
	RunE:  runDbStats,
}

var statsLimitFlag int

func init() {
	DbCmd.AddCommand(dbStatsCmd)
	dbStatsCmd.Flags().IntVar(&statsLimitFlag, "limit", 5, "Number of recent ingestion runs to show")
}

// dbStats is the JSON form of db stats
type dbStats struct {
	Database      string                 `json:"database"`
	Records       int                    `json:"records"`
	Datasets      int                    `json:"datasets"`
	ModelRequests int                    `json:"model_requests"`
	ModelCost     float64                `json:"model_cost"`
	RecentRuns    []facts.Run            `json:"recent_runs"`
	ByDataset     []facts.DatasetSummary `json:"by_dataset"`
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.DB().Close()

	ctx := cmd.Context()
	stats := dbStats{Database: cfg.GetDatabasePath()}
	if cfg.Database.Driver == "mysql" {
		stats.Database = "mysql"
	}

	if stats.Records, err = store.Count(ctx, facts.Filter{}); err != nil {
		return err
	}
	if stats.ByDataset, err = store.Datasets(ctx); err != nil {
		return err
	}
	stats.Datasets = len(stats.ByDataset)
	if stats.RecentRuns, err = store.Runs(ctx, statsLimitFlag); err != nil {
		return err
	}
	usage, err := tracker.NewUsageTracker(store.DB()).GetUsageStats(time.Time{})
	if err != nil {
		return err
	}
	stats.ModelRequests = usage.TotalRequests
	stats.ModelCost = usage.TotalCost

	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), stats)
	}

	pterm.DefaultSection.Println("Database Statistics")
	pterm.Printfln("Database:        %s", stats.Database)
	pterm.Printfln("Records:         %d", stats.Records)
	pterm.Printfln("Datasets:        %d", stats.Datasets)
	pterm.Printfln("Model requests:  %d ($%.4f)", stats.ModelRequests, stats.ModelCost)

	if len(stats.RecentRuns) == 0 {
		return nil
	}
	pterm.Println()
	pterm.Printfln("Recent ingestion runs (last %d):", statsLimitFlag)
	data := pterm.TableData{{"When", "Dataset", "Format", "Added", "Total", "File"}}
	for _, r := range stats.RecentRuns {
		data = append(data, []string{
			r.CreatedAt,
			r.DatasetID,
			r.Format,
			fmt.Sprint(r.Added),
			fmt.Sprint(r.Total),
			r.File,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
