package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/FINQ/display"
)

// DatasetsCmd lists datasets
var DatasetsCmd = &cobra.Command{
	Use:     "datasets",
	Aliases: []string{"ds"},
	Short:   "List datasets",
	Args:    cobra.NoArgs,
	RunE:    runDatasets,
}

var datasetsRmCmd = &cobra.Command{
	Use:   "rm <dataset-id>",
	Short: "Remove every record of a dataset",
	Long: `Remove every record of a dataset. Ingestion run history is kept.

Re-ingesting the dataset's files afterwards stores their records again.`,
	Args: cobra.ExactArgs(1),
	RunE: runDatasetsRm,
}

func init() {
	DatasetsCmd.AddCommand(datasetsRmCmd)
}

func runDatasets(cmd *cobra.Command, args []string) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.DB().Close()

	datasets, err := store.Datasets(cmd.Context())
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), datasets)
	}
	if len(datasets) == 0 {
		pterm.Info.Println("No datasets yet; load one with finq ingest")
		return nil
	}

	data := pterm.TableData{{"Dataset", "Records", "Metrics", "First period", "Last period"}}
	for _, d := range datasets {
		data = append(data, []string{
			d.DatasetID,
			fmt.Sprint(d.Records),
			fmt.Sprint(d.Metrics),
			d.FirstStart.String(),
			d.LastEnd.String(),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runDatasetsRm(cmd *cobra.Command, args []string) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.DB().Close()

	deleted, err := store.DeleteDataset(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), map[string]interface{}{"dataset_id": args[0], "deleted": deleted})
	}
	pterm.Success.Printfln("Removed %d records from %s", deleted, args[0])
	return nil
}
