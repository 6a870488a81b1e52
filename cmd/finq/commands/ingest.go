package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/FINQ/display"
	"github.com/teranos/FINQ/ingest"
	"github.com/teranos/FINQ/logger"
)

// IngestCmd loads one export file into a dataset
var IngestCmd = &cobra.Command{
	Use:   "ingest <dataset-id> <file>",
	Short: "Load an export file into a dataset",
	Long: `Load an accounting (qb) or finance-platform (rootfi) export into a dataset.

The format is detected from the file name ("qb" or "rootfi" anywhere in it)
unless --format is given. Records already stored are skipped, so ingesting
the same file again adds nothing.

Examples:
  finq ingest acme exports/acme_qb_2024.json
  finq ingest acme upload.json --format rootfi
  finq ingest acme exports/acme_rootfi.json --dry-run`,
	Args: cobra.ExactArgs(2),
	RunE: runIngest,
}

var ingestManifestCmd = &cobra.Command{
	Use:   "manifest <file.yaml|file.toml>",
	Short: "Ingest every file listed in a manifest",
	Long: `Ingest every file listed in a YAML or TOML manifest, in order.

  sources:
    - dataset: acme
      path: exports/acme_qb_2024.json
    - dataset: acme
      format: rootfi
      path: exports/upload.json

Relative paths resolve against the manifest's directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestManifest,
}

var (
	ingestFormat string
	ingestDryRun bool
)

func init() {
	IngestCmd.Flags().StringVar(&ingestFormat, "format", "", "Source format: qb or rootfi (default: detect from file name)")
	IngestCmd.PersistentFlags().BoolVar(&ingestDryRun, "dry-run", false, "Parse and report without storing")

	IngestCmd.AddCommand(ingestManifestCmd)
}

// dryRunResult reports what a dry run parsed
type dryRunResult struct {
	DatasetID string        `json:"dataset_id"`
	File      string        `json:"file"`
	Format    ingest.Format `json:"format"`
	Records   int           `json:"records"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	datasetID, path := args[0], args[1]

	src, err := ingest.Describe(path, ingestFormat)
	if err != nil {
		return err
	}

	if ingestDryRun {
		records, err := ingest.NewLoader(nil, logger.Logger).Load(datasetID, src)
		if err != nil {
			return err
		}
		return printDryRun(cmd, []dryRunResult{{DatasetID: datasetID, File: src.Path, Format: src.Format, Records: len(records)}})
	}

	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.DB().Close()

	res, err := ingest.NewLoader(store, logger.Logger).Ingest(cmd.Context(), datasetID, src)
	if err != nil {
		if res != nil {
			// Interrupted: report what was committed
			_ = printIngestResults(cmd, []*ingest.Result{res})
		}
		return err
	}
	return printIngestResults(cmd, []*ingest.Result{res})
}

func runIngestManifest(cmd *cobra.Command, args []string) error {
	if ingestDryRun {
		jobs, err := ingest.LoadManifest(args[0])
		if err != nil {
			return err
		}
		loader := ingest.NewLoader(nil, logger.Logger)
		results := make([]dryRunResult, 0, len(jobs))
		for _, job := range jobs {
			records, err := loader.Load(job.DatasetID, job.Source)
			if err != nil {
				return err
			}
			results = append(results, dryRunResult{
				DatasetID: job.DatasetID,
				File:      job.Source.Path,
				Format:    job.Source.Format,
				Records:   len(records),
			})
		}
		return printDryRun(cmd, results)
	}

	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.DB().Close()

	results, err := ingest.NewLoader(store, logger.Logger).IngestManifest(cmd.Context(), args[0])
	// Files before the failing one are stored; report them either way
	if len(results) > 0 {
		if perr := printIngestResults(cmd, results); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

func printIngestResults(cmd *cobra.Command, results []*ingest.Result) error {
	if display.ShouldOutputJSON(cmd) {
		if len(results) == 1 {
			return display.WriteJSON(cmd.OutOrStdout(), results[0])
		}
		return display.WriteJSON(cmd.OutOrStdout(), results)
	}

	for _, res := range results {
		pterm.Success.Printfln("%s → %s (%s): %d added, %d skipped, %d failed of %d",
			res.File, res.DatasetID, res.Format, res.Added, res.Skipped, res.Failed, res.Total)
	}
	return nil
}

func printDryRun(cmd *cobra.Command, results []dryRunResult) error {
	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), results)
	}
	for _, r := range results {
		pterm.Info.Printfln("%s → %s (%s): %d records parsed, nothing stored", r.File, r.DatasetID, r.Format, r.Records)
	}
	return nil
}
