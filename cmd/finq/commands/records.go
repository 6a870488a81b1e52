package commands

import (
	"os"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/FINQ/display"
	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/facts"
	"github.com/teranos/FINQ/internal/util"
	"github.com/teranos/FINQ/period"
)

// RecordsCmd lists stored records
var RecordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List stored financial records",
	Long: `List stored financial records, optionally filtered.

--start keeps records whose period starts on or after the date; --end keeps
records whose period ends on or before it.

Examples:
  finq records --dataset acme --metric revenue
  finq records --start 2024-01-01 --end 2024-03-31 --json
  finq records export q1.xlsx --start 2024-01-01 --end 2024-03-31`,
	Args: cobra.NoArgs,
	RunE: runRecords,
}

var recordsExportCmd = &cobra.Command{
	Use:   "export <out.xlsx>",
	Short: "Export matching records to a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsExport,
}

// recordFlags are the filter flags shared by records and records export
type recordFlags struct {
	dataset  string
	metric   string
	category string
	start    string
	end      string
	limit    int
	offset   int
}

var recordsFlags recordFlags

func init() {
	pf := RecordsCmd.PersistentFlags()
	pf.StringVar(&recordsFlags.dataset, "dataset", "", "Only records of this dataset")
	pf.StringVar(&recordsFlags.metric, "metric", "", "Only records of this metric (e.g. revenue, expense)")
	pf.StringVar(&recordsFlags.category, "category", "", "Only records of this category")
	pf.StringVar(&recordsFlags.start, "start", "", "Earliest period start (YYYY-MM-DD)")
	pf.StringVar(&recordsFlags.end, "end", "", "Latest period end (YYYY-MM-DD)")
	pf.IntVar(&recordsFlags.offset, "offset", 0, "Skip this many records")
	RecordsCmd.Flags().IntVar(&recordsFlags.limit, "limit", 100, "Maximum records to list (0 = no limit)")

	RecordsCmd.AddCommand(recordsExportCmd)
}

// filter converts the flags into a validated facts.Filter
func (f recordFlags) filter() (facts.Filter, error) {
	optional := func(s string) *string {
		if s = strings.TrimSpace(s); s != "" {
			return &s
		}
		return nil
	}
	date := func(s, name string) (*civil.Date, error) {
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		d, err := period.ParseDate(s)
		if err != nil {
			return nil, errors.Wrapf(err, "--%s", name)
		}
		return &d, nil
	}

	filter := facts.Filter{
		DatasetID: optional(f.dataset),
		Metric:    optional(f.metric),
		Category:  optional(f.category),
		Limit:     f.limit,
		Offset:    f.offset,
	}
	var err error
	if filter.Start, err = date(f.start, "start"); err != nil {
		return filter, err
	}
	if filter.End, err = date(f.end, "end"); err != nil {
		return filter, err
	}
	return filter, filter.Validate()
}

func runRecords(cmd *cobra.Command, args []string) error {
	filter, err := recordsFlags.filter()
	if err != nil {
		return err
	}

	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.DB().Close()

	records, err := store.List(cmd.Context(), filter)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), records)
	}
	if len(records) == 0 {
		pterm.Info.Println("No records match")
		return nil
	}

	data := pterm.TableData{{"Dataset", "Start", "End", "Metric", "Amount", "Currency", "Category"}}
	for _, r := range records {
		data = append(data, []string{
			r.DatasetID,
			r.PeriodStart.String(),
			r.PeriodEnd.String(),
			r.Metric,
			r.Amount.StringFixed(2),
			r.Currency,
			util.Deref(r.Category),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithRightAlignment().WithData(data).Render(); err != nil {
		return err
	}
	if filter.Limit > 0 && len(records) == filter.Limit {
		pterm.Info.Printfln("Showing the first %d records; raise --limit for more", filter.Limit)
	}
	return nil
}

func runRecordsExport(cmd *cobra.Command, args []string) error {
	flags := recordsFlags
	flags.limit = 0
	filter, err := flags.filter()
	if err != nil {
		return err
	}

	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.DB().Close()

	records, err := store.List(cmd.Context(), filter)
	if err != nil {
		return err
	}

	out, err := os.Create(args[0])
	if err != nil {
		return errors.Wrapf(err, "create %s", args[0])
	}
	if err := facts.ExportXLSX(out, records); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, "close %s", args[0])
	}

	if display.ShouldOutputJSON(cmd) {
		return display.WriteJSON(cmd.OutOrStdout(), map[string]interface{}{"file": args[0], "records": len(records)})
	}
	pterm.Success.Printfln("Exported %d records to %s", len(records), args[0])
	return nil
}
