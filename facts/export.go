package facts

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/internal/util"
)

const exportSheet = "records"

var exportHeader = []interface{}{
	"dataset_id", "period_start", "period_end", "metric", "amount",
	"currency", "category", "sub_category", "raw_source_id",
}

// ExportXLSX writes records as a single-sheet workbook. Amounts are written
// as numbers so spreadsheet formulas work on them.
func ExportXLSX(w io.Writer, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return errors.Wrap(err, "rename sheet")
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return errors.Wrap(err, "write header")
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrapf(err, "row %d", i)
		}
		amount, _ := rec.Amount.Float64()
		row := []interface{}{
			rec.DatasetID,
			rec.PeriodStart.String(),
			rec.PeriodEnd.String(),
			rec.Metric,
			amount,
			rec.Currency,
			util.Deref(rec.Category),
			util.Deref(rec.SubCategory),
			util.Deref(rec.RawSourceID),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return errors.Wrapf(err, "write row %d", i)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "write workbook")
	}
	return nil
}
