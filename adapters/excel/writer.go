package excel

import (
	"fmt"
	"log"

	"gonzs/domain/association"

	"github.com/xuri/excelize/v2"
)

// WorkbookWriter exports replicate collections to xlsx
type WorkbookWriter struct{}

// NewWorkbookWriter creates a new workbook writer
func NewWorkbookWriter() *WorkbookWriter {
	return &WorkbookWriter{}
}

// WriteReplicates writes one sheet per metric with sample_size, replicate,
// value and tag columns, plus the raw sweep tables. Non-finite values leave
// the value cell empty and are identified by their tag.
func (w *WorkbookWriter) WriteReplicates(path string, collection *association.ReplicateCollection) error {
	f := excelize.NewFile()
	defer f.Close()

	metrics := []struct {
		sheet  string
		values func(int) []association.TaggedValue
	}{
		{SheetZScores, collection.ZScores},
		{SheetNormalizedZScores, collection.NormalizedZScores},
	}

	for _, m := range metrics {
		if _, err := f.NewSheet(m.sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", m.sheet, err)
		}
		rows := [][]interface{}{{"sample_size", "replicate", "value", "tag"}}
		for _, size := range collection.SampleSizes() {
			for _, v := range m.values(size) {
				rows = append(rows, []interface{}{size, v.Replicate, cellValue(v.Value, v.Tag), string(v.Tag)})
			}
		}
		if err := writeRows(f, m.sheet, rows); err != nil {
			return err
		}
	}

	if err := w.writeTables(f, collection.Tables()); err != nil {
		return err
	}

	if err := f.DeleteSheet(inputSheet); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	log.Printf("[WorkbookWriter] wrote %d replicates to %s", collection.Replicates(), path)
	return nil
}

func (w *WorkbookWriter) writeTables(f *excelize.File, tables []association.SweepTable) error {
	if _, err := f.NewSheet(SheetTables); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", SheetTables, err)
	}
	rows := [][]interface{}{{"replicate", "fraction", "sample_size", "observed", "null_mean", "null_sd", "zs", "nzs", "degenerate"}}
	for _, table := range tables {
		for _, row := range table.Rows {
			rows = append(rows, []interface{}{
				table.Replicate,
				row.Fraction,
				row.SampleSize,
				row.Observed,
				row.NullMean,
				row.NullStdDev,
				cellValue(row.ZScore, association.TagOf(row.ZScore)),
				cellValue(row.NormalizedZScore, association.TagOf(row.NormalizedZScore)),
				row.Degenerate,
			})
		}
	}
	return writeRows(f, SheetTables, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// cellValue keeps NaN and infinities out of the sheet XML.
func cellValue(v float64, tag association.ValueTag) interface{} {
	if tag != association.TagFinite {
		return nil
	}
	return v
}
