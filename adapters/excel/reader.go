package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gonzs/domain/core"
	"gonzs/domain/labelset"

	"github.com/xuri/excelize/v2"
)

// DataReader reads label sets from the first column of an Excel or CSV file
type DataReader struct{}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader() *DataReader {
	return &DataReader{}
}

// ReadLabelSet implements ports.LabelSetReaderPort. Blank cells are skipped;
// a non-numeric first cell is treated as a header.
func (r *DataReader) ReadLabelSet(ctx context.Context, path string) (labelset.LabelSet, error) {
	if err := ctx.Err(); err != nil {
		return labelset.LabelSet{}, err
	}

	column, err := r.ReadColumn(path)
	if err != nil {
		return labelset.LabelSet{}, err
	}

	labels := make([]int, 0, len(column.Cells))
	for i, cell := range column.Cells {
		if cell == "" {
			continue
		}
		label, err := strconv.Atoi(cell)
		if err != nil {
			return labelset.LabelSet{}, core.NewInvalidArgumentError("label",
				fmt.Sprintf("%s row %d: %q is not an integer", filepath.Base(path), i+r.firstDataRow(column), cell))
		}
		labels = append(labels, label)
	}

	set, err := labelset.New(labels)
	if err != nil {
		return labelset.LabelSet{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	log.Printf("[DataReader] %s: %d labels", filepath.Base(path), set.Len())
	return set, nil
}

// ReadColumn returns the trimmed first column of Sheet1 or of a CSV file
func (r *DataReader) ReadColumn(path string) (*LabelColumn, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("label file not found: %s", path)
	}

	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		rows, err = r.readCSV(path)
	case ".xlsx", ".xlsm":
		rows, err = r.readExcel(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	column := &LabelColumn{}
	for i, row := range rows {
		cell := ""
		if len(row) > 0 {
			cell = strings.TrimSpace(row[0])
		}
		if i == 0 && cell != "" {
			if _, convErr := strconv.Atoi(cell); convErr != nil {
				column.Header = cell
				continue
			}
		}
		column.Cells = append(column.Cells, cell)
	}

	if len(column.Cells) == 0 {
		return nil, fmt.Errorf("%s has no label rows", filepath.Base(path))
	}
	return column, nil
}

// firstDataRow is the 1-based file row of Cells[0]
func (r *DataReader) firstDataRow(column *LabelColumn) int {
	if column.Header != "" {
		return 2
	}
	return 1
}

func (r *DataReader) readExcel(path string) ([][]string, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	// Always use Sheet1
	rows, err := f.GetRows(inputSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", inputSheet, err)
	}
	log.Printf("[DataReader] %s read in %.2fms (%d rows)", inputSheet, float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))
	return rows, nil
}

func (r *DataReader) readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}
