package excel

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gonzs/domain/association"
	"gonzs/domain/core"
)

func writeXLSX(t *testing.T, cells []interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, v := range cells {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("Sheet1", cell, v))
	}
	path := filepath.Join(t.TempDir(), "labels.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labels.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDataReader_ReadLabelSet(t *testing.T) {
	reader := NewDataReader()
	ctx := context.Background()

	t.Run("xlsx with header", func(t *testing.T) {
		path := writeXLSX(t, []interface{}{"region", 17, 3, 42})
		set, err := reader.ReadLabelSet(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, []int{3, 17, 42}, set.Labels())
	})

	t.Run("csv without header", func(t *testing.T) {
		path := writeCSV(t, "5,chr1\n9,chr2\n\n1,chr3\n")
		set, err := reader.ReadLabelSet(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 5, 9}, set.Labels())
	})

	t.Run("header recorded", func(t *testing.T) {
		column, err := reader.ReadColumn(writeCSV(t, "label\n4\n"))
		require.NoError(t, err)
		assert.Equal(t, "label", column.Header)
		assert.Equal(t, []string{"4"}, column.Cells)
	})
}

func TestDataReader_Errors(t *testing.T) {
	reader := NewDataReader()
	ctx := context.Background()

	tests := []struct {
		name     string
		path     func(t *testing.T) string
		sentinel error
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.csv") }, nil},
		{"unsupported extension", func(t *testing.T) string {
			p := filepath.Join(t.TempDir(), "labels.json")
			require.NoError(t, os.WriteFile(p, []byte("[]"), 0o644))
			return p
		}, nil},
		{"not an integer", func(t *testing.T) string { return writeCSV(t, "label\n3\nx7\n") }, core.ErrInvalidArgument},
		{"duplicate label", func(t *testing.T) string { return writeCSV(t, "3\n3\n") }, core.ErrInvalidArgument},
		{"zero label", func(t *testing.T) string { return writeCSV(t, "0\n1\n") }, core.ErrInvalidArgument},
		{"header only", func(t *testing.T) string { return writeCSV(t, "label\n") }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reader.ReadLabelSet(ctx, tt.path(t))
			require.Error(t, err)
			if tt.sentinel != nil {
				assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
			}
		})
	}
}

func TestWorkbookWriter_WriteReplicates(t *testing.T) {
	collection := association.NewReplicateCollection()
	for r := 0; r < 2; r++ {
		require.NoError(t, collection.Add(association.SweepTable{
			Replicate: r,
			Rows: []association.SweepRow{
				{Fraction: 0.5, PermutationOutcome: association.PermutationOutcome{SampleSize: 10, ZScore: 2, NormalizedZScore: 2 / math.Sqrt(10), Iterations: 50}},
				{Fraction: 1, PermutationOutcome: association.PermutationOutcome{SampleSize: 20, ZScore: math.NaN(), NormalizedZScore: math.NaN(), Degenerate: true}},
			},
		}))
	}
	collection.Finalize()

	path := filepath.Join(t.TempDir(), "replicates.xlsx")
	require.NoError(t, NewWorkbookWriter().WriteReplicates(path, collection))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{SheetZScores, SheetNormalizedZScores, SheetTables}, f.GetSheetList())

	rows, err := f.GetRows(SheetZScores)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"sample_size", "replicate", "value", "tag"}, rows[0])
	assert.Equal(t, []string{"10", "0", "2", "finite"}, rows[1])
	assert.Equal(t, []string{"20", "1", "", "nan"}, rows[4])

	tables, err := f.GetRows(SheetTables)
	require.NoError(t, err)
	assert.Len(t, tables, 5)
}
