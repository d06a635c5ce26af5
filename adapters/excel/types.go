package excel

// Sheet names of the replicate workbook
const (
	SheetZScores           = "ZS"
	SheetNormalizedZScores = "nZS"
	SheetTables            = "Tables"

	inputSheet = "Sheet1"
)

// LabelColumn is the raw first column of an input file
type LabelColumn struct {
	Header string   // Header cell, empty when the file starts with a label
	Cells  []string // Data cells in file order
}
