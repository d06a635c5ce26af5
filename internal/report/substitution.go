package report

import (
	"math"
	"slices"

	"gonzs/domain/association"
)

// SubstitutionPolicy replaces nZS values that are not significant or not
// finite. It is applied to copies only.
type SubstitutionPolicy struct {
	// Threshold on |ZS|; rows below it are substituted.
	Threshold float64 `json:"threshold"`
	Value     float64 `json:"value"`
}

// Substitutes reports whether the policy replaces the row's nZS
func (p SubstitutionPolicy) Substitutes(row association.SweepRow) bool {
	if association.TagOf(row.ZScore) != association.TagFinite || association.TagOf(row.NormalizedZScore) != association.TagFinite {
		return true
	}
	return math.Abs(row.ZScore) < p.Threshold
}

// Apply returns a copy of table with substituted nZS values and the number of
// rows changed.
func (p SubstitutionPolicy) Apply(table association.SweepTable) (association.SweepTable, int) {
	out := association.SweepTable{Replicate: table.Replicate, Rows: slices.Clone(table.Rows)}
	changed := 0
	for i, row := range out.Rows {
		if p.Substitutes(row) {
			out.Rows[i].NormalizedZScore = p.Value
			changed++
		}
	}
	return out, changed
}
