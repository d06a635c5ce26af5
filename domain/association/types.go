// Package association holds the typed records produced by the permutation engine:
// single-test outcomes, per-replicate sweep tables and the replicate collection
// handed to reporting.
package association

import (
	"fmt"
	"math"
)

// PermutationOutcome is the result of one permutation test.
type PermutationOutcome struct {
	SampleSize       int     `json:"sample_size"`
	ZScore           float64 `json:"z_score"`
	NormalizedZScore float64 `json:"normalized_z_score"`
	Observed         float64 `json:"observed"`
	NullMean         float64 `json:"null_mean"`
	NullStdDev       float64 `json:"null_std_dev"`
	Iterations       int     `json:"iterations"`
	// Degenerate is set when the null distribution had zero spread and
	// ZScore is therefore ±Inf or NaN.
	Degenerate bool `json:"degenerate"`
}

// Finite reports whether both scores are finite numbers.
func (o PermutationOutcome) Finite() bool {
	return TagOf(o.ZScore) == TagFinite && TagOf(o.NormalizedZScore) == TagFinite
}

func (o PermutationOutcome) String() string {
	return fmt.Sprintf("n=%d zs=%.4f nzs=%.4f", o.SampleSize, o.ZScore, o.NormalizedZScore)
}

// SweepRow is one fraction of a sweep.
type SweepRow struct {
	Fraction float64 `json:"fraction"`
	PermutationOutcome
}

// SweepTable is the ordered output of one sweep; row i corresponds to the i-th
// requested fraction.
type SweepTable struct {
	Replicate int        `json:"replicate"`
	Rows      []SweepRow `json:"rows"`
}

// SampleSizes lists the sample size of each row, in row order.
func (t SweepTable) SampleSizes() []int {
	sizes := make([]int, len(t.Rows))
	for i, r := range t.Rows {
		sizes[i] = r.SampleSize
	}
	return sizes
}

// DegenerateCount counts rows whose null distribution collapsed.
func (t SweepTable) DegenerateCount() int {
	n := 0
	for _, r := range t.Rows {
		if r.Degenerate {
			n++
		}
	}
	return n
}

// ValueTag classifies a score so consumers can exclude non-finite values
// from summaries without dropping them from the raw data.
type ValueTag string

const (
	TagFinite      ValueTag = "finite"
	TagPositiveInf ValueTag = "+inf"
	TagNegativeInf ValueTag = "-inf"
	TagNaN         ValueTag = "nan"
)

// TagOf classifies v.
func TagOf(v float64) ValueTag {
	switch {
	case math.IsNaN(v):
		return TagNaN
	case math.IsInf(v, 1):
		return TagPositiveInf
	case math.IsInf(v, -1):
		return TagNegativeInf
	default:
		return TagFinite
	}
}

// TaggedValue is one score in a ReplicateCollection.
type TaggedValue struct {
	Value     float64  `json:"value"`
	Tag       ValueTag `json:"tag"`
	Replicate int      `json:"replicate"`
}

// IsFinite reports whether the value may enter summary statistics.
func (v TaggedValue) IsFinite() bool { return v.Tag == TagFinite }
