package report

import (
	"fmt"
	"math"
)

// DefaultStabilityTolerance bounds the relative change of mean nZS that still
// counts as stable.
const DefaultStabilityTolerance = 0.35

// ScalingResult compares two sample sizes of a summary
type ScalingResult struct {
	Small int `json:"small"`
	Large int `json:"large"`

	// ZScoreRatio is |mean ZS(large)| / |mean ZS(small)|.
	ZScoreRatio float64 `json:"z_score_ratio"`
	// NormalizedChange is |mean nZS(large) - mean nZS(small)| / |mean nZS(large)|.
	NormalizedChange float64 `json:"normalized_change"`

	ZScoreVMR     [2]float64 `json:"z_score_vmr"`
	NormalizedVMR [2]float64 `json:"normalized_vmr"`

	ZScoreGrows      bool `json:"z_score_grows"`
	NormalizedStable bool `json:"normalized_stable"`
}

// ScalingCheck compares |mean ZS| and |mean nZS| at the small and large sample sizes
func ScalingCheck(summary Summary, small, large int, tolerance float64) (ScalingResult, error) {
	s, ok := summary.Size(small)
	if !ok {
		return ScalingResult{}, fmt.Errorf("no values for sample size %d", small)
	}
	l, ok := summary.Size(large)
	if !ok {
		return ScalingResult{}, fmt.Errorf("no values for sample size %d", large)
	}
	if tolerance <= 0 {
		tolerance = DefaultStabilityTolerance
	}

	result := ScalingResult{
		Small:            small,
		Large:            large,
		ZScoreRatio:      math.Abs(l.ZScore.Mean) / math.Abs(s.ZScore.Mean),
		NormalizedChange: math.Abs(l.Normalized.Mean-s.Normalized.Mean) / math.Abs(l.Normalized.Mean),
		ZScoreVMR:        [2]float64{s.ZScore.VarianceToMean, l.ZScore.VarianceToMean},
		NormalizedVMR:    [2]float64{s.Normalized.VarianceToMean, l.Normalized.VarianceToMean},
	}
	result.ZScoreGrows = result.ZScoreRatio > 1
	result.NormalizedStable = result.NormalizedChange < tolerance
	return result, nil
}
