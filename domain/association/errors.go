package association

import (
	"fmt"

	"gonzs/domain/core"
)

// DegenerateDistributionError reports a permutation test whose null
// distribution had zero spread. Outcome still carries the raw ±Inf/NaN scores.
type DegenerateDistributionError struct {
	Outcome PermutationOutcome
}

func (e *DegenerateDistributionError) Error() string {
	return fmt.Sprintf("%v: sample size %d, observed %v, null mean %v, null sd %v",
		core.ErrDegenerateDistribution, e.Outcome.SampleSize, e.Outcome.Observed, e.Outcome.NullMean, e.Outcome.NullStdDev)
}

func (e *DegenerateDistributionError) Unwrap() error {
	return core.ErrDegenerateDistribution
}
