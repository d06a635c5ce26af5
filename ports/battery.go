package ports

import (
	"context"

	"gonzs/domain/association"
	"gonzs/domain/labelset"
)

// BatteryPort runs a single permutation test
type BatteryPort interface {
	Run(ctx context.Context, req PermutationRequest) (association.PermutationOutcome, error)
}

// PermutationRequest contains the inputs of one permutation test
type PermutationRequest struct {
	Query        labelset.LabelSet
	Reference    labelset.LabelSet
	UniverseSize int
	Iterations   int
	Evaluator    EvaluatorPort
	Seed         int64
	// RunID and StreamKey namespace the random streams so that every test in a
	// sweep or replicate draws independently yet reproducibly.
	RunID     string
	StreamKey string
}
