package ports

import (
	"context"
	"math/rand/v2"
)

// RNGPort provides seeded random number generation for deterministic operations.
// Every returned generator is owned by its caller and must not be shared
// between goroutines.
type RNGPort interface {
	// Stream creates a deterministic RNG stream for one unit of work inside a run,
	// e.g. a permutation chunk of a given replicate and fraction. Identical
	// arguments always yield identical streams.
	Stream(ctx context.Context, runID, stageName, streamKey string, baseSeed int64) (*rand.Rand, error)
}
