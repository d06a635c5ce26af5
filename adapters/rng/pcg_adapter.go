package rng

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
)

// PCGAdapter implements ports.RNGPort with PCG generators. The base seed is
// the first PCG word and a hash of the stream coordinates is the second, so
// each (run, stage, key) tuple gets an independent, reproducible stream.
type PCGAdapter struct{}

// NewPCGAdapter creates a PCG-backed RNG adapter
func NewPCGAdapter() *PCGAdapter {
	return &PCGAdapter{}
}

// Stream creates a deterministic RNG stream for one unit of work inside a run
func (a *PCGAdapter) Stream(ctx context.Context, runID, stageName, streamKey string, baseSeed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewPCG(uint64(baseSeed), streamHash(runID, stageName, streamKey))), nil
}

func streamHash(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return h.Sum64()
}
