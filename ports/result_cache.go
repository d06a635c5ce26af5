package ports

import (
	"context"
	"time"

	"gonzs/domain/core"
)

// ResultKind names the shape of a cached payload.
type ResultKind string

const (
	ResultKindTest      ResultKind = "test"
	ResultKindSweep     ResultKind = "sweep"
	ResultKindReplicate ResultKind = "replicate"
)

// CachedResult is a memoized analysis output keyed by its request fingerprint.
type CachedResult struct {
	Fingerprint core.Hash       `json:"fingerprint"`
	Kind        ResultKind      `json:"kind"`
	AnalysisID  core.AnalysisID `json:"analysis_id"`
	Payload     []byte          `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ResultCachePort memoizes outputs by input identity, parameters and seed.
// Get returns core.ErrResultNotFound on a miss.
type ResultCachePort interface {
	Get(ctx context.Context, fingerprint core.Hash, kind ResultKind) (*CachedResult, error)
	Put(ctx context.Context, result CachedResult) error
}
