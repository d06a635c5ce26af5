package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonzs/adapters/battery"
	"gonzs/adapters/stats/senses"
	"gonzs/domain/association"
	"gonzs/domain/core"
	"gonzs/domain/labelset"
	apperrors "gonzs/internal/errors"
	"gonzs/internal/testkit"
	"gonzs/ports"
)

// brokenCache fails every call
type brokenCache struct{}

func (brokenCache) Get(ctx context.Context, fingerprint core.Hash, kind ports.ResultKind) (*ports.CachedResult, error) {
	return nil, errors.New("connection refused")
}

func (brokenCache) Put(ctx context.Context, result ports.CachedResult) error {
	return errors.New("connection refused")
}

func newService(cache ports.ResultCachePort) *AssociationService {
	kit := testkit.NewTestKit()
	tester := battery.NewPermutationTester(kit.RNGAdapter())
	tester.SetWorkers(2)
	return NewAssociationService(
		senses.NewSenseEngine(),
		tester,
		battery.NewSubsetSampler(),
		kit.RNGAdapter(),
		cache,
		quietLogger,
	)
}

func smallRequest(t *testing.T) AnalysisRequest {
	t.Helper()
	query, err := labelset.Range(1, 40)
	require.NoError(t, err)
	reference, err := labelset.Range(21, 80)
	require.NoError(t, err)
	return AnalysisRequest{
		Query:        query,
		Reference:    reference,
		UniverseSize: 200,
		Config: association.Config{
			Iterations: 50,
			Fractions:  []float64{0.5, 1.0},
			Replicates: 3,
			Seed:       9,
			Workers:    2,
		},
	}
}

func TestAssociationService_Test(t *testing.T) {
	svc := newService(nil)

	result, err := svc.Test(context.Background(), smallRequest(t))
	require.NoError(t, err)
	assert.Equal(t, ports.ResultKindTest, result.Kind)
	assert.Equal(t, 40, result.Outcome.SampleSize)
	assert.Equal(t, 20.0, result.Outcome.Observed)
	assert.Greater(t, result.Outcome.ZScore, 1.5)
	assert.Equal(t, association.DefaultEvaluator, result.Config.Evaluator)
	assert.False(t, result.AnalysisID.IsEmpty())
	assert.False(t, result.Cached)
}

func TestAssociationService_Memoized(t *testing.T) {
	cache := testkit.NewTestKit().ResultCache()
	svc := newService(cache)
	req := smallRequest(t)

	first, err := svc.Sweep(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, cache.Len())

	second, err := svc.Sweep(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.AnalysisID, second.AnalysisID)
	assert.Equal(t, first.Table, second.Table)

	// a fresh run without the cache reproduces the stored table
	uncached, err := newService(nil).Sweep(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.Table, uncached.Table)

	// workers never change the fingerprint
	req.Config.Workers = 7
	third, err := svc.Sweep(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, third.Cached)

	stored, err := svc.Lookup(context.Background(), first.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, ports.ResultKindSweep, stored.Kind)

	_, err = svc.Lookup(context.Background(), core.NewHash([]byte("missing")))
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
}

func TestAssociationService_Replicate(t *testing.T) {
	cache := testkit.NewTestKit().ResultCache()
	svc := newService(cache)

	result, err := svc.Replicate(context.Background(), smallRequest(t))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Collection.Replicates())
	assert.Equal(t, []int{20, 40}, result.Collection.SampleSizes())

	cached, err := svc.Replicate(context.Background(), smallRequest(t))
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, result.Collection.ZScores(20), cached.Collection.ZScores(20))
	assert.True(t, cached.Collection.Finalized())
}

func TestAssociationService_KindsHaveDistinctFingerprints(t *testing.T) {
	req := smallRequest(t)
	assert.NotEqual(t, req.Fingerprint(ports.ResultKindTest), req.Fingerprint(ports.ResultKindSweep))

	other := req
	other.Config.Seed = 10
	assert.NotEqual(t, req.Fingerprint(ports.ResultKindTest), other.Fingerprint(ports.ResultKindTest))
}

func TestAssociationService_CacheFailureIsNotFatal(t *testing.T) {
	svc := newService(brokenCache{})
	result, err := svc.Test(context.Background(), smallRequest(t))
	require.NoError(t, err)
	assert.False(t, result.Cached)
}

func TestAssociationService_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AnalysisRequest)
		code   string
	}{
		{"unknown evaluator", func(r *AnalysisRequest) { r.Config.Evaluator = "telepathy" }, apperrors.CodeInvalidInput},
		{"bad fractions", func(r *AnalysisRequest) { r.Config.Fractions = []float64{2} }, apperrors.CodeInvalidInput},
		{"one iteration", func(r *AnalysisRequest) { r.Config.Iterations = 1 }, apperrors.CodeInvalidInput},
		{"negative universe", func(r *AnalysisRequest) { r.UniverseSize = -5 }, apperrors.CodeInvalidInput},
		{"reference outside universe", func(r *AnalysisRequest) { r.UniverseSize = 60 }, apperrors.CodeInvalidInput},
	}

	svc := newService(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := smallRequest(t)
			tt.mutate(&req)
			_, err := svc.Sweep(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.GetCode(err))
		})
	}
}

func TestAssociationService_Degenerate(t *testing.T) {
	scenario, err := testkit.DegenerateScenario()
	require.NoError(t, err)

	req := AnalysisRequest{
		Query:        scenario.Query,
		Reference:    scenario.Reference,
		UniverseSize: scenario.Universe,
		Config:       association.Config{Iterations: 20},
	}

	svc := newService(nil)
	result, err := svc.Test(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.Outcome.Degenerate)

	req.Config.StrictDegenerate = true
	_, err = svc.Test(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeDegenerateDistribution, apperrors.GetCode(err))
	assert.True(t, errors.Is(err, core.ErrDegenerateDistribution))
}
