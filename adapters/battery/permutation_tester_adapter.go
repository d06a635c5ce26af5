package battery

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"gonzs/domain/association"
	"gonzs/domain/core"
	"gonzs/domain/labelset"
	"gonzs/ports"
)

// permutationChunk is the number of null draws that share one RNG stream.
// Chunk boundaries depend only on the iteration count, so results do not
// change with the worker count.
const permutationChunk = 256

// PermutationTester implements ports.BatteryPort: it compares an observed
// statistic against a null distribution built from random subsets of the
// universe and reports the z-score and normalized z-score.
type PermutationTester struct {
	rngPort ports.RNGPort
	sampler *SubsetSampler
	workers int
}

// NewPermutationTester creates a tester that uses one goroutine per CPU
func NewPermutationTester(rngPort ports.RNGPort) *PermutationTester {
	return &PermutationTester{
		rngPort: rngPort,
		sampler: NewSubsetSampler(),
		workers: runtime.NumCPU(),
	}
}

// SetWorkers bounds the goroutines used to build the null distribution
func (pt *PermutationTester) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	pt.workers = n
}

// Run performs one permutation test. A degenerate null distribution returns
// the flagged outcome together with a *association.DegenerateDistributionError.
func (pt *PermutationTester) Run(ctx context.Context, req ports.PermutationRequest) (association.PermutationOutcome, error) {
	if err := pt.validate(req); err != nil {
		return association.PermutationOutcome{}, err
	}

	observed := req.Evaluator.Evaluate(req.Query, req.Reference)

	nullDistribution, err := pt.nullDistribution(ctx, req)
	if err != nil {
		return association.PermutationOutcome{}, err
	}

	meanPerm, sdPerm := stat.MeanStdDev(nullDistribution, nil)
	zScore := (observed - meanPerm) / sdPerm

	outcome := association.PermutationOutcome{
		SampleSize:       req.Query.Len(),
		ZScore:           zScore,
		NormalizedZScore: zScore / math.Sqrt(float64(req.Query.Len())),
		Observed:         observed,
		NullMean:         meanPerm,
		NullStdDev:       sdPerm,
		Iterations:       req.Iterations,
	}

	if sdPerm == 0 || math.IsNaN(sdPerm) || math.IsInf(sdPerm, 0) {
		outcome.Degenerate = true
		return outcome, &association.DegenerateDistributionError{Outcome: outcome}
	}

	return outcome, nil
}

func (pt *PermutationTester) validate(req ports.PermutationRequest) error {
	if err := association.ValidateIterations(req.Iterations); err != nil {
		return err
	}
	if req.Evaluator == nil {
		return core.NewInvalidArgumentError("evaluator", "is required")
	}
	universe, err := labelset.NewUniverse(req.UniverseSize)
	if err != nil {
		return err
	}
	if err := req.Query.ValidateWithin(universe); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if err := req.Reference.ValidateWithin(universe); err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	return nil
}

// nullDistribution evaluates req.Iterations random subsets of the size of the query.
func (pt *PermutationTester) nullDistribution(ctx context.Context, req ports.PermutationRequest) ([]float64, error) {
	nullDistribution := make([]float64, req.Iterations)
	k := req.Query.Len()
	chunks := (req.Iterations + permutationChunk - 1) / permutationChunk

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pt.workers)

	for c := 0; c < chunks; c++ {
		g.Go(func() error {
			rng, err := pt.rngPort.Stream(gctx, req.RunID, "permutation", fmt.Sprintf("%s/chunk-%d", req.StreamKey, c), req.Seed)
			if err != nil {
				return err
			}

			start := c * permutationChunk
			end := min(start+permutationChunk, req.Iterations)
			for i := start; i < end; i++ {
				permuted, err := pt.sampler.Sample(req.UniverseSize, k, rng)
				if err != nil {
					return err
				}
				nullDistribution[i] = req.Evaluator.Evaluate(permuted, req.Reference)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("null distribution: %w", err)
	}
	return nullDistribution, nil
}
