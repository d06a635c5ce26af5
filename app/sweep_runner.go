package app

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"gonzs/domain/association"
	"gonzs/domain/core"
	"gonzs/domain/labelset"
	"gonzs/internal"
	"gonzs/ports"
)

// Stage names used to namespace random streams
const (
	stageSubsample = "subsample"
)

// SweepRunner runs one permutation test per fraction of the query
type SweepRunner struct {
	battery ports.BatteryPort
	sampler ports.SubsetSamplerPort
	rngPort ports.RNGPort
	logger  *internal.Logger
}

// SweepRequest defines the inputs for one sweep
type SweepRequest struct {
	Query        labelset.LabelSet
	Reference    labelset.LabelSet
	UniverseSize int
	Fractions    []float64
	Iterations   int
	Evaluator    ports.EvaluatorPort
	Seed         int64

	// RunID and Replicate select the random streams; identical values
	// reproduce identical tables.
	RunID     string
	Replicate int

	StrictDegenerate bool
	Workers          int
}

// NewSweepRunner creates a new sweep runner
func NewSweepRunner(battery ports.BatteryPort, sampler ports.SubsetSamplerPort, rngPort ports.RNGPort, logger *internal.Logger) *SweepRunner {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &SweepRunner{
		battery: battery,
		sampler: sampler,
		rngPort: rngPort,
		logger:  logger.Component("SweepRunner"),
	}
}

// Sweep draws a fresh sub-sample of round(f*|query|) labels for every fraction f
// and tests it against the reference. Rows follow the fraction order.
func (r *SweepRunner) Sweep(ctx context.Context, req SweepRequest) (association.SweepTable, error) {
	if err := r.validate(req); err != nil {
		return association.SweepTable{}, err
	}

	workers := req.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	sizes := make([]int, len(req.Fractions))
	for i, fraction := range req.Fractions {
		sizes[i] = association.SubsampleSize(fraction, req.Query.Len())
		if sizes[i] == 0 {
			return association.SweepTable{}, fmt.Errorf("fraction %v (sample size 0): %w", fraction,
				core.NewInvalidArgumentError("sample size", "fraction rounds to an empty sub-sample"))
		}
	}

	rows := make([]association.SweepRow, len(req.Fractions))
	errs := make([]error, len(req.Fractions))
	abort := newScheduleAbort(ctx, len(req.Fractions))
	defer abort.release()

	var g errgroup.Group
	g.SetLimit(workers)

	for i, fraction := range req.Fractions {
		size := sizes[i]
		g.Go(func() error {
			outcome, err := r.runFraction(abort.ctxs[i], req, i, size)
			if err != nil {
				if core.IsDegenerate(err) && !req.StrictDegenerate {
					r.logger.Warn("replicate %d fraction %.3f (sample size %d): degenerate null distribution recorded",
						req.Replicate, fraction, size)
					rows[i] = association.SweepRow{Fraction: fraction, PermutationOutcome: outcome}
					return nil
				}
				errs[i] = fmt.Errorf("fraction %v (sample size %d): %w", fraction, size, err)
				abort.after(i)
				return errs[i]
			}
			rows[i] = association.SweepRow{Fraction: fraction, PermutationOutcome: outcome}
			r.logger.Trace("replicate %d fraction %.3f: %s", req.Replicate, fraction, outcome)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, fractionErr := range errs {
			if fractionErr != nil {
				return association.SweepTable{}, fractionErr
			}
		}
		return association.SweepTable{}, err
	}

	table := association.SweepTable{Replicate: req.Replicate, Rows: rows}
	r.logger.Debug("replicate %d: %d rows, %d degenerate", req.Replicate, len(rows), table.DegenerateCount())
	return table, nil
}

func (r *SweepRunner) runFraction(ctx context.Context, req SweepRequest, index, size int) (association.PermutationOutcome, error) {
	key := streamKey(req.Replicate, index)
	rng, err := r.rngPort.Stream(ctx, req.RunID, stageSubsample, key, req.Seed)
	if err != nil {
		return association.PermutationOutcome{}, err
	}
	subsample, err := r.sampler.SampleFrom(req.Query, size, rng)
	if err != nil {
		return association.PermutationOutcome{}, err
	}

	return r.battery.Run(ctx, ports.PermutationRequest{
		Query:        subsample,
		Reference:    req.Reference,
		UniverseSize: req.UniverseSize,
		Iterations:   req.Iterations,
		Evaluator:    req.Evaluator,
		Seed:         req.Seed,
		RunID:        req.RunID,
		StreamKey:    key,
	})
}

func (r *SweepRunner) validate(req SweepRequest) error {
	if err := association.ValidateFractions(req.Fractions); err != nil {
		return err
	}
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

// scheduleAbort gives every fraction its own context. A failure cancels only
// the fractions after it, so the earliest failing fraction always reports its
// own error.
type scheduleAbort struct {
	mu      sync.Mutex
	ctxs    []context.Context
	cancels []context.CancelFunc
	failed  int
}

func newScheduleAbort(ctx context.Context, n int) *scheduleAbort {
	a := &scheduleAbort{
		ctxs:    make([]context.Context, n),
		cancels: make([]context.CancelFunc, n),
		failed:  n,
	}
	for i := range a.ctxs {
		a.ctxs[i], a.cancels[i] = context.WithCancel(ctx)
	}
	return a
}

func (a *scheduleAbort) after(index int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index >= a.failed {
		return
	}
	for j := index + 1; j < a.failed; j++ {
		a.cancels[j]()
	}
	a.failed = index
}

func (a *scheduleAbort) release() {
	for _, cancel := range a.cancels {
		cancel()
	}
}

func streamKey(replicate, fractionIndex int) string {
	return fmt.Sprintf("replicate-%d/fraction-%d", replicate, fractionIndex)
}
