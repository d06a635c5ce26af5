package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gonzs/domain/association"
	"gonzs/domain/core"
	"gonzs/domain/labelset"
	"gonzs/internal"
	apperrors "gonzs/internal/errors"
	"gonzs/ports"
)

// AssociationService orchestrates single tests, sweeps and replicated sweeps
// of one query against one reference, memoizing results when a cache is set.
type AssociationService struct {
	evaluators ports.EvaluatorRegistry
	battery    ports.BatteryPort
	sweeper    *SweepRunner
	aggregator *ReplicationAggregator
	cache      ports.ResultCachePort
	logger     *internal.Logger
}

// AnalysisRequest defines the inputs shared by every analysis kind
type AnalysisRequest struct {
	Query        labelset.LabelSet
	Reference    labelset.LabelSet
	UniverseSize int
	Config       association.Config
}

// Fingerprint identifies the request for memoization: labels, universe,
// every result-affecting option and the kind of analysis.
func (r AnalysisRequest) Fingerprint(kind ports.ResultKind) core.Hash {
	return core.CombineHashes(
		core.NewHash([]byte(string(kind)+":"+strconv.Itoa(r.UniverseSize))),
		r.Query.Fingerprint(),
		r.Reference.Fingerprint(),
		r.Config.Fingerprint(),
	)
}

// AnalysisMeta is common to every analysis result
type AnalysisMeta struct {
	AnalysisID   core.AnalysisID    `json:"analysis_id"`
	Fingerprint  core.Hash          `json:"fingerprint"`
	Kind         ports.ResultKind   `json:"kind"`
	UniverseSize int                `json:"universe_size"`
	QuerySize    int                `json:"query_size"`
	Config       association.Config `json:"config"`
	RuntimeMs    int64              `json:"runtime_ms"`
	Cached       bool               `json:"cached"`
}

// TestResult is the outcome of one permutation test on the full query
type TestResult struct {
	AnalysisMeta
	Outcome association.PermutationOutcome `json:"outcome"`
}

// SweepResult is one replicate's sweep table
type SweepResult struct {
	AnalysisMeta
	Table association.SweepTable `json:"table"`
}

// ReplicateResult is the finalized collection over all replicates
type ReplicateResult struct {
	AnalysisMeta
	Collection *association.ReplicateCollection `json:"collection"`
}

// NewAssociationService creates the service. cache may be nil.
func NewAssociationService(
	evaluators ports.EvaluatorRegistry,
	battery ports.BatteryPort,
	sampler ports.SubsetSamplerPort,
	rngPort ports.RNGPort,
	cache ports.ResultCachePort,
	logger *internal.Logger,
) *AssociationService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	sweeper := NewSweepRunner(battery, sampler, rngPort, logger)
	return &AssociationService{
		evaluators: evaluators,
		battery:    battery,
		sweeper:    sweeper,
		aggregator: NewReplicationAggregator(sweeper, logger),
		cache:      cache,
		logger:     logger.Component("AssociationService"),
	}
}

// Test runs one permutation test of the whole query. A degenerate outcome is
// returned flagged; with StrictDegenerate it is an error instead.
func (s *AssociationService) Test(ctx context.Context, req AnalysisRequest) (*TestResult, error) {
	req, evaluator, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	meta := s.newMeta(req, ports.ResultKindTest)

	result := &TestResult{}
	if s.fromCache(ctx, meta, result) {
		return result, nil
	}

	startTime := time.Now()
	outcome, err := s.battery.Run(ctx, ports.PermutationRequest{
		Query:        req.Query,
		Reference:    req.Reference,
		UniverseSize: req.UniverseSize,
		Iterations:   req.Config.Iterations,
		Evaluator:    evaluator,
		Seed:         req.Config.Seed,
		StreamKey:    "test",
	})
	if err != nil && !(core.IsDegenerate(err) && !req.Config.StrictDegenerate) {
		s.logger.Error("analysis %s failed: %v", meta.AnalysisID, err)
		return nil, apperrors.Wrap(err, "permutation test failed")
	}

	meta.RuntimeMs = time.Since(startTime).Milliseconds()
	result.AnalysisMeta = meta
	result.Outcome = outcome

	s.logger.Info("analysis %s (%s): %s in %dms", meta.AnalysisID, meta.Fingerprint.Short(), outcome, meta.RuntimeMs)
	s.store(ctx, meta, result)
	return result, nil
}

// Sweep runs a single replicate of the fraction sweep
func (s *AssociationService) Sweep(ctx context.Context, req AnalysisRequest) (*SweepResult, error) {
	req, evaluator, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	meta := s.newMeta(req, ports.ResultKindSweep)

	result := &SweepResult{}
	if s.fromCache(ctx, meta, result) {
		return result, nil
	}

	startTime := time.Now()
	table, err := s.sweeper.Sweep(ctx, s.sweepRequest(req, evaluator))
	if err != nil {
		s.logger.Error("analysis %s failed: %v", meta.AnalysisID, err)
		return nil, apperrors.Wrap(err, "sweep failed")
	}

	meta.RuntimeMs = time.Since(startTime).Milliseconds()
	result.AnalysisMeta = meta
	result.Table = table

	s.logger.Info("analysis %s (%s): %d fractions, %d degenerate, %dms",
		meta.AnalysisID, meta.Fingerprint.Short(), len(table.Rows), table.DegenerateCount(), meta.RuntimeMs)
	s.store(ctx, meta, result)
	return result, nil
}

// Replicate runs Config.Replicates independent sweeps and aggregates them
func (s *AssociationService) Replicate(ctx context.Context, req AnalysisRequest) (*ReplicateResult, error) {
	req, evaluator, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	meta := s.newMeta(req, ports.ResultKindReplicate)

	result := &ReplicateResult{}
	if s.fromCache(ctx, meta, result) {
		return result, nil
	}

	startTime := time.Now()
	collection, err := s.aggregator.Aggregate(ctx, ReplicateRequest{
		SweepRequest: s.sweepRequest(req, evaluator),
		Replicates:   req.Config.Replicates,
	})
	if err != nil {
		s.logger.Error("analysis %s failed: %v", meta.AnalysisID, err)
		return nil, apperrors.Wrap(err, "replication failed")
	}

	meta.RuntimeMs = time.Since(startTime).Milliseconds()
	result.AnalysisMeta = meta
	result.Collection = collection

	s.logger.Info("analysis %s (%s): %d replicates in %dms",
		meta.AnalysisID, meta.Fingerprint.Short(), collection.Replicates(), meta.RuntimeMs)
	s.store(ctx, meta, result)
	return result, nil
}

// Lookup returns a memoized result of any kind by fingerprint
func (s *AssociationService) Lookup(ctx context.Context, fingerprint core.Hash) (*ports.CachedResult, error) {
	if s.cache == nil {
		return nil, apperrors.NotFound("analysis", fingerprint.String())
	}
	for _, kind := range []ports.ResultKind{ports.ResultKindTest, ports.ResultKindSweep, ports.ResultKindReplicate} {
		cached, err := s.cache.Get(ctx, fingerprint, kind)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, core.ErrResultNotFound) {
			return nil, apperrors.Wrap(err, "result lookup failed")
		}
	}
	return nil, apperrors.NotFound("analysis", fingerprint.String())
}

// Evaluators lists the registered evaluation functions
func (s *AssociationService) Evaluators() []string {
	return s.evaluators.Names()
}

// prepare applies defaults, validates the request and resolves the evaluator.
func (s *AssociationService) prepare(req AnalysisRequest) (AnalysisRequest, ports.EvaluatorPort, error) {
	req.Config = req.Config.WithDefaults()
	if err := req.Config.Validate(); err != nil {
		return req, nil, apperrors.Wrap(err, "invalid analysis options")
	}

	universe, err := labelset.NewUniverse(req.UniverseSize)
	if err != nil {
		return req, nil, apperrors.Wrap(err, "invalid universe")
	}
	if err := req.Query.ValidateWithin(universe); err != nil {
		return req, nil, apperrors.Wrap(err, "invalid query")
	}
	if err := req.Reference.ValidateWithin(universe); err != nil {
		return req, nil, apperrors.Wrap(err, "invalid reference")
	}

	evaluator, err := s.evaluators.Lookup(req.Config.Evaluator)
	if err != nil {
		return req, nil, apperrors.WithCode(apperrors.CodeInvalidInput,
			fmt.Errorf("%w (available: %v)", err, s.evaluators.Names()))
	}
	return req, evaluator, nil
}

func (s *AssociationService) newMeta(req AnalysisRequest, kind ports.ResultKind) AnalysisMeta {
	return AnalysisMeta{
		AnalysisID:   core.NewAnalysisID(),
		Fingerprint:  req.Fingerprint(kind),
		Kind:         kind,
		UniverseSize: req.UniverseSize,
		QuerySize:    req.Query.Len(),
		Config:       req.Config,
	}
}

// sweepRequest uses an empty run ID so that identical requests draw identical
// streams and can be memoized.
func (s *AssociationService) sweepRequest(req AnalysisRequest, evaluator ports.EvaluatorPort) SweepRequest {
	return SweepRequest{
		Query:            req.Query,
		Reference:        req.Reference,
		UniverseSize:     req.UniverseSize,
		Fractions:        req.Config.Fractions,
		Iterations:       req.Config.Iterations,
		Evaluator:        evaluator,
		Seed:             req.Config.Seed,
		StrictDegenerate: req.Config.StrictDegenerate,
		Workers:          req.Config.Workers,
	}
}

// fromCache decodes a memoized result into out. Cache errors are logged and
// treated as a miss.
func (s *AssociationService) fromCache(ctx context.Context, meta AnalysisMeta, out interface{}) bool {
	if s.cache == nil {
		return false
	}
	cached, err := s.cache.Get(ctx, meta.Fingerprint, meta.Kind)
	if err != nil {
		if !errors.Is(err, core.ErrResultNotFound) {
			s.logger.Warn("cache read for %s failed: %v", meta.Fingerprint.Short(), err)
		}
		return false
	}
	if err := json.Unmarshal(cached.Payload, out); err != nil {
		s.logger.Warn("cached payload for %s is unreadable: %v", meta.Fingerprint.Short(), err)
		return false
	}

	switch r := out.(type) {
	case *TestResult:
		r.Cached = true
	case *SweepResult:
		r.Cached = true
	case *ReplicateResult:
		r.Cached = true
	}
	s.logger.Info("analysis %s served from cache", meta.Fingerprint.Short())
	return true
}

func (s *AssociationService) store(ctx context.Context, meta AnalysisMeta, result interface{}) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("encoding result %s for cache failed: %v", meta.AnalysisID, err)
		return
	}
	err = s.cache.Put(ctx, ports.CachedResult{
		Fingerprint: meta.Fingerprint,
		Kind:        meta.Kind,
		AnalysisID:  meta.AnalysisID,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("cache write for %s failed: %v", meta.Fingerprint.Short(), err)
	}
}
