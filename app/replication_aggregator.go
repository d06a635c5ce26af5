package app

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"gonzs/domain/association"
	"gonzs/domain/core"
	"gonzs/internal"
)

// ReplicationAggregator repeats a sweep with independent streams and groups
// the outcomes by sample size.
type ReplicationAggregator struct {
	sweeper *SweepRunner
	logger  *internal.Logger
}

// ReplicateRequest is a sweep request repeated Replicates times. The
// Replicate field of the embedded request is ignored.
type ReplicateRequest struct {
	SweepRequest
	Replicates int
}

// NewReplicationAggregator creates an aggregator over sweeper
func NewReplicationAggregator(sweeper *SweepRunner, logger *internal.Logger) *ReplicationAggregator {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ReplicationAggregator{
		sweeper: sweeper,
		logger:  logger.Component("ReplicationAggregator"),
	}
}

// Aggregate runs every replicate and returns a finalized collection. A failing
// replicate aborts the aggregation; nothing is silently excluded.
func (a *ReplicationAggregator) Aggregate(ctx context.Context, req ReplicateRequest) (*association.ReplicateCollection, error) {
	if req.Replicates < 1 {
		return nil, core.NewInvalidArgumentError("replicates", fmt.Sprintf("must be at least 1, got %d", req.Replicates))
	}

	workers := req.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	tables := make([]association.SweepTable, req.Replicates)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for replicate := 0; replicate < req.Replicates; replicate++ {
		g.Go(func() error {
			sweep := req.SweepRequest
			sweep.Replicate = replicate
			table, err := a.sweeper.Sweep(gctx, sweep)
			if err != nil {
				return fmt.Errorf("replicate %d: %w", replicate, err)
			}
			tables[replicate] = table
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Insert in replicate order so the multisets do not depend on scheduling.
	collection := association.NewReplicateCollection()
	for _, table := range tables {
		if err := collection.Add(table); err != nil {
			return nil, err
		}
	}
	collection.Finalize()

	a.logger.Info("aggregated %d replicates over %d sample sizes (%d non-finite values)",
		collection.Replicates(), len(collection.SampleSizes()), collection.NonFiniteCount())
	return collection, nil
}
