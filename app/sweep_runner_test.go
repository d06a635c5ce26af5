package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonzs/adapters/battery"
	"gonzs/adapters/stats/senses"
	"gonzs/domain/association"
	"gonzs/domain/core"
	"gonzs/domain/labelset"
	"gonzs/internal"
	"gonzs/internal/testkit"
	"gonzs/ports"
)

var quietLogger = internal.NewLoggerTo(internal.LogLevelError, io.Discard)

// failingBattery delegates to a real tester but fails every request whose
// stream key contains failOn.
type failingBattery struct {
	next   ports.BatteryPort
	failOn string
	err    error
}

func (b *failingBattery) Run(ctx context.Context, req ports.PermutationRequest) (association.PermutationOutcome, error) {
	if strings.Contains(req.StreamKey, b.failOn) {
		return association.PermutationOutcome{}, b.err
	}
	return b.next.Run(ctx, req)
}

func newTester(workers int) *battery.PermutationTester {
	tester := battery.NewPermutationTester(testkit.NewTestKit().RNGAdapter())
	tester.SetWorkers(workers)
	return tester
}

func newSweepRunner(b ports.BatteryPort) *SweepRunner {
	return NewSweepRunner(b, battery.NewSubsetSampler(), testkit.NewTestKit().RNGAdapter(), quietLogger)
}

func baseSweepRequest(t *testing.T) SweepRequest {
	t.Helper()
	query, err := labelset.Range(1, 40)
	require.NoError(t, err)
	reference, err := labelset.Range(21, 80)
	require.NoError(t, err)
	return SweepRequest{
		Query:        query,
		Reference:    reference,
		UniverseSize: 200,
		Fractions:    []float64{0.5, 0.1, 1.0, 0.25},
		Iterations:   60,
		Evaluator:    senses.NewOverlapSense(),
		Seed:         42,
		Workers:      2,
	}
}

func TestSweepRunner_OrderAndSizes(t *testing.T) {
	req := baseSweepRequest(t)

	table, err := newSweepRunner(newTester(2)).Sweep(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, table.Rows, 4)
	assert.Equal(t, []int{20, 4, 40, 10}, table.SampleSizes())
	for i, row := range table.Rows {
		assert.Equal(t, req.Fractions[i], row.Fraction)
		assert.Equal(t, 60, row.Iterations)
		assert.InDelta(t, row.ZScore/math.Sqrt(float64(row.SampleSize)), row.NormalizedZScore, 1e-12)
	}
}

func TestSweepRunner_DuplicateSizes(t *testing.T) {
	req := baseSweepRequest(t)
	// 0.51*40 and 0.49*40 both round to 20
	req.Fractions = []float64{0.51, 0.49}

	table, err := newSweepRunner(newTester(1)).Sweep(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []int{20, 20}, table.SampleSizes())
}

func TestSweepRunner_Deterministic(t *testing.T) {
	req := baseSweepRequest(t)

	first, err := newSweepRunner(newTester(1)).Sweep(context.Background(), req)
	require.NoError(t, err)

	req.Workers = 8
	second, err := newSweepRunner(newTester(8)).Sweep(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	req.Replicate = 1
	third, err := newSweepRunner(newTester(8)).Sweep(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, first.Rows, third.Rows)
	assert.Equal(t, 1, third.Replicate)
}

func TestSweepRunner_InvalidArguments(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SweepRequest)
	}{
		{"empty schedule", func(r *SweepRequest) { r.Fractions = nil }},
		{"fraction above one", func(r *SweepRequest) { r.Fractions = []float64{0.5, 1.5} }},
		{"zero fraction", func(r *SweepRequest) { r.Fractions = []float64{0} }},
		{"nan fraction", func(r *SweepRequest) { r.Fractions = []float64{math.NaN()} }},
		{"one iteration", func(r *SweepRequest) { r.Iterations = 1 }},
		{"no universe", func(r *SweepRequest) { r.UniverseSize = 0 }},
		{"query outside universe", func(r *SweepRequest) { r.UniverseSize = 30 }},
		{"rounds to empty", func(r *SweepRequest) { r.Fractions = []float64{0.01} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseSweepRequest(t)
			tt.mutate(&req)
			_, err := newSweepRunner(newTester(1)).Sweep(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInvalidArgument), "got %v", err)
		})
	}
}

func TestSweepRunner_FailureAborts(t *testing.T) {
	boom := errors.New("evaluator exploded")
	b := &failingBattery{next: newTester(1), failOn: "fraction-2", err: boom}

	_, err := newSweepRunner(b).Sweep(context.Background(), baseSweepRequest(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "fraction 1 (sample size 40)")
}

// slowEarlyFailureBattery fails fraction 1 after a delay and fraction 3 at once,
// so the later fraction is the first to fail in wall-clock time.
type slowEarlyFailureBattery struct {
	next  ports.BatteryPort
	early error
	late  error
}

func (b *slowEarlyFailureBattery) Run(ctx context.Context, req ports.PermutationRequest) (association.PermutationOutcome, error) {
	switch {
	case strings.HasSuffix(req.StreamKey, "fraction-1"):
		time.Sleep(50 * time.Millisecond)
		return association.PermutationOutcome{}, b.early
	case strings.HasSuffix(req.StreamKey, "fraction-3"):
		return association.PermutationOutcome{}, b.late
	}
	return b.next.Run(ctx, req)
}

func TestSweepRunner_ReportsEarliestFailingFraction(t *testing.T) {
	early := errors.New("fraction one failed")
	late := errors.New("fraction three failed")

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			b := &slowEarlyFailureBattery{next: newTester(1), early: early, late: late}
			req := baseSweepRequest(t)
			req.Workers = workers

			_, err := newSweepRunner(b).Sweep(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, early), "got %v", err)
			assert.False(t, errors.Is(err, late))
			assert.Contains(t, err.Error(), "fraction 0.1 (sample size 4)")
		})
	}
}

func TestSweepRunner_ZeroSizeReportedBeforeRunning(t *testing.T) {
	req := baseSweepRequest(t)
	req.Fractions = []float64{0.5, 0.01, 0.001}
	b := &failingBattery{next: newTester(1), failOn: "fraction-0", err: errors.New("must not run")}

	_, err := newSweepRunner(b).Sweep(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
	assert.Contains(t, err.Error(), "fraction 0.01 (sample size 0)")
}

func degenerateSweepRequest(t *testing.T) SweepRequest {
	t.Helper()
	query, err := labelset.Range(1, 40)
	require.NoError(t, err)
	reference, err := labelset.Range(1, 10)
	require.NoError(t, err)
	return SweepRequest{
		Query:        query,
		Reference:    reference,
		UniverseSize: 40,
		Fractions:    []float64{0.5, 1.0},
		Iterations:   20,
		Evaluator:    senses.NewOverlapSense(),
		Seed:         3,
	}
}

func TestSweepRunner_DegenerateRecorded(t *testing.T) {
	table, err := newSweepRunner(newTester(1)).Sweep(context.Background(), degenerateSweepRequest(t))
	require.NoError(t, err)

	assert.False(t, table.Rows[0].Degenerate)
	assert.True(t, table.Rows[1].Degenerate)
	assert.True(t, math.IsNaN(table.Rows[1].ZScore))
	assert.Equal(t, 1, table.DegenerateCount())
}

func TestSweepRunner_DegenerateStrict(t *testing.T) {
	req := degenerateSweepRequest(t)
	req.StrictDegenerate = true

	_, err := newSweepRunner(newTester(1)).Sweep(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDegenerateDistribution))
	assert.Contains(t, err.Error(), "sample size 40")
}
