package association

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonzs/domain/core"
)

func table(replicate int, outcomes ...PermutationOutcome) SweepTable {
	t := SweepTable{Replicate: replicate}
	for i, o := range outcomes {
		t.Rows = append(t.Rows, SweepRow{Fraction: float64(i+1) / float64(len(outcomes)), PermutationOutcome: o})
	}
	return t
}

func TestTagOf(t *testing.T) {
	assert.Equal(t, TagFinite, TagOf(1.5))
	assert.Equal(t, TagNaN, TagOf(math.NaN()))
	assert.Equal(t, TagPositiveInf, TagOf(math.Inf(1)))
	assert.Equal(t, TagNegativeInf, TagOf(math.Inf(-1)))
}

func TestPermutationOutcomeFinite(t *testing.T) {
	tests := []struct {
		name    string
		outcome PermutationOutcome
		finite  bool
	}{
		{"finite", PermutationOutcome{ZScore: 2, NormalizedZScore: 0.5}, true},
		{"nan", PermutationOutcome{ZScore: math.NaN(), NormalizedZScore: math.NaN(), Degenerate: true}, false},
		{"inf", PermutationOutcome{ZScore: math.Inf(1), NormalizedZScore: math.Inf(1), Degenerate: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.finite, tt.outcome.Finite())
		})
	}
}

func TestReplicateCollectionGroupsBySampleSize(t *testing.T) {
	c := NewReplicateCollection()
	require.NoError(t, c.Add(table(0,
		PermutationOutcome{SampleSize: 10, ZScore: 2, NormalizedZScore: 2 / math.Sqrt(10)},
		PermutationOutcome{SampleSize: 20, ZScore: 3, NormalizedZScore: 3 / math.Sqrt(20)},
	)))
	require.NoError(t, c.Add(table(1,
		PermutationOutcome{SampleSize: 10, ZScore: 1, NormalizedZScore: 1 / math.Sqrt(10)},
		PermutationOutcome{SampleSize: 20, ZScore: math.Inf(1), NormalizedZScore: math.Inf(1), Degenerate: true},
	)))
	c.Finalize()

	assert.Equal(t, []int{10, 20}, c.SampleSizes())
	assert.Equal(t, 2, c.Replicates())

	zs := c.ZScores(20)
	require.Len(t, zs, 2)
	assert.Equal(t, 0, zs[0].Replicate)
	assert.Equal(t, TagPositiveInf, zs[1].Tag)
	assert.Equal(t, []float64{3}, Finite(zs), "non-finite values are excluded from the finite view")
	assert.Len(t, c.NormalizedZScores(20), 2, "non-finite values stay in the raw collection")
	assert.Equal(t, 1, c.NonFiniteCount())

	assert.ErrorIs(t, c.Add(table(2)), ErrCollectionFinalized)
}

func TestReplicateCollectionJSONKeepsNonFiniteValues(t *testing.T) {
	c := NewReplicateCollection()
	require.NoError(t, c.Add(table(0,
		PermutationOutcome{SampleSize: 5, ZScore: math.NaN(), NormalizedZScore: math.NaN(), Degenerate: true},
		PermutationOutcome{SampleSize: 9, ZScore: -1.25, NormalizedZScore: -1.25 / 3},
	)))
	c.Finalize()

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"NaN"`)

	var decoded ReplicateCollection
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.True(t, decoded.Finalized())
	assert.Equal(t, []int{5, 9}, decoded.SampleSizes())
	assert.True(t, math.IsNaN(decoded.ZScores(5)[0].Value))
	assert.Equal(t, TagNaN, decoded.ZScores(5)[0].Tag)
	assert.InDelta(t, -1.25, decoded.ZScores(9)[0].Value, 1e-12)

	rows := decoded.Tables()[0].Rows
	assert.InDelta(t, 1.0, rows[1].Fraction, 1e-12)
	assert.True(t, rows[0].Degenerate)
}

func TestValidateFractions(t *testing.T) {
	tests := []struct {
		name      string
		fractions []float64
		wantErr   bool
	}{
		{"defaults", DefaultFractions(), false},
		{"single full", []float64{1}, false},
		{"empty", nil, true},
		{"zero", []float64{0, 0.5}, true},
		{"above one", []float64{0.5, 1.01}, true},
		{"nan", []float64{math.NaN()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFractions(tt.fractions)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrInvalidArgument)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSubsampleSizeRoundsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 25, SubsampleSize(0.1, 250))
	assert.Equal(t, 3, SubsampleSize(0.5, 5))
	assert.Equal(t, 0, SubsampleSize(0.1, 4))
	assert.Equal(t, 250, SubsampleSize(1, 250))
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Iterations = 1
	assert.ErrorIs(t, cfg.Validate(), core.ErrInvalidArgument)

	cfg = Config{}.WithDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultIterations, cfg.Iterations)

	a := DefaultConfig()
	b := DefaultConfig()
	b.Workers = a.Workers + 3
	assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "worker count never changes results")
	b.Seed++
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
