package association

import (
	"fmt"
	"math"
	"runtime"

	"gonzs/domain/core"
)

// Defaults used when a caller does not override them.
const (
	DefaultIterations = 1000
	DefaultReplicates = 10
	DefaultSeed       = int64(42)
	DefaultEvaluator  = "overlap"
	MinIterations     = 2
)

// Config carries the recognized analysis options.
type Config struct {
	Iterations int       `json:"iterations"`
	Fractions  []float64 `json:"fractions"`
	Replicates int       `json:"replicates"`
	Evaluator  string    `json:"evaluator"`
	Seed       int64     `json:"seed"`
	// Workers bounds the goroutines used at each level; it never changes results.
	Workers int `json:"workers"`
	// StrictDegenerate makes a degenerate test abort its sweep instead of being
	// recorded and flagged.
	StrictDegenerate bool `json:"strict_degenerate"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Iterations: DefaultIterations,
		Fractions:  DefaultFractions(),
		Replicates: DefaultReplicates,
		Evaluator:  DefaultEvaluator,
		Seed:       DefaultSeed,
		Workers:    runtime.NumCPU(),
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Iterations == 0 {
		c.Iterations = d.Iterations
	}
	if len(c.Fractions) == 0 {
		c.Fractions = d.Fractions
	}
	if c.Replicates == 0 {
		c.Replicates = d.Replicates
	}
	if c.Evaluator == "" {
		c.Evaluator = d.Evaluator
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	return c
}

// Validate checks every option. Seed has no invalid values.
func (c Config) Validate() error {
	if err := ValidateIterations(c.Iterations); err != nil {
		return err
	}
	if err := ValidateFractions(c.Fractions); err != nil {
		return err
	}
	if c.Replicates < 1 {
		return core.NewInvalidArgumentError("replicates", fmt.Sprintf("must be at least 1, got %d", c.Replicates))
	}
	if c.Evaluator == "" {
		return core.NewInvalidArgumentError("evaluator", "must be named")
	}
	if c.Workers < 1 {
		return core.NewInvalidArgumentError("workers", fmt.Sprintf("must be at least 1, got %d", c.Workers))
	}
	return nil
}

// Fingerprint hashes the options that affect results. Workers is excluded.
func (c Config) Fingerprint() core.Hash {
	return core.ComputeParameterHash(map[string]interface{}{
		"iterations":        c.Iterations,
		"fractions":         c.Fractions,
		"replicates":        c.Replicates,
		"evaluator":         c.Evaluator,
		"seed":              c.Seed,
		"strict_degenerate": c.StrictDegenerate,
	})
}

// ValidateIterations requires at least two permutation draws so the sample
// standard deviation is defined.
func ValidateIterations(iterations int) error {
	if iterations < MinIterations {
		return core.NewInvalidArgumentError("iterations", fmt.Sprintf("must be at least %d, got %d", MinIterations, iterations))
	}
	return nil
}

// DefaultFractions returns 0.1, 0.2, ..., 1.0.
func DefaultFractions() []float64 {
	fractions := make([]float64, 10)
	for i := range fractions {
		fractions[i] = float64(i+1) / 10
	}
	return fractions
}

// ValidateFractions requires a non-empty schedule with every value in (0, 1].
func ValidateFractions(fractions []float64) error {
	if len(fractions) == 0 {
		return core.NewInvalidArgumentError("fractions", "schedule is empty")
	}
	for i, f := range fractions {
		if math.IsNaN(f) || f <= 0 || f > 1 {
			return core.NewInvalidArgumentError("fractions", fmt.Sprintf("entry %d (%v) is outside (0, 1]", i, f))
		}
	}
	return nil
}

// SubsampleSize is round(f * n), rounding half away from zero.
func SubsampleSize(fraction float64, n int) int {
	return int(math.Round(fraction * float64(n)))
}
