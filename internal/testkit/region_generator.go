package testkit

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/sampleuv"

	"gonzs/domain/labelset"
)

// Scenario is a synthetic comparison: a query and a reference drawn from [1, Universe].
type Scenario struct {
	Name      string
	Universe  int
	Query     labelset.LabelSet
	Reference labelset.LabelSet
}

// Scenario names understood by ScenarioByName
const (
	ScenarioEnriched   = "enriched"
	ScenarioRandom     = "random"
	ScenarioDegenerate = "degenerate"
)

// RegionGeneratorConfig describes a query with a fixed share of labels inside the reference
type RegionGeneratorConfig struct {
	Universe      int
	ReferenceSize int
	QuerySize     int
	// InsideFraction of the query is drawn from the reference, the rest from
	// labels outside it.
	InsideFraction float64
	Seed           int64
}

// RegionGenerator builds synthetic label sets with a known association strength
type RegionGenerator struct {
	config RegionGeneratorConfig
	rng    *rand.Rand
}

// NewRegionGenerator creates a generator seeded from config.Seed
func NewRegionGenerator(config RegionGeneratorConfig) *RegionGenerator {
	return &RegionGenerator{
		config: config,
		rng:    rand.New(rand.NewPCG(uint64(config.Seed), 0x5eed)),
	}
}

// Generate draws the reference and then a query with round(InsideFraction*QuerySize)
// labels inside the reference.
func (g *RegionGenerator) Generate() (Scenario, error) {
	c := g.config
	if c.ReferenceSize > c.Universe {
		return Scenario{}, fmt.Errorf("reference size %d exceeds universe %d", c.ReferenceSize, c.Universe)
	}
	inside := int(c.InsideFraction*float64(c.QuerySize) + 0.5)
	outside := c.QuerySize - inside
	if inside > c.ReferenceSize || outside > c.Universe-c.ReferenceSize {
		return Scenario{}, fmt.Errorf("query of %d (%d inside) does not fit reference %d in universe %d",
			c.QuerySize, inside, c.ReferenceSize, c.Universe)
	}

	referenceLabels := g.draw(c.Universe, c.ReferenceSize, func(i int) int { return i + 1 })
	reference, err := labelset.New(referenceLabels)
	if err != nil {
		return Scenario{}, err
	}

	queryLabels := g.draw(c.ReferenceSize, inside, reference.At)

	complement := make([]int, 0, c.Universe-c.ReferenceSize)
	for l := 1; l <= c.Universe; l++ {
		if !reference.Contains(l) {
			complement = append(complement, l)
		}
	}
	queryLabels = append(queryLabels, g.draw(len(complement), outside, func(i int) int { return complement[i] })...)

	query, err := labelset.New(queryLabels)
	if err != nil {
		return Scenario{}, err
	}

	return Scenario{
		Name:      fmt.Sprintf("constant-%.2f", c.InsideFraction),
		Universe:  c.Universe,
		Query:     query,
		Reference: reference,
	}, nil
}

// draw picks k distinct indices of [0, n) and maps them through label.
func (g *RegionGenerator) draw(n, k int, label func(int) int) []int {
	if k == 0 {
		return nil
	}
	idxs := make([]int, k)
	sampleuv.WithoutReplacement(idxs, n, g.rng)
	out := make([]int, k)
	for i, idx := range idxs {
		out[i] = label(idx)
	}
	return out
}

// EnrichedScenario: universe 100000, a 1000-label reference, and a query of 50
// reference labels plus 200 random labels.
func EnrichedScenario(seed int64) (Scenario, error) {
	g := NewRegionGenerator(RegionGeneratorConfig{Universe: 100000, ReferenceSize: 1000, Seed: seed})

	reference, err := labelset.New(g.draw(100000, 1000, func(i int) int { return i + 1 }))
	if err != nil {
		return Scenario{}, err
	}
	fromReference, err := labelset.New(g.draw(reference.Len(), 50, reference.At))
	if err != nil {
		return Scenario{}, err
	}

	// Random labels may coincide with the designed ones; top up until the
	// union reaches 250 so the query keeps its nominal size.
	query := fromReference
	for query.Len() < 250 {
		extra, err := labelset.New(g.draw(100000, 250-query.Len(), func(i int) int { return i + 1 }))
		if err != nil {
			return Scenario{}, err
		}
		query = query.Union(extra)
	}

	return Scenario{Name: ScenarioEnriched, Universe: 100000, Query: query, Reference: reference}, nil
}

// RandomScenario: the same reference shape with 500 query labels drawn uniformly.
func RandomScenario(seed int64) (Scenario, error) {
	g := NewRegionGenerator(RegionGeneratorConfig{Universe: 100000, Seed: seed})

	reference, err := labelset.New(g.draw(100000, 1000, func(i int) int { return i + 1 }))
	if err != nil {
		return Scenario{}, err
	}
	query, err := labelset.New(g.draw(100000, 500, func(i int) int { return i + 1 }))
	if err != nil {
		return Scenario{}, err
	}

	return Scenario{Name: ScenarioRandom, Universe: 100000, Query: query, Reference: reference}, nil
}

// DegenerateScenario makes the query the whole universe, so every permutation
// reproduces the same overlap.
func DegenerateScenario() (Scenario, error) {
	const universe = 300
	query, err := labelset.Range(1, universe)
	if err != nil {
		return Scenario{}, err
	}
	reference, err := labelset.Range(1, 100)
	if err != nil {
		return Scenario{}, err
	}
	return Scenario{Name: ScenarioDegenerate, Universe: universe, Query: query, Reference: reference}, nil
}

// ScenarioByName returns one of the named synthetic scenarios
func ScenarioByName(name string, seed int64) (Scenario, error) {
	switch name {
	case ScenarioEnriched:
		return EnrichedScenario(seed)
	case ScenarioRandom:
		return RandomScenario(seed)
	case ScenarioDegenerate:
		return DegenerateScenario()
	default:
		return Scenario{}, fmt.Errorf("unknown scenario %q (expected %s, %s or %s)", name, ScenarioEnriched, ScenarioRandom, ScenarioDegenerate)
	}
}
