package association

import (
	"errors"
	"slices"
	"sort"
)

// ErrCollectionFinalized is returned when adding to a finalized collection.
var ErrCollectionFinalized = errors.New("replicate collection is finalized")

// ReplicateCollection groups ZS and nZS values from all replicates by sample size.
type ReplicateCollection struct {
	zScores           map[int][]TaggedValue
	normalizedZScores map[int][]TaggedValue
	tables            []SweepTable
	finalized         bool
}

// NewReplicateCollection returns an empty, writable collection.
func NewReplicateCollection() *ReplicateCollection {
	return &ReplicateCollection{
		zScores:           make(map[int][]TaggedValue),
		normalizedZScores: make(map[int][]TaggedValue),
	}
}

// Add appends every row of table, keyed by its sample size.
func (c *ReplicateCollection) Add(table SweepTable) error {
	if c.finalized {
		return ErrCollectionFinalized
	}
	for _, row := range table.Rows {
		c.zScores[row.SampleSize] = append(c.zScores[row.SampleSize], TaggedValue{
			Value:     row.ZScore,
			Tag:       TagOf(row.ZScore),
			Replicate: table.Replicate,
		})
		c.normalizedZScores[row.SampleSize] = append(c.normalizedZScores[row.SampleSize], TaggedValue{
			Value:     row.NormalizedZScore,
			Tag:       TagOf(row.NormalizedZScore),
			Replicate: table.Replicate,
		})
	}
	c.tables = append(c.tables, table)
	return nil
}

// Finalize makes the collection read-only.
func (c *ReplicateCollection) Finalize() { c.finalized = true }

// Finalized reports whether Finalize has been called.
func (c *ReplicateCollection) Finalized() bool { return c.finalized }

// Replicates returns the number of sweep tables added.
func (c *ReplicateCollection) Replicates() int { return len(c.tables) }

// Tables returns the sweep tables in insertion order.
func (c *ReplicateCollection) Tables() []SweepTable { return slices.Clone(c.tables) }

// SampleSizes returns the distinct sample sizes, ascending.
func (c *ReplicateCollection) SampleSizes() []int {
	sizes := make([]int, 0, len(c.zScores))
	for size := range c.zScores {
		sizes = append(sizes, size)
	}
	sort.Ints(sizes)
	return sizes
}

// ZScores returns a copy of the ZS multiset at sampleSize.
func (c *ReplicateCollection) ZScores(sampleSize int) []TaggedValue {
	return slices.Clone(c.zScores[sampleSize])
}

// NormalizedZScores returns a copy of the nZS multiset at sampleSize.
func (c *ReplicateCollection) NormalizedZScores(sampleSize int) []TaggedValue {
	return slices.Clone(c.normalizedZScores[sampleSize])
}

// NonFiniteCount counts tagged non-finite nZS values across all sizes.
func (c *ReplicateCollection) NonFiniteCount() int {
	n := 0
	for _, values := range c.normalizedZScores {
		for _, v := range values {
			if !v.IsFinite() {
				n++
			}
		}
	}
	return n
}

// Finite extracts the finite values, preserving order.
func Finite(values []TaggedValue) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v.IsFinite() {
			out = append(out, v.Value)
		}
	}
	return out
}
