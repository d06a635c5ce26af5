package battery

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/sampleuv"

	"gonzs/domain/core"
	"gonzs/domain/labelset"
)

// SubsetSampler draws labels uniformly without replacement.
type SubsetSampler struct{}

// NewSubsetSampler creates a new subset sampler
func NewSubsetSampler() *SubsetSampler {
	return &SubsetSampler{}
}

// Sample returns exactly k distinct labels drawn uniformly from [1, universeSize].
func (s *SubsetSampler) Sample(universeSize, k int, src rand.Source) (labelset.LabelSet, error) {
	if universeSize <= 0 {
		return labelset.LabelSet{}, core.NewInvalidArgumentError("universe size", fmt.Sprintf("must be positive, got %d", universeSize))
	}
	idxs, err := s.indices(universeSize, k, src)
	if err != nil {
		return labelset.LabelSet{}, err
	}
	for i := range idxs {
		idxs[i]++
	}
	return labelset.New(idxs)
}

// SampleFrom returns a uniform k-subset of set.
func (s *SubsetSampler) SampleFrom(set labelset.LabelSet, k int, src rand.Source) (labelset.LabelSet, error) {
	idxs, err := s.indices(set.Len(), k, src)
	if err != nil {
		return labelset.LabelSet{}, err
	}
	for i, idx := range idxs {
		idxs[i] = set.At(idx)
	}
	return labelset.New(idxs)
}

func (s *SubsetSampler) indices(n, k int, src rand.Source) ([]int, error) {
	if k < 0 {
		return nil, core.NewInvalidArgumentError("sample size", fmt.Sprintf("must not be negative, got %d", k))
	}
	if k > n {
		return nil, core.NewExhaustionError(k, n)
	}
	if src == nil {
		return nil, core.NewInvalidArgumentError("random source", "is required")
	}
	// sampleuv panics on an empty destination.
	if k == 0 {
		return []int{}, nil
	}
	idxs := make([]int, k)
	sampleuv.WithoutReplacement(idxs, n, src)
	return idxs, nil
}
