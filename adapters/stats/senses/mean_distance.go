package senses

import (
	"sort"

	"gonzs/domain/labelset"
)

// MeanDistanceSense is the mean absolute distance from each query label to its
// nearest reference label. Smaller values mean closer sets, so association
// shows up as a negative z-score. Either set being empty yields 0.
type MeanDistanceSense struct{}

func NewMeanDistanceSense() *MeanDistanceSense { return &MeanDistanceSense{} }

func (s *MeanDistanceSense) Name() string { return "mean_distance" }

func (s *MeanDistanceSense) Description() string {
	return "mean distance from each query label to its nearest reference label"
}

func (s *MeanDistanceSense) Evaluate(query, reference labelset.LabelSet) float64 {
	if query.IsEmpty() || reference.IsEmpty() {
		return 0
	}

	n := reference.Len()
	total := 0
	for i := 0; i < query.Len(); i++ {
		label := query.At(i)
		j := sort.Search(n, func(k int) bool { return reference.At(k) >= label })

		best := -1
		if j < n {
			best = reference.At(j) - label
		}
		if j > 0 {
			if d := label - reference.At(j-1); best < 0 || d < best {
				best = d
			}
		}
		total += best
	}
	return float64(total) / float64(query.Len())
}
