package senses

import "gonzs/domain/labelset"

// JaccardSense is |q ∩ r| / |q ∪ r|; two empty sets score 0.
type JaccardSense struct{}

func NewJaccardSense() *JaccardSense { return &JaccardSense{} }

func (s *JaccardSense) Name() string { return "jaccard" }

func (s *JaccardSense) Description() string {
	return "shared labels divided by the size of the union"
}

func (s *JaccardSense) Evaluate(query, reference labelset.LabelSet) float64 {
	shared := labelset.Overlap(query, reference)
	union := query.Len() + reference.Len() - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
