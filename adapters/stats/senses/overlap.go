package senses

import "gonzs/domain/labelset"

// OverlapSense counts shared labels. It is the default evaluation function.
type OverlapSense struct{}

func NewOverlapSense() *OverlapSense { return &OverlapSense{} }

func (s *OverlapSense) Name() string { return "overlap" }

func (s *OverlapSense) Description() string {
	return "number of query labels also present in the reference"
}

func (s *OverlapSense) Evaluate(query, reference labelset.LabelSet) float64 {
	return float64(labelset.Overlap(query, reference))
}
