package ports

import "gonzs/domain/labelset"

// EvaluatorPort is a pluggable scalar comparator between a query and a
// reference set. Implementations must be deterministic, free of side effects
// and well-defined for empty or disjoint inputs.
type EvaluatorPort interface {
	Name() string
	Evaluate(query, reference labelset.LabelSet) float64
}

// EvaluatorRegistry resolves evaluation functions by name.
type EvaluatorRegistry interface {
	Lookup(name string) (EvaluatorPort, error)
	Names() []string
}
