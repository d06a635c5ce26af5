// Package senses provides the evaluation functions a permutation test can use
// to compare a query LabelSet with a reference LabelSet.
package senses

import (
	"fmt"
	"sort"

	"gonzs/domain/core"
	"gonzs/ports"
)

// StatisticalSense is an evaluation function with a human-readable description
type StatisticalSense interface {
	ports.EvaluatorPort
	Description() string
}

// SenseEngine is the registry of available evaluation functions
type SenseEngine struct {
	senses []StatisticalSense
}

// NewSenseEngine creates an engine with every built-in sense
func NewSenseEngine() *SenseEngine {
	return &SenseEngine{
		senses: []StatisticalSense{
			NewOverlapSense(),
			NewMeanDistanceSense(),
			NewJaccardSense(),
		},
	}
}

// Register adds a custom sense, replacing any sense with the same name
func (e *SenseEngine) Register(sense StatisticalSense) {
	for i, s := range e.senses {
		if s.Name() == sense.Name() {
			e.senses[i] = sense
			return
		}
	}
	e.senses = append(e.senses, sense)
}

// Lookup returns the sense registered under name
func (e *SenseEngine) Lookup(name string) (ports.EvaluatorPort, error) {
	for _, s := range e.senses {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (known: %v)", core.ErrSenseNotFound, name, e.Names())
}

// Names returns all available sense names, sorted
func (e *SenseEngine) Names() []string {
	names := make([]string, len(e.senses))
	for i, s := range e.senses {
		names[i] = s.Name()
	}
	sort.Strings(names)
	return names
}

// Senses returns the registered senses sorted by name
func (e *SenseEngine) Senses() []StatisticalSense {
	out := make([]StatisticalSense, len(e.senses))
	copy(out, e.senses)
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
