// Package labelset models reduced region sets as sets of positive integer labels
// drawn from a bounded universe [1, U].
package labelset

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gonzs/domain/core"
)

// Universe is the implicit label range [1, Size] all random draws come from.
type Universe struct {
	size int
}

// NewUniverse validates and returns a universe of the given size.
func NewUniverse(size int) (Universe, error) {
	if size <= 0 {
		return Universe{}, core.NewInvalidArgumentError("universe size", fmt.Sprintf("must be positive, got %d", size))
	}
	return Universe{size: size}, nil
}

// Size returns U.
func (u Universe) Size() int { return u.size }

// Contains reports whether label lies in [1, U].
func (u Universe) Contains(label int) bool {
	return label >= 1 && label <= u.size
}

// LabelSet is an immutable set of unique labels.
// The zero value is a valid empty set.
type LabelSet struct {
	labels []int // sorted ascending
	index  map[int]struct{}
}

// New builds a LabelSet, rejecting duplicates and labels below 1.
func New(labels []int) (LabelSet, error) {
	sorted := slices.Clone(labels)
	slices.Sort(sorted)

	index := make(map[int]struct{}, len(sorted))
	for i, l := range sorted {
		if l < 1 {
			return LabelSet{}, core.NewInvalidArgumentError("label", fmt.Sprintf("%d is below 1", l))
		}
		if i > 0 && sorted[i-1] == l {
			return LabelSet{}, core.NewInvalidArgumentError("label", fmt.Sprintf("%d is duplicated", l))
		}
		index[l] = struct{}{}
	}

	return LabelSet{labels: sorted, index: index}, nil
}

// NewWithin builds a LabelSet and additionally checks every label against u.
func NewWithin(labels []int, u Universe) (LabelSet, error) {
	set, err := New(labels)
	if err != nil {
		return LabelSet{}, err
	}
	if err := set.ValidateWithin(u); err != nil {
		return LabelSet{}, err
	}
	return set, nil
}

// MustNew is New for fixtures; it panics on invalid input.
func MustNew(labels ...int) LabelSet {
	set, err := New(labels)
	if err != nil {
		panic(err)
	}
	return set
}

// Range returns the set {from, ..., to}. An empty set is returned when to < from.
func Range(from, to int) (LabelSet, error) {
	if to < from {
		return LabelSet{}, nil
	}
	labels := make([]int, 0, to-from+1)
	for l := from; l <= to; l++ {
		labels = append(labels, l)
	}
	return New(labels)
}

// ValidateWithin checks size and label bounds against u.
func (s LabelSet) ValidateWithin(u Universe) error {
	if s.Len() > u.Size() {
		return core.NewExhaustionError(s.Len(), u.Size())
	}
	if s.Len() > 0 && !u.Contains(s.labels[len(s.labels)-1]) {
		return core.NewInvalidArgumentError("label", fmt.Sprintf("%d lies outside universe [1, %d]", s.labels[len(s.labels)-1], u.Size()))
	}
	return nil
}

// Len returns the cardinality.
func (s LabelSet) Len() int { return len(s.labels) }

// IsEmpty reports whether the set has no labels.
func (s LabelSet) IsEmpty() bool { return len(s.labels) == 0 }

// Contains reports membership in O(1).
func (s LabelSet) Contains(label int) bool {
	_, ok := s.index[label]
	return ok
}

// Labels returns a sorted copy of the labels.
func (s LabelSet) Labels() []int { return slices.Clone(s.labels) }

// At returns the i-th smallest label.
func (s LabelSet) At(i int) int { return s.labels[i] }

// Max returns the largest label, or 0 for an empty set.
func (s LabelSet) Max() int {
	if len(s.labels) == 0 {
		return 0
	}
	return s.labels[len(s.labels)-1]
}

// Union returns s ∪ other.
func (s LabelSet) Union(other LabelSet) LabelSet {
	merged := make([]int, 0, s.Len()+other.Len())
	merged = append(merged, s.labels...)
	for _, l := range other.labels {
		if !s.Contains(l) {
			merged = append(merged, l)
		}
	}
	set, _ := New(merged)
	return set
}

// Fingerprint hashes the sorted label list.
func (s LabelSet) Fingerprint() core.Hash {
	var b strings.Builder
	b.Grow(len(s.labels) * 6)
	for _, l := range s.labels {
		b.WriteString(strconv.Itoa(l))
		b.WriteByte(',')
	}
	return core.NewHash([]byte(b.String()))
}

func (s LabelSet) String() string {
	const preview = 8
	if len(s.labels) <= preview {
		return fmt.Sprintf("LabelSet%v", s.labels)
	}
	return fmt.Sprintf("LabelSet%v...(%d labels)", s.labels[:preview], len(s.labels))
}
