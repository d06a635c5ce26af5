package ports

import (
	"math/rand/v2"

	"gonzs/domain/labelset"
)

// SubsetSamplerPort draws uniform subsets without replacement
type SubsetSamplerPort interface {
	// Sample returns k distinct labels from [1, universeSize]
	Sample(universeSize, k int, src rand.Source) (labelset.LabelSet, error)
	// SampleFrom returns a uniform k-subset of set
	SampleFrom(set labelset.LabelSet, k int, src rand.Source) (labelset.LabelSet, error)
}
