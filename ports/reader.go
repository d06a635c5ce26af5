package ports

import (
	"context"

	"gonzs/domain/labelset"
)

// LabelSetReaderPort loads a LabelSet prepared by an external collaborator
type LabelSetReaderPort interface {
	ReadLabelSet(ctx context.Context, path string) (labelset.LabelSet, error)
}
