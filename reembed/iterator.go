package reembed

import (
	"context"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

// DefaultBatchSize is the number of cases handed to the processor at once.
const DefaultBatchSize = 100

// CaseIterator walks every stored case in ID order, in batches.
type CaseIterator struct {
	cases     storage.CaseRepository
	batchSize int
}

// NewCaseIterator creates an iterator. A non-positive batchSize uses DefaultBatchSize.
func NewCaseIterator(cases storage.CaseRepository, batchSize int) *CaseIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &CaseIterator{cases: cases, batchSize: batchSize}
}

// Count returns the number of stored cases.
func (it *CaseIterator) Count(ctx context.Context) (int, error) {
	all, err := it.cases.ListCases(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

// ForEach calls fn with consecutive batches and stops at the first error
// or when ctx is done.
func (it *CaseIterator) ForEach(ctx context.Context, fn func([]*core.Case) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	all, err := it.cases.ListCases(ctx)
	if err != nil {
		return err
	}

	for start := 0; start < len(all); start += it.batchSize {
		end := min(start+it.batchSize, len(all))
		if err := fn(all[start:end]); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
