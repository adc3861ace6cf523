package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

// VectorIndex implements storage.VectorIndex for BadgerDB by brute force
// over each doctor's experience cases.
type VectorIndex struct {
	backend *Backend
}

var _ storage.VectorIndex = (*VectorIndex)(nil)

func NewVectorIndex(backend *Backend) *VectorIndex {
	return &VectorIndex{backend: backend}
}

func (v *VectorIndex) Close() error {
	return nil
}

func (v *VectorIndex) PutCaseVector(ctx context.Context, caseID string, vec []float32) error {
	if core.NormalizeCaseID(caseID) == "" {
		return core.ErrEmptyID
	}
	return v.backend.update(ctx, func(tx *badger.Txn) error {
		return tx.Set(makeVectorKey(caseID), storage.MarshalVector(vec))
	})
}

func (v *VectorIndex) CaseVector(ctx context.Context, caseID string) ([]float32, bool, error) {
	var vec []float32
	err := v.backend.view(ctx, func(tx *badger.Txn) error {
		var err error
		vec, err = get(tx, makeVectorKey(caseID), storage.UnmarshalVector)
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// DoctorSimilarity averages the cosine similarity of vec against the
// embedded cases in each doctor's experience.
func (v *VectorIndex) DoctorSimilarity(ctx context.Context, vec []float32, doctorIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(doctorIDs))
	err := v.backend.view(ctx, func(tx *badger.Txn) error {
		// Shared across doctors: many doctors treat the same cases.
		vectors := make(map[string][]float32)
		for _, doctorID := range doctorIDs {
			if err := ctx.Err(); err != nil {
				return err
			}
			records, err := experiencesOf(tx, doctorID)
			if err != nil {
				return err
			}
			var candidates [][]float32
			for _, rec := range records {
				caseID := core.NormalizeCaseID(rec.CaseID)
				cv, seen := vectors[caseID]
				if !seen {
					cv, err = get(tx, makeVectorKey(caseID), storage.UnmarshalVector)
					if err != nil && !errors.Is(err, storage.ErrNotFound) {
						return err
					}
					vectors[caseID] = cv
				}
				if len(cv) > 0 {
					candidates = append(candidates, cv)
				}
			}
			if sim, ok := storage.MeanCosine(vec, candidates); ok {
				out[doctorID] = sim
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
