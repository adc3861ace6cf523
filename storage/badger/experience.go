package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

// ExperienceRepository implements storage.ExperienceRepository for BadgerDB.
// Records are indexed by doctor so candidate lookups avoid a full scan.
type ExperienceRepository struct {
	backend *Backend
}

var _ storage.ExperienceRepository = (*ExperienceRepository)(nil)

func NewExperienceRepository(backend *Backend) *ExperienceRepository {
	return &ExperienceRepository{backend: backend}
}

func (r *ExperienceRepository) Close() error {
	return nil
}

// PutExperiences inserts or replaces records by ID.
func (r *ExperienceRepository) PutExperiences(ctx context.Context, records ...*core.ExperienceRecord) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		for _, rec := range records {
			if rec.ID == "" {
				return core.ErrEmptyID
			}
			key := makeExperienceKey(rec.ID)

			old, err := get(tx, key, storage.UnmarshalExperience)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			if old != nil && old.DoctorID != rec.DoctorID {
				if err := tx.Delete(makeExperienceDoctorKey(old.DoctorID, old.ID)); err != nil {
					return err
				}
			}

			if err := tx.Set(key, storage.MarshalExperience(rec)); err != nil {
				return err
			}
			if err := tx.Set(makeExperienceDoctorKey(rec.DoctorID, rec.ID), []byte(rec.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByDoctorIDs groups records by doctor.
func (r *ExperienceRepository) FindByDoctorIDs(ctx context.Context, doctorIDs []string) (map[string][]core.ExperienceRecord, error) {
	out := make(map[string][]core.ExperienceRecord)
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		for _, doctorID := range doctorIDs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, done := out[doctorID]; done {
				continue
			}
			records, err := experiencesOf(tx, doctorID)
			if err != nil {
				return err
			}
			if len(records) > 0 {
				out[doctorID] = records
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListExperiences returns every record ordered by ID.
func (r *ExperienceRepository) ListExperiences(ctx context.Context) ([]*core.ExperienceRecord, error) {
	var records []*core.ExperienceRecord
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scan(tx, []byte(experiencePrefix), false, func(_, val []byte) error {
			rec, err := storage.UnmarshalExperience(val)
			if err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	return records, err
}

func experiencesOf(tx *badger.Txn, doctorID string) ([]core.ExperienceRecord, error) {
	var ids []string
	err := scan(tx, makePartialExperienceDoctorKey(doctorID), false, func(_, val []byte) error {
		ids = append(ids, string(val))
		return nil
	})
	if err != nil {
		return nil, err
	}

	records := make([]core.ExperienceRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := get(tx, makeExperienceKey(id), storage.UnmarshalExperience)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}
