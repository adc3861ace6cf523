package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

// DoctorRepository implements storage.DoctorRepository for BadgerDB.
type DoctorRepository struct {
	backend *Backend
}

var _ storage.DoctorRepository = (*DoctorRepository)(nil)

// NewDoctorRepository creates a new DoctorRepository.
func NewDoctorRepository(backend *Backend) *DoctorRepository {
	return &DoctorRepository{backend: backend}
}

// Close is a no-op; the backend is closed by its owner.
func (r *DoctorRepository) Close() error {
	return nil
}

// PutDoctors inserts or replaces doctors and keeps the specialty index current.
func (r *DoctorRepository) PutDoctors(ctx context.Context, doctors ...*core.Doctor) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		for _, d := range doctors {
			if d.ID == "" {
				return core.ErrEmptyID
			}
			key := makeDoctorKey(d.ID)

			old, err := get(tx, key, storage.UnmarshalDoctor)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			if old != nil {
				for _, s := range old.Specialties {
					if err := tx.Delete(makeDoctorSpecialtyKey(s, old.ID)); err != nil {
						return err
					}
				}
			}

			if err := tx.Set(key, storage.MarshalDoctor(d)); err != nil {
				return err
			}
			for _, s := range d.Specialties {
				if err := tx.Set(makeDoctorSpecialtyKey(s, d.ID), []byte(d.ID)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// GetDoctor retrieves a doctor by ID.
func (r *DoctorRepository) GetDoctor(ctx context.Context, id string) (*core.Doctor, error) {
	var doctor *core.Doctor
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		var err error
		doctor, err = get(tx, makeDoctorKey(id), storage.UnmarshalDoctor)
		return err
	})
	return doctor, err
}

// ListDoctors returns every doctor ordered by ID.
func (r *DoctorRepository) ListDoctors(ctx context.Context) ([]*core.Doctor, error) {
	return r.list(ctx, 0)
}

// FindBySpecialty walks the specialty index. Index keys sort by doctor ID.
func (r *DoctorRepository) FindBySpecialty(ctx context.Context, specialty string, limit int) ([]*core.Doctor, error) {
	if specialtyToken(specialty) == "" {
		return r.list(ctx, limit)
	}

	var doctors []*core.Doctor
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		var ids []string
		err := scan(tx, makePartialDoctorSpecialtyKey(specialty), false, func(_, val []byte) error {
			ids = append(ids, string(val))
			return nil
		})
		if err != nil {
			return err
		}
		for _, id := range ids {
			if limit > 0 && len(doctors) >= limit {
				break
			}
			d, err := get(tx, makeDoctorKey(id), storage.UnmarshalDoctor)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			doctors = append(doctors, d)
		}
		return nil
	})
	return doctors, err
}

func (r *DoctorRepository) list(ctx context.Context, limit int) ([]*core.Doctor, error) {
	var doctors []*core.Doctor
	errLimit := errors.New("limit reached")
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scan(tx, []byte(doctorPrefix), false, func(_, val []byte) error {
			d, err := storage.UnmarshalDoctor(val)
			if err != nil {
				return err
			}
			doctors = append(doctors, d)
			if limit > 0 && len(doctors) >= limit {
				return errLimit
			}
			return nil
		})
	})
	if errors.Is(err, errLimit) {
		err = nil
	}
	return doctors, err
}
