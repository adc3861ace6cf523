package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

// FacilityRepository implements storage.FacilityRepository for BadgerDB.
type FacilityRepository struct {
	backend *Backend
}

var _ storage.FacilityRepository = (*FacilityRepository)(nil)

func NewFacilityRepository(backend *Backend) *FacilityRepository {
	return &FacilityRepository{backend: backend}
}

func (r *FacilityRepository) Close() error {
	return nil
}

func (r *FacilityRepository) PutFacilities(ctx context.Context, facilities ...*core.Facility) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		for _, f := range facilities {
			if f.ID == "" {
				return core.ErrEmptyID
			}
			if err := tx.Set(makeFacilityKey(f.ID), storage.MarshalFacility(f)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *FacilityRepository) GetFacility(ctx context.Context, id string) (*core.Facility, error) {
	var f *core.Facility
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		var err error
		f, err = get(tx, makeFacilityKey(id), storage.UnmarshalFacility)
		return err
	})
	return f, err
}

func (r *FacilityRepository) ListFacilities(ctx context.Context) ([]*core.Facility, error) {
	var facilities []*core.Facility
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scan(tx, []byte(facilityPrefix), false, func(_, val []byte) error {
			f, err := storage.UnmarshalFacility(val)
			if err != nil {
				return err
			}
			facilities = append(facilities, f)
			return nil
		})
	})
	return facilities, err
}
