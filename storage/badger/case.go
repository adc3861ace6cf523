package badger

import (
	"context"
	"errors"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

// CaseRepository implements storage.CaseRepository for BadgerDB.
// Case IDs are matched case-insensitively.
type CaseRepository struct {
	backend *Backend
}

var _ storage.CaseRepository = (*CaseRepository)(nil)

func NewCaseRepository(backend *Backend) *CaseRepository {
	return &CaseRepository{backend: backend}
}

func (r *CaseRepository) Close() error {
	return nil
}

func (r *CaseRepository) PutCases(ctx context.Context, cases ...*core.Case) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		for _, c := range cases {
			if strings.TrimSpace(c.ID) == "" {
				return core.ErrEmptyID
			}
			if err := tx.Set(makeCaseKey(c.ID), storage.MarshalCase(c)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *CaseRepository) GetCase(ctx context.Context, id string) (*core.Case, error) {
	var c *core.Case
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		var err error
		c, err = get(tx, makeCaseKey(id), storage.UnmarshalCase)
		return err
	})
	return c, err
}

func (r *CaseRepository) GetCases(ctx context.Context, ids ...string) ([]*core.Case, error) {
	cases := make([]*core.Case, 0, len(ids))
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		for _, id := range ids {
			c, err := get(tx, makeCaseKey(id), storage.UnmarshalCase)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			cases = append(cases, c)
		}
		return nil
	})
	return cases, err
}

func (r *CaseRepository) ListCases(ctx context.Context) ([]*core.Case, error) {
	var cases []*core.Case
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scan(tx, []byte(casePrefix), false, func(_, val []byte) error {
			c, err := storage.UnmarshalCase(val)
			if err != nil {
				return err
			}
			cases = append(cases, c)
			return nil
		})
	})
	return cases, err
}
