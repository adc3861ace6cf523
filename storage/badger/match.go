package badger

import (
	"context"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

// MatchRepository implements storage.MatchRepository for BadgerDB.
type MatchRepository struct {
	backend *Backend
}

var _ storage.MatchRepository = (*MatchRepository)(nil)

func NewMatchRepository(backend *Backend) *MatchRepository {
	return &MatchRepository{backend: backend}
}

func (r *MatchRepository) Close() error {
	return nil
}

// ReplaceForCase swaps a case's matches in a single transaction.
func (r *MatchRepository) ReplaceForCase(ctx context.Context, caseID string, matches []core.ConsultationMatch) error {
	if strings.TrimSpace(caseID) == "" {
		return &storage.PersistenceError{CaseID: caseID, Op: "validate", Err: core.ErrEmptyID}
	}
	norm := core.NormalizeCaseID(caseID)
	op := "delete"
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		if err := deletePrefix(tx, makePartialMatchKey(caseID)); err != nil {
			return err
		}
		op = "insert"
		for _, m := range matches {
			m.CaseID = norm
			if err := putMatch(tx, &m); err != nil {
				return err
			}
		}
		op = "commit"
		return tx.Commit()
	}, true)
	if err != nil {
		return &storage.PersistenceError{CaseID: caseID, Op: op, Err: err}
	}
	return nil
}

func (r *MatchRepository) FindByCaseID(ctx context.Context, caseID string) ([]core.ConsultationMatch, error) {
	var matches []core.ConsultationMatch
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scan(tx, makePartialMatchKey(caseID), false, func(_, val []byte) error {
			m, err := storage.UnmarshalMatch(val)
			if err != nil {
				return err
			}
			matches = append(matches, *m)
			return nil
		})
	})
	return matches, err
}

func (r *MatchRepository) DeleteByCaseID(ctx context.Context, caseID string) error {
	if strings.TrimSpace(caseID) == "" {
		return nil
	}
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		return deletePrefix(tx, makePartialMatchKey(caseID))
	})
}

func (r *MatchRepository) InsertBatch(ctx context.Context, matches []core.ConsultationMatch) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		for _, m := range matches {
			if err := putMatch(tx, &m); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *MatchRepository) Count(ctx context.Context) (int, error) {
	n := 0
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scan(tx, []byte(matchPrefix), true, func(_, _ []byte) error {
			n++
			return nil
		})
	})
	return n, err
}

func (r *MatchRepository) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.backend.DropPrefix(matchPrefix)
}

func putMatch(tx *badger.Txn, m *core.ConsultationMatch) error {
	m.CaseID = core.NormalizeCaseID(m.CaseID)
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return tx.Set(makeMatchKey(m.CaseID, m.Rank, m.ID), storage.MarshalMatch(m))
}
