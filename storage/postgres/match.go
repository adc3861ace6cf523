package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

const matchColumns = `id, case_id, doctor_id, match_score, match_rationale, rank, status, signals, created_at`

const insertMatchSQL = `
	INSERT INTO consultation_matches (` + matchColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// MatchRepository implements storage.MatchRepository on PostgreSQL.
// case_id holds the normalized case ID.
type MatchRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.MatchRepository = (*MatchRepository)(nil)

// MatchOption configures a MatchRepository.
type MatchOption func(*MatchRepository)

func WithMatchLogger(logger *slog.Logger) MatchOption {
	return func(r *MatchRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewMatchRepository(db *sql.DB, opts ...MatchOption) *MatchRepository {
	r := &MatchRepository{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *MatchRepository) Close() error { return nil }

// ReplaceForCase deletes and inserts in one transaction; the deferred
// rollback restores the previous matches on any failure.
func (r *MatchRepository) ReplaceForCase(ctx context.Context, caseID string, matches []core.ConsultationMatch) error {
	norm := core.NormalizeCaseID(caseID)
	if norm == "" {
		return &storage.PersistenceError{CaseID: caseID, Op: "validate", Err: core.ErrEmptyID}
	}
	fail := func(op string, err error) error {
		r.logger.Error("match persistence failed", "case", caseID, "op", op, "error", err)
		return &storage.PersistenceError{CaseID: caseID, Op: op, Err: err}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fail("begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM consultation_matches WHERE case_id = $1`, norm); err != nil {
		return fail("delete", err)
	}
	for _, m := range matches {
		m.CaseID = norm
		if err := insertMatch(ctx, tx, &m); err != nil {
			return fail("insert", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fail("commit", err)
	}
	return nil
}

func (r *MatchRepository) FindByCaseID(ctx context.Context, caseID string) ([]core.ConsultationMatch, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM consultation_matches WHERE case_id = $1 ORDER BY rank, id`,
		core.NormalizeCaseID(caseID))
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []core.ConsultationMatch
	for rows.Next() {
		var m core.ConsultationMatch
		var status string
		var signals pq.StringArray
		err := rows.Scan(&m.ID, &m.CaseID, &m.DoctorID, &m.Score, &m.Rationale, &m.Rank, &status, &signals, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.Status = core.MatchStatus(status)
		m.Signals = nilIfEmpty(signals)
		m.CreatedAt = m.CreatedAt.UTC()
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *MatchRepository) DeleteByCaseID(ctx context.Context, caseID string) error {
	norm := core.NormalizeCaseID(caseID)
	if norm == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM consultation_matches WHERE case_id = $1`, norm); err != nil {
		return fmt.Errorf("failed to delete matches: %w", err)
	}
	return nil
}

func (r *MatchRepository) InsertBatch(ctx context.Context, matches []core.ConsultationMatch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range matches {
		m.CaseID = core.NormalizeCaseID(m.CaseID)
		if err := insertMatch(ctx, tx, &m); err != nil {
			return fmt.Errorf("failed to insert match: %w", err)
		}
	}
	return tx.Commit()
}

func (r *MatchRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM consultation_matches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return n, nil
}

func (r *MatchRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM consultation_matches`); err != nil {
		return fmt.Errorf("failed to delete matches: %w", err)
	}
	return nil
}

func insertMatch(ctx context.Context, tx *sql.Tx, m *core.ConsultationMatch) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	status := m.Status
	if status == "" {
		status = core.MatchStatusPending
	}
	_, err := tx.ExecContext(ctx, insertMatchSQL,
		m.ID, m.CaseID, m.DoctorID, m.Score, strings.TrimSpace(m.Rationale), m.Rank, string(status),
		pq.Array(orEmpty(m.Signals)), m.CreatedAt)
	return err
}
