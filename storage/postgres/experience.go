package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

const experienceColumns = `id, doctor_id, case_id, specialty, procedures, complexity, outcome, complications,
	time_to_resolution_days, rating, recorded_at`

const upsertExperienceSQL = `
	INSERT INTO experience_records (` + experienceColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO UPDATE SET
		doctor_id = EXCLUDED.doctor_id,
		case_id = EXCLUDED.case_id,
		specialty = EXCLUDED.specialty,
		procedures = EXCLUDED.procedures,
		complexity = EXCLUDED.complexity,
		outcome = EXCLUDED.outcome,
		complications = EXCLUDED.complications,
		time_to_resolution_days = EXCLUDED.time_to_resolution_days,
		rating = EXCLUDED.rating,
		recorded_at = EXCLUDED.recorded_at`

// ExperienceRepository implements storage.ExperienceRepository on PostgreSQL.
type ExperienceRepository struct {
	db *sql.DB
}

var _ storage.ExperienceRepository = (*ExperienceRepository)(nil)

func NewExperienceRepository(db *sql.DB) *ExperienceRepository {
	return &ExperienceRepository{db: db}
}

func (r *ExperienceRepository) Close() error { return nil }

func (r *ExperienceRepository) PutExperiences(ctx context.Context, records ...*core.ExperienceRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range records {
		if e.ID == "" {
			return core.ErrEmptyID
		}
		_, err := tx.ExecContext(ctx, upsertExperienceSQL,
			e.ID, e.DoctorID, e.CaseID, e.Specialty, pq.Array(orEmpty(e.Procedures)),
			string(e.Complexity), string(e.Outcome), pq.Array(orEmpty(e.Complications)),
			e.TimeToResolutionDays, e.Rating, nullTime(e.RecordedAt))
		if err != nil {
			return fmt.Errorf("failed to save experience %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (r *ExperienceRepository) FindByDoctorIDs(ctx context.Context, doctorIDs []string) (map[string][]core.ExperienceRecord, error) {
	out := make(map[string][]core.ExperienceRecord)
	if len(doctorIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+experienceColumns+` FROM experience_records WHERE doctor_id = ANY($1) ORDER BY doctor_id, id`,
		pq.Array(doctorIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query experience: %w", err)
	}
	records, err := collectExperiences(rows)
	if err != nil {
		return nil, err
	}
	for _, e := range records {
		out[e.DoctorID] = append(out[e.DoctorID], *e)
	}
	return out, nil
}

func (r *ExperienceRepository) ListExperiences(ctx context.Context) ([]*core.ExperienceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+experienceColumns+` FROM experience_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query experience: %w", err)
	}
	return collectExperiences(rows)
}

func collectExperiences(rows *sql.Rows) ([]*core.ExperienceRecord, error) {
	defer rows.Close()
	var records []*core.ExperienceRecord
	for rows.Next() {
		e := &core.ExperienceRecord{}
		var procedures, complications pq.StringArray
		var complexity, outcome string
		var recorded sql.NullTime
		err := rows.Scan(&e.ID, &e.DoctorID, &e.CaseID, &e.Specialty, &procedures, &complexity, &outcome,
			&complications, &e.TimeToResolutionDays, &e.Rating, &recorded)
		if err != nil {
			return nil, fmt.Errorf("failed to scan experience: %w", err)
		}
		e.Procedures = nilIfEmpty(procedures)
		e.Complications = nilIfEmpty(complications)
		e.Complexity = core.ComplexityLevel(complexity)
		e.Outcome = core.Outcome(outcome)
		e.RecordedAt = timeOf(recorded)
		records = append(records, e)
	}
	return records, rows.Err()
}
