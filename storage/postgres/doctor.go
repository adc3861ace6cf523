package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

const doctorColumns = `id, name, email, specialties, certifications, facility_ids, telehealth_enabled, availability`

const upsertDoctorSQL = `
	INSERT INTO doctors (` + doctorColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		email = EXCLUDED.email,
		specialties = EXCLUDED.specialties,
		certifications = EXCLUDED.certifications,
		facility_ids = EXCLUDED.facility_ids,
		telehealth_enabled = EXCLUDED.telehealth_enabled,
		availability = EXCLUDED.availability`

// An empty specialty matches every row; LIMIT NULL means no limit.
const findDoctorsBySpecialtySQL = `
	SELECT ` + doctorColumns + `
	FROM doctors
	WHERE $1 = '' OR EXISTS (
		SELECT 1 FROM unnest(specialties) AS s WHERE lower(trim(s)) = $1
	)
	ORDER BY id
	LIMIT NULLIF($2, 0)`

// DoctorRepository implements storage.DoctorRepository on PostgreSQL.
type DoctorRepository struct {
	db *sql.DB
}

var _ storage.DoctorRepository = (*DoctorRepository)(nil)

func NewDoctorRepository(db *sql.DB) *DoctorRepository {
	return &DoctorRepository{db: db}
}

func (r *DoctorRepository) Close() error { return nil }

func (r *DoctorRepository) PutDoctors(ctx context.Context, doctors ...*core.Doctor) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, d := range doctors {
		if d.ID == "" {
			return core.ErrEmptyID
		}
		_, err := tx.ExecContext(ctx, upsertDoctorSQL,
			d.ID, d.Name, d.Email,
			pq.Array(orEmpty(d.Specialties)), pq.Array(orEmpty(d.Certifications)), pq.Array(orEmpty(d.FacilityIDs)),
			d.TelehealthEnabled, d.Availability)
		if err != nil {
			return fmt.Errorf("failed to save doctor %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

func (r *DoctorRepository) GetDoctor(ctx context.Context, id string) (*core.Doctor, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id)
	d, err := scanDoctor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find doctor: %w", err)
	}
	return d, nil
}

func (r *DoctorRepository) ListDoctors(ctx context.Context) ([]*core.Doctor, error) {
	return r.FindBySpecialty(ctx, "", 0)
}

func (r *DoctorRepository) FindBySpecialty(ctx context.Context, specialty string, limit int) ([]*core.Doctor, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", storage.ErrInvalidQuery, limit)
	}
	rows, err := r.db.QueryContext(ctx, findDoctorsBySpecialtySQL, strings.ToLower(strings.TrimSpace(specialty)), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query doctors: %w", err)
	}
	defer rows.Close()

	var doctors []*core.Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan doctor: %w", err)
		}
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}

func scanDoctor(row rowScanner) (*core.Doctor, error) {
	d := &core.Doctor{}
	var specialties, certifications, facilities pq.StringArray
	err := row.Scan(&d.ID, &d.Name, &d.Email, &specialties, &certifications, &facilities,
		&d.TelehealthEnabled, &d.Availability)
	if err != nil {
		return nil, err
	}
	d.Specialties = nilIfEmpty(specialties)
	d.Certifications = nilIfEmpty(certifications)
	d.FacilityIDs = nilIfEmpty(facilities)
	return d, nil
}
