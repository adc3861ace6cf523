package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

const caseColumns = `id, patient_age, chief_complaint, symptoms, current_diagnosis, icd10_codes, snomed_codes,
	urgency, required_specialty, case_type, additional_notes, abstract, required_capabilities, lat, lon, submitted_at`

const upsertCaseSQL = `
	INSERT INTO medical_cases (norm_id, ` + caseColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (norm_id) DO UPDATE SET
		id = EXCLUDED.id,
		patient_age = EXCLUDED.patient_age,
		chief_complaint = EXCLUDED.chief_complaint,
		symptoms = EXCLUDED.symptoms,
		current_diagnosis = EXCLUDED.current_diagnosis,
		icd10_codes = EXCLUDED.icd10_codes,
		snomed_codes = EXCLUDED.snomed_codes,
		urgency = EXCLUDED.urgency,
		required_specialty = EXCLUDED.required_specialty,
		case_type = EXCLUDED.case_type,
		additional_notes = EXCLUDED.additional_notes,
		abstract = EXCLUDED.abstract,
		required_capabilities = EXCLUDED.required_capabilities,
		lat = EXCLUDED.lat,
		lon = EXCLUDED.lon,
		submitted_at = EXCLUDED.submitted_at`

// CaseRepository implements storage.CaseRepository on PostgreSQL. Rows are
// keyed by the normalized case ID.
type CaseRepository struct {
	db *sql.DB
}

var _ storage.CaseRepository = (*CaseRepository)(nil)

func NewCaseRepository(db *sql.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

func (r *CaseRepository) Close() error { return nil }

func (r *CaseRepository) PutCases(ctx context.Context, cases ...*core.Case) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range cases {
		norm := core.NormalizeCaseID(c.ID)
		if norm == "" {
			return core.ErrEmptyID
		}
		lat, lon := geoArgs(c.Location)
		_, err := tx.ExecContext(ctx, upsertCaseSQL,
			norm, c.ID, c.PatientAge, c.ChiefComplaint, c.Symptoms, c.CurrentDiagnosis,
			pq.Array(orEmpty(c.ICD10Codes)), pq.Array(orEmpty(c.SNOMEDCodes)),
			int(c.Urgency), c.RequiredSpecialty, string(c.CaseType), c.AdditionalNotes, c.Abstract,
			pq.Array(orEmpty(c.RequiredCapabilities)), lat, lon, nullTime(c.SubmittedAt))
		if err != nil {
			return fmt.Errorf("failed to save case %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (r *CaseRepository) GetCase(ctx context.Context, id string) (*core.Case, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM medical_cases WHERE norm_id = $1`, core.NormalizeCaseID(id))
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find case: %w", err)
	}
	return c, nil
}

// GetCases keeps argument order; missing IDs are skipped.
func (r *CaseRepository) GetCases(ctx context.Context, ids ...string) ([]*core.Case, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	norms := make([]string, len(ids))
	for i, id := range ids {
		norms[i] = core.NormalizeCaseID(id)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+caseColumns+` FROM medical_cases WHERE norm_id = ANY($1)`, pq.Array(norms))
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	found, err := collectCases(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*core.Case, len(found))
	for _, c := range found {
		byID[core.NormalizeCaseID(c.ID)] = c
	}
	out := make([]*core.Case, 0, len(found))
	for _, norm := range norms {
		if c, ok := byID[norm]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *CaseRepository) ListCases(ctx context.Context) ([]*core.Case, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+caseColumns+` FROM medical_cases ORDER BY norm_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	return collectCases(rows)
}

func collectCases(rows *sql.Rows) ([]*core.Case, error) {
	defer rows.Close()
	var cases []*core.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func scanCase(row rowScanner) (*core.Case, error) {
	c := &core.Case{}
	var icd, snomed, caps pq.StringArray
	var urgency int
	var caseType string
	var lat, lon sql.NullFloat64
	var submitted sql.NullTime
	err := row.Scan(&c.ID, &c.PatientAge, &c.ChiefComplaint, &c.Symptoms, &c.CurrentDiagnosis,
		&icd, &snomed, &urgency, &c.RequiredSpecialty, &caseType, &c.AdditionalNotes, &c.Abstract,
		&caps, &lat, &lon, &submitted)
	if err != nil {
		return nil, err
	}
	c.ICD10Codes = nilIfEmpty(icd)
	c.SNOMEDCodes = nilIfEmpty(snomed)
	c.RequiredCapabilities = nilIfEmpty(caps)
	c.Urgency = core.UrgencyLevel(urgency)
	c.CaseType = core.CaseType(caseType)
	c.Location = geoOf(lat, lon)
	c.SubmittedAt = timeOf(submitted)
	return c, nil
}

func geoArgs(p *core.GeoPoint) (lat, lon sql.NullFloat64) {
	if p == nil {
		return
	}
	return sql.NullFloat64{Float64: p.Lat, Valid: true}, sql.NullFloat64{Float64: p.Lon, Valid: true}
}

func geoOf(lat, lon sql.NullFloat64) *core.GeoPoint {
	if !lat.Valid || !lon.Valid {
		return nil
	}
	return &core.GeoPoint{Lat: lat.Float64, Lon: lon.Float64}
}

