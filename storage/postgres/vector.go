package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

// pgvector's <=> is cosine distance, so 1 - distance is cosine similarity.
const doctorSimilaritySQL = `
	SELECT e.doctor_id, AVG(1 - (v.embedding <=> $1::vector))
	FROM experience_records e
	JOIN case_embeddings v ON v.case_id = lower(trim(e.case_id))
	WHERE e.doctor_id = ANY($2)
	GROUP BY e.doctor_id`

// VectorIndex implements storage.VectorIndex with pgvector.
type VectorIndex struct {
	db *sql.DB
}

var _ storage.VectorIndex = (*VectorIndex)(nil)

func NewVectorIndex(db *sql.DB) *VectorIndex {
	return &VectorIndex{db: db}
}

func (v *VectorIndex) Close() error { return nil }

func (v *VectorIndex) PutCaseVector(ctx context.Context, caseID string, vec []float32) error {
	norm := core.NormalizeCaseID(caseID)
	if norm == "" {
		return core.ErrEmptyID
	}
	_, err := v.db.ExecContext(ctx, `
		INSERT INTO case_embeddings (case_id, embedding) VALUES ($1, $2::vector)
		ON CONFLICT (case_id) DO UPDATE SET embedding = EXCLUDED.embedding`,
		norm, formatVector(vec))
	if err != nil {
		return fmt.Errorf("failed to save case vector: %w", err)
	}
	return nil
}

func (v *VectorIndex) CaseVector(ctx context.Context, caseID string) ([]float32, bool, error) {
	var text string
	err := v.db.QueryRowContext(ctx,
		`SELECT embedding::text FROM case_embeddings WHERE case_id = $1`, core.NormalizeCaseID(caseID)).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to find case vector: %w", err)
	}
	vec, err := parseVector(text)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (v *VectorIndex) DoctorSimilarity(ctx context.Context, vec []float32, doctorIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(doctorIDs))
	if len(doctorIDs) == 0 || len(vec) == 0 {
		return out, nil
	}
	rows, err := v.db.QueryContext(ctx, doctorSimilaritySQL, formatVector(vec), pq.Array(doctorIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query doctor similarity: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var sim sql.NullFloat64
		if err := rows.Scan(&id, &sim); err != nil {
			return nil, fmt.Errorf("failed to scan similarity: %w", err)
		}
		if sim.Valid {
			out[id] = max(-1, min(1, sim.Float64))
		}
	}
	return out, rows.Err()
}

// formatVector renders the pgvector text form, e.g. [0.1,0.2].
func formatVector(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func parseVector(text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || text[0] != '[' || text[len(text)-1] != ']' {
		return nil, fmt.Errorf("%w: malformed vector %q", storage.ErrSerializationFailed, text)
	}
	body := text[1 : len(text)-1]
	if strings.TrimSpace(body) == "" {
		return []float32{}, nil
	}
	parts := strings.Split(body, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrSerializationFailed, err)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}
