package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/berdachuk/medexpertmatch/core"
)

// The case text is reduced to its lexemes and OR-ed into one tsquery, so a
// doctor scores on any overlapping term rather than on all of them.
const lexicalScoresSQL = `
	WITH q AS (
		SELECT to_tsquery('english', array_to_string(tsvector_to_array(to_tsvector('english', $1)), ' | ')) AS query
	)
	SELECT e.doctor_id, SUM(ts_rank(c.search_tsv, q.query))
	FROM q, experience_records e
	JOIN medical_cases c ON c.norm_id = lower(trim(e.case_id))
	WHERE e.doctor_id = ANY($2)
		AND c.norm_id <> $3
		AND c.search_tsv @@ q.query
	GROUP BY e.doctor_id`

// LexicalIndex scores doctors by full-text rank of the cases they treated.
// Raw scores are unbounded; normalization happens downstream.
type LexicalIndex struct {
	db *sql.DB
}

func NewLexicalIndex(db *sql.DB) *LexicalIndex {
	return &LexicalIndex{db: db}
}

// Scores returns a raw keyword score per doctor. Doctors without matching
// history are omitted.
func (l *LexicalIndex) Scores(ctx context.Context, c *core.Case, doctorIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(doctorIDs))
	text := strings.TrimSpace(c.SearchText())
	if text == "" || len(doctorIDs) == 0 {
		return out, nil
	}

	rows, err := l.db.QueryContext(ctx, lexicalScoresSQL, text, pq.Array(doctorIDs), core.NormalizeCaseID(c.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to query lexical scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var score sql.NullFloat64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("failed to scan lexical score: %w", err)
		}
		if score.Valid {
			out[id] = score.Float64
		}
	}
	return out, rows.Err()
}
