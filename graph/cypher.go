package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/berdachuk/medexpertmatch/core"
)

// pattern is one relationship shape linking a case to a doctor.
type pattern struct {
	name      string
	hops      int
	weight    float64
	statement string
	applies   func(c *core.Case) bool
}

func hasCodes(c *core.Case) bool     { return len(c.ICD10Codes) > 0 }
func hasSpecialty(c *core.Case) bool { return c.RequiredSpecialty != "" }
func always(*core.Case) bool         { return true }

func defaultPatterns(w map[string]float64) []pattern {
	return []pattern{
		{
			name:   "direct",
			hops:   1,
			weight: w[RelTreated],
			statement: `MATCH (d:Doctor)-[:TREATED]->(c:MedicalCase {id: $caseId})
WHERE d.id IN $doctorIds
RETURN DISTINCT d.id AS doctorId`,
			applies: always,
		},
		{
			name:   "consulted",
			hops:   1,
			weight: w[RelConsultedOn],
			statement: `MATCH (d:Doctor)-[:CONSULTED_ON]->(c:MedicalCase {id: $caseId})
WHERE d.id IN $doctorIds
RETURN DISTINCT d.id AS doctorId`,
			applies: always,
		},
		{
			name:   "condition",
			hops:   2,
			weight: w[RelHasCondition] * w[RelTreatsCondition],
			statement: `MATCH (d:Doctor)-[:TREATS_CONDITION]->(i:ICD10Code)
WHERE i.id IN $codes AND d.id IN $doctorIds
RETURN DISTINCT d.id AS doctorId`,
			applies: hasCodes,
		},
		{
			name:   "specialty",
			hops:   2,
			weight: w[RelRequiresSpecialty] * w[RelSpecializesIn],
			statement: `MATCH (d:Doctor)-[:SPECIALIZES_IN]->(s:MedicalSpecialty {id: $specialty})
WHERE d.id IN $doctorIds
RETURN DISTINCT d.id AS doctorId`,
			applies: hasSpecialty,
		},
		{
			name:   "similar-case",
			hops:   3,
			weight: w[RelHasCondition] * w[RelHasCondition] * w[RelTreated],
			statement: `MATCH (d:Doctor)-[:TREATED]->(o:MedicalCase)-[:HAS_CONDITION]->(i:ICD10Code)
WHERE i.id IN $codes AND o.id <> $caseId AND d.id IN $doctorIds
RETURN DISTINCT d.id AS doctorId`,
			applies: hasCodes,
		},
	}
}

// CypherSource resolves case-to-doctor paths by running relationship
// patterns through a Provider.
type CypherSource struct {
	provider Provider
	patterns []pattern
	logger   *slog.Logger
	exists   atomic.Bool
}

// CypherOption configures a CypherSource.
type CypherOption func(*CypherSource) error

// WithCypherLogger sets a custom logger.
func WithCypherLogger(logger *slog.Logger) CypherOption {
	return func(s *CypherSource) error {
		s.logger = logger
		return nil
	}
}

// NewCypherSource creates a source over provider.
func NewCypherSource(provider Provider, opts ...CypherOption) (*CypherSource, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}
	s := &CypherSource{
		provider: provider,
		patterns: defaultPatterns(DefaultRelationWeights),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "graph-cypher")
	return s, nil
}

// Paths runs every applicable pattern and keeps the strongest path per doctor.
func (s *CypherSource) Paths(ctx context.Context, c *core.Case, doctorIDs []string) (map[string]Path, error) {
	if len(doctorIDs) == 0 {
		return map[string]Path{}, nil
	}
	if !s.exists.Load() {
		ok, err := s.provider.GraphExists(ctx)
		if err != nil {
			return nil, fmt.Errorf("check graph: %w", err)
		}
		if !ok {
			return nil, ErrGraphNotFound
		}
		s.exists.Store(true)
	}

	codes := make([]string, 0, len(c.ICD10Codes))
	for _, code := range c.ICD10Codes {
		codes = append(codes, ConditionKey(code))
	}
	params := map[string]any{
		"caseId":    core.NormalizeCaseID(c.ID),
		"codes":     codes,
		"specialty": SpecialtyKey(c.RequiredSpecialty),
		"doctorIds": doctorIDs,
	}

	best := make(map[string]Path, len(doctorIDs))
	for _, p := range s.patterns {
		if !p.applies(c) {
			continue
		}
		rows, err := s.provider.Query(ctx, p.statement, params)
		if err != nil {
			return nil, fmt.Errorf("graph pattern %s: %w", p.name, err)
		}
		for _, row := range rows {
			id, ok := row["doctorId"].(string)
			if !ok || id == "" {
				continue
			}
			best[id] = Better(best[id], Path{Hops: p.hops, Weight: p.weight, Via: p.name})
		}
	}

	s.logger.Debug("graph paths resolved", "case", c.ID, "requested", len(doctorIDs), "found", len(best))
	return best, nil
}
