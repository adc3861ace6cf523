package graph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berdachuk/medexpertmatch/core"
)

type fakeProvider struct {
	mu         sync.Mutex
	exists     bool
	existsErr  error
	rows       map[string][]map[string]any // keyed by a fragment of the statement
	statements []string
	params     []map[string]any
	queryErr   error
}

func (f *fakeProvider) GraphExists(context.Context) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeProvider) Query(_ context.Context, statement string, params map[string]any) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statements = append(f.statements, statement)
	f.params = append(f.params, params)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	for fragment, rows := range f.rows {
		if strings.Contains(statement, fragment) {
			return rows, nil
		}
	}
	return nil, nil
}

func TestCypherSource_BestPatternWins(t *testing.T) {
	p := &fakeProvider{
		exists: true,
		rows: map[string][]map[string]any{
			"[:TREATED]->(c:MedicalCase": {{"doctorId": "A"}},
			"[:SPECIALIZES_IN]":          {{"doctorId": "A"}, {"doctorId": "B"}},
		},
	}
	s, err := NewCypherSource(p)
	require.NoError(t, err)

	c := &core.Case{ID: "Case-9", RequiredSpecialty: "Cardiology", ICD10Codes: []string{"i21.9"}}
	paths, err := s.Paths(context.Background(), c, []string{"A", "B", "C"})
	require.NoError(t, err)

	assert.Equal(t, 1, paths["A"].Hops)
	assert.Equal(t, "direct", paths["A"].Via)
	assert.Equal(t, 2, paths["B"].Hops)
	assert.NotContains(t, paths, "C")

	require.NotEmpty(t, p.params)
	assert.Equal(t, "case-9", p.params[0]["caseId"])
	assert.Equal(t, []string{"I21.9"}, p.params[0]["codes"])
	assert.Equal(t, "cardiology", p.params[0]["specialty"])
}

func TestCypherSource_SkipsInapplicablePatterns(t *testing.T) {
	p := &fakeProvider{exists: true}
	s, err := NewCypherSource(p)
	require.NoError(t, err)

	_, err = s.Paths(context.Background(), &core.Case{ID: "c1"}, []string{"A"})
	require.NoError(t, err)
	assert.Len(t, p.statements, 2, "only the case-level patterns apply without codes or specialty")
}

func TestCypherSource_MissingGraph(t *testing.T) {
	s, err := NewCypherSource(&fakeProvider{exists: false})
	require.NoError(t, err)

	_, err = s.Paths(context.Background(), &core.Case{ID: "c1"}, []string{"A"})
	assert.ErrorIs(t, err, ErrGraphNotFound)
}

func TestCypherSource_QueryError(t *testing.T) {
	boom := errors.New("connection refused")
	s, err := NewCypherSource(&fakeProvider{exists: true, queryErr: boom})
	require.NoError(t, err)

	_, err = s.Paths(context.Background(), &core.Case{ID: "c1"}, []string{"A"})
	assert.ErrorIs(t, err, boom)
}

func TestCypherSource_NoCandidates(t *testing.T) {
	p := &fakeProvider{exists: true}
	s, err := NewCypherSource(p)
	require.NoError(t, err)

	paths, err := s.Paths(context.Background(), &core.Case{ID: "c1"}, nil)
	require.NoError(t, err)
	assert.Empty(t, paths)
	assert.Empty(t, p.statements)
}

func TestNewCypherSource_RequiresProvider(t *testing.T) {
	_, err := NewCypherSource(nil)
	assert.ErrorIs(t, err, ErrProviderRequired)
}
