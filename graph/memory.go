package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/berdachuk/medexpertmatch/core"
)

// DefaultMaxHops bounds how far Memory searches from a case.
const DefaultMaxHops = 4

type nodeKey struct {
	label string
	id    string
}

type edge struct {
	to     nodeKey
	rel    string
	weight float64
}

type reach struct {
	weight float64
	via    string
}

// Memory is an in-process property graph. Edges are traversed in both
// directions. It implements Writer and the collector's graph source.
type Memory struct {
	mu      sync.RWMutex
	nodes   map[nodeKey]map[string]any
	adj     map[nodeKey][]edge
	weights map[string]float64
	maxHops int
	logger  *slog.Logger
}

// MemoryOption configures a Memory graph.
type MemoryOption func(*Memory) error

// WithMaxHops bounds the search depth.
func WithMaxHops(n int) MemoryOption {
	return func(m *Memory) error {
		if n < 1 {
			return fmt.Errorf("max hops must be at least 1, got %d", n)
		}
		m.maxHops = n
		return nil
	}
}

// WithRelationWeights overrides relationship weights. Values must be in (0,1].
func WithRelationWeights(weights map[string]float64) MemoryOption {
	return func(m *Memory) error {
		for rel, w := range weights {
			if w <= 0 || w > 1 {
				return fmt.Errorf("relation weight for %s must be in (0,1], got %v", rel, w)
			}
			m.weights[rel] = w
		}
		return nil
	}
}

// WithMemoryLogger sets a custom logger.
func WithMemoryLogger(logger *slog.Logger) MemoryOption {
	return func(m *Memory) error {
		m.logger = logger
		return nil
	}
}

// NewMemory creates an empty graph.
func NewMemory(opts ...MemoryOption) (*Memory, error) {
	m := &Memory{
		nodes:   make(map[nodeKey]map[string]any),
		adj:     make(map[nodeKey][]edge),
		weights: make(map[string]float64, len(DefaultRelationWeights)),
		maxHops: DefaultMaxHops,
	}
	for rel, w := range DefaultRelationWeights {
		m.weights[rel] = w
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "graph-memory")
	return m, nil
}

var _ Writer = (*Memory)(nil)

// UpsertNode adds a node or merges props into an existing one.
func (m *Memory) UpsertNode(_ context.Context, label, id string, props map[string]any) error {
	key := nodeKey{label, id}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.nodes[key]
	if !ok {
		existing = make(map[string]any, len(props))
		m.nodes[key] = existing
	}
	for k, v := range props {
		existing[k] = v
	}
	return nil
}

// UpsertEdge connects two existing nodes. Repeated edges are ignored.
func (m *Memory) UpsertEdge(_ context.Context, fromLabel, fromID, rel, toLabel, toID string) error {
	from, to := nodeKey{fromLabel, fromID}, nodeKey{toLabel, toID}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[from]; !ok {
		return fmt.Errorf("%w: %s %s", ErrUnknownNode, fromLabel, fromID)
	}
	if _, ok := m.nodes[to]; !ok {
		return fmt.Errorf("%w: %s %s", ErrUnknownNode, toLabel, toID)
	}
	for _, e := range m.adj[from] {
		if e.to == to && e.rel == rel {
			return nil
		}
	}
	w := m.weight(rel)
	m.adj[from] = append(m.adj[from], edge{to: to, rel: rel, weight: w})
	m.adj[to] = append(m.adj[to], edge{to: from, rel: rel, weight: w})
	return nil
}

func (m *Memory) weight(rel string) float64 {
	if w, ok := m.weights[rel]; ok {
		return w
	}
	return 1
}

// NodeCount returns the number of nodes.
func (m *Memory) NodeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// Paths returns the strongest path from the case to each requested doctor.
// The case's conditions and required specialty seed the search even when the
// case itself is not in the graph. Doctors without a path are omitted.
func (m *Memory) Paths(ctx context.Context, c *core.Case, doctorIDs []string) (map[string]Path, error) {
	wanted := make(map[string]bool, len(doctorIDs))
	for _, id := range doctorIDs {
		wanted[id] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	current := make(map[nodeKey]reach)
	caseKey := nodeKey{LabelCase, core.NormalizeCaseID(c.ID)}
	if _, ok := m.nodes[caseKey]; ok {
		current[caseKey] = reach{weight: 1}
	}

	seeds := make(map[nodeKey]reach)
	for _, code := range c.ICD10Codes {
		key := nodeKey{LabelICD10, ConditionKey(code)}
		if _, ok := m.nodes[key]; ok {
			seeds[key] = reach{weight: m.weight(RelHasCondition), via: RelHasCondition}
		}
	}
	if c.RequiredSpecialty != "" {
		key := nodeKey{LabelSpecialty, SpecialtyKey(c.RequiredSpecialty)}
		if _, ok := m.nodes[key]; ok {
			seeds[key] = reach{weight: m.weight(RelRequiresSpecialty), via: RelRequiresSpecialty}
		}
	}

	best := make(map[string]Path)
	for hops := 1; hops <= m.maxHops; hops++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next := make(map[nodeKey]reach)
		offer := func(key nodeKey, r reach) {
			prev, ok := next[key]
			if !ok || r.weight > prev.weight || (r.weight == prev.weight && r.via < prev.via) {
				next[key] = r
			}
		}
		for key, r := range current {
			for _, e := range m.adj[key] {
				if e.to == caseKey {
					continue
				}
				offer(e.to, reach{weight: r.weight * e.weight, via: e.rel})
			}
		}
		if hops == 1 {
			for key, r := range seeds {
				offer(key, r)
			}
		}

		for key, r := range next {
			if key.label != LabelDoctor || !wanted[key.id] {
				continue
			}
			best[key.id] = Better(best[key.id], Path{Hops: hops, Weight: r.weight, Via: r.via})
		}
		if len(next) == 0 {
			break
		}
		current = next
	}

	m.logger.Debug("graph paths resolved", "case", c.ID, "requested", len(doctorIDs), "found", len(best))
	return best, nil
}

// SpecialtyKey is the node id used for a specialty name.
func SpecialtyKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ConditionKey is the node id used for an ICD-10 code.
func ConditionKey(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
