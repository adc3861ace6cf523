package signals

import (
	"context"
	"fmt"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/graph"
)

// Kind identifies one evidence signal.
type Kind int

const (
	KindEmbedding Kind = iota
	KindGraph
	KindLexical
	KindExperience

	// NumKinds is the number of signal kinds.
	NumKinds = 4
)

// AllKinds lists every kind in declaration order.
var AllKinds = [NumKinds]Kind{KindEmbedding, KindGraph, KindLexical, KindExperience}

func (k Kind) String() string {
	switch k {
	case KindEmbedding:
		return "embedding"
	case KindGraph:
		return "graph"
	case KindLexical:
		return "lexical"
	case KindExperience:
		return "experience"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// EmbeddingSource reports cosine similarity in [-1,1] between the case and
// each doctor's prior cases. Doctors without vectors are omitted.
type EmbeddingSource interface {
	Similarity(ctx context.Context, c *core.Case, doctorIDs []string) (map[string]float64, error)
}

// GraphSource reports the strongest graph path from the case to each doctor.
// Doctors without a path are omitted.
type GraphSource interface {
	Paths(ctx context.Context, c *core.Case, doctorIDs []string) (map[string]graph.Path, error)
}

// LexicalSource reports raw, non-negative keyword relevance per doctor.
// Doctors without a hit are omitted and read as 0.
type LexicalSource interface {
	Scores(ctx context.Context, c *core.Case, doctorIDs []string) (map[string]float64, error)
}

// ExperienceSource returns past clinical experience per doctor.
// Doctors without records are omitted.
type ExperienceSource interface {
	FindByDoctorIDs(ctx context.Context, doctorIDs []string) (map[string][]core.ExperienceRecord, error)
}

// Raw holds the unnormalized signals collected for one candidate.
type Raw struct {
	DoctorID   string
	Cosine     float64
	Path       graph.Path
	Lexical    float64
	Experience []core.ExperienceRecord
	Available  [NumKinds]bool
}

// Has reports whether signal k was obtained for this candidate.
func (r *Raw) Has(k Kind) bool {
	return k >= 0 && int(k) < NumKinds && r.Available[k]
}

// Missing lists the kinds that could not be obtained.
func (r *Raw) Missing() []Kind {
	var out []Kind
	for _, k := range AllKinds {
		if !r.Available[k] {
			out = append(out, k)
		}
	}
	return out
}

// ProviderStatus records how one source behaved during a collection.
type ProviderStatus struct {
	Kind      Kind
	Available bool
	Err       error // *ProviderUnavailableError when unavailable
}

// Collection is the result of one Collect call.
type Collection struct {
	CaseID     string
	Candidates []Raw // same order as the input candidates
	Providers  [NumKinds]ProviderStatus
}

// Unavailable lists the sources that failed for the whole request.
func (c *Collection) Unavailable() []Kind {
	var out []Kind
	for _, st := range c.Providers {
		if !st.Available {
			out = append(out, st.Kind)
		}
	}
	return out
}
