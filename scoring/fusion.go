package scoring

import (
	"math"

	"github.com/berdachuk/medexpertmatch/signals"
)

// DefaultNotableThreshold is the minimum normalized value for a signal to be
// named in a rationale.
const DefaultNotableThreshold = 0.6

// Weights are the fusion weights of the four signals.
type Weights struct {
	Embedding  float64 `yaml:"embeddingWeight"`
	Graph      float64 `yaml:"graphWeight"`
	Lexical    float64 `yaml:"lexicalWeight"`
	Experience float64 `yaml:"experienceWeight"`
}

// DefaultWeights sum to 1.
func DefaultWeights() Weights {
	return Weights{Embedding: 0.35, Graph: 0.25, Lexical: 0.15, Experience: 0.25}
}

// Of returns the weight of k.
func (w Weights) Of(k signals.Kind) float64 {
	switch k {
	case signals.KindEmbedding:
		return w.Embedding
	case signals.KindGraph:
		return w.Graph
	case signals.KindLexical:
		return w.Lexical
	case signals.KindExperience:
		return w.Experience
	}
	return 0
}

// Validate rejects negative, non-finite and all-zero weights.
func (w Weights) Validate() error {
	named := []struct {
		name string
		v    float64
	}{
		{"embeddingWeight", w.Embedding},
		{"graphWeight", w.Graph},
		{"lexicalWeight", w.Lexical},
		{"experienceWeight", w.Experience},
	}
	var total float64
	for _, n := range named {
		if math.IsNaN(n.v) || math.IsInf(n.v, 0) {
			return &FusionConfigError{Field: n.name, Reason: "must be finite"}
		}
		if n.v < 0 {
			return &FusionConfigError{Field: n.name, Reason: "must not be negative"}
		}
		total += n.v
	}
	if total == 0 {
		return &FusionConfigError{Reason: "at least one weight must be positive"}
	}
	return nil
}

// Term is one weighted component of a fused score.
type Term struct {
	Value   float64
	Weight  float64
	Present bool
}

// WeightedMean fuses terms by dividing by the weights of present terms only,
// so a missing term never drags the result down. The result is clamped to
// [0,1]; with no present weight it is 0.
func WeightedMean(terms ...Term) float64 {
	var sum, weights float64
	for _, t := range terms {
		if !t.Present || t.Weight <= 0 {
			continue
		}
		sum += t.Weight * Clamp01(t.Value)
		weights += t.Weight
	}
	if weights == 0 {
		return 0
	}
	return Clamp01(sum / weights)
}

// Fused is the outcome of fusing one candidate's signals.
type Fused struct {
	Score        float64
	Vector       Vector
	Contributing []signals.Kind
	Rationale    string
}

// Fuser combines normalized signals using fixed weights.
type Fuser struct {
	weights Weights
	notable float64
}

// FuserOption configures a Fuser.
type FuserOption func(*Fuser) error

// WithWeights sets the fusion weights.
func WithWeights(w Weights) FuserOption {
	return func(f *Fuser) error {
		if err := w.Validate(); err != nil {
			return err
		}
		f.weights = w
		return nil
	}
}

// WithNotableThreshold sets the rationale threshold.
func WithNotableThreshold(t float64) FuserOption {
	return func(f *Fuser) error {
		if math.IsNaN(t) || t < 0 || t > 1 {
			return ErrInvalidThreshold
		}
		f.notable = t
		return nil
	}
}

// NewFuser creates a fuser with DefaultWeights unless configured.
func NewFuser(opts ...FuserOption) (*Fuser, error) {
	f := &Fuser{
		weights: DefaultWeights(),
		notable: DefaultNotableThreshold,
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Weights returns the configured weights.
func (f *Fuser) Weights() Weights { return f.weights }

// Fuse scores one candidate.
func (f *Fuser) Fuse(v Vector) Fused {
	terms := make([]Term, 0, signals.NumKinds)
	var contributing []signals.Kind
	for _, k := range signals.AllKinds {
		value, present := v.Get(k)
		w := f.weights.Of(k)
		terms = append(terms, Term{Value: value, Weight: w, Present: present})
		if present && w > 0 {
			contributing = append(contributing, k)
		}
	}
	return Fused{
		Score:        WeightedMean(terms...),
		Vector:       v,
		Contributing: contributing,
		Rationale:    Rationale(v, f.notable),
	}
}
