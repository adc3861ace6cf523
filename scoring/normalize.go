package scoring

import (
	"math"
	"time"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/graph"
	"github.com/berdachuk/medexpertmatch/signals"
)

// Vector holds normalized signals in [0,1] for one candidate.
type Vector struct {
	Values  [signals.NumKinds]float64
	Present [signals.NumKinds]bool
}

// Set stores a present value, clamped to [0,1].
func (v *Vector) Set(k signals.Kind, value float64) {
	v.Values[k] = Clamp01(value)
	v.Present[k] = true
}

// Get returns the value of k and whether it is present.
func (v Vector) Get(k signals.Kind) (float64, bool) {
	return v.Values[k], v.Present[k]
}

// Clamp01 clamps x to [0,1]. NaN maps to 0.
func Clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

// NormalizeCosine rescales cosine similarity from [-1,1] to [0,1].
func NormalizeCosine(c float64) float64 {
	return Clamp01((c + 1) / 2)
}

// NormalizeGraph applies the inverse-distance transform. No path yields 0.
func NormalizeGraph(p graph.Path) float64 {
	return Clamp01(p.Strength())
}

// NormalizeLexical min-max normalizes a batch of raw keyword scores.
// When every score is equal, including a batch of one, all results are 0.
func NormalizeLexical(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range scores {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	span := hi - lo
	if span == 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		return out
	}
	for i, s := range scores {
		out[i] = Clamp01((s - lo) / span)
	}
	return out
}

// Normalizer maps a batch of raw candidate signals to Vectors.
type Normalizer struct {
	experience ExperienceConfig
	now        func() time.Time
}

// NewNormalizer creates a normalizer. A nil clock uses time.Now.
func NewNormalizer(cfg ExperienceConfig, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{experience: cfg.withDefaults(), now: now}
}

// Normalize returns one Vector per raw candidate, in the same order.
// Only signals marked available are set. Lexical normalization uses the
// candidates that have a lexical signal as the batch.
func (n *Normalizer) Normalize(c *core.Case, raws []signals.Raw) []Vector {
	out := make([]Vector, len(raws))

	var lexIdx []int
	var lexRaw []float64
	for i := range raws {
		if raws[i].Has(signals.KindLexical) {
			lexIdx = append(lexIdx, i)
			lexRaw = append(lexRaw, raws[i].Lexical)
		}
	}
	lexNorm := NormalizeLexical(lexRaw)
	for j, i := range lexIdx {
		out[i].Set(signals.KindLexical, lexNorm[j])
	}

	now := n.now()
	for i := range raws {
		r := &raws[i]
		if r.Has(signals.KindEmbedding) {
			out[i].Set(signals.KindEmbedding, NormalizeCosine(r.Cosine))
		}
		if r.Has(signals.KindGraph) {
			out[i].Set(signals.KindGraph, NormalizeGraph(r.Path))
		}
		if r.Has(signals.KindExperience) {
			out[i].Set(signals.KindExperience, ExperienceScore(r.Experience, c.RequiredSpecialty, now, n.experience))
		}
	}
	return out
}
