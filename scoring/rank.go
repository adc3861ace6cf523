package scoring

import (
	"sort"

	"github.com/berdachuk/medexpertmatch/signals"
)

// DefaultMaxResults is the match list size when none is configured.
const DefaultMaxResults = 10

// Candidate is a fused doctor awaiting ranking.
type Candidate struct {
	DoctorID string
	Fused    Fused
}

// ExperienceStrength is the first tie-breaker: the experience signal, or 0
// when it is unavailable.
func (c Candidate) ExperienceStrength() float64 {
	v, ok := c.Fused.Vector.Get(signals.KindExperience)
	if !ok {
		return 0
	}
	return v
}

// Ranked is a candidate with its dense 1-based rank.
type Ranked struct {
	Candidate
	Rank int
}

// Dedupe keeps one candidate per doctor, the one with the higher score.
// The first occurrence wins exact ties.
func Dedupe(cands []Candidate) []Candidate {
	index := make(map[string]int, len(cands))
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if i, ok := index[c.DoctorID]; ok {
			if c.Fused.Score > out[i].Fused.Score {
				out[i] = c
			}
			continue
		}
		index[c.DoctorID] = len(out)
		out = append(out, c)
	}
	return out
}

// Less orders candidates: higher score, then stronger experience, then
// lexicographically smaller doctor id.
func Less(a, b Candidate) bool {
	if a.Fused.Score != b.Fused.Score {
		return a.Fused.Score > b.Fused.Score
	}
	ea, eb := a.ExperienceStrength(), b.ExperienceStrength()
	if ea != eb {
		return ea > eb
	}
	return a.DoctorID < b.DoctorID
}

// Rank dedupes, sorts, truncates to limit (DefaultMaxResults when limit <= 0)
// and assigns ranks 1..n. The input slice is not modified.
func Rank(cands []Candidate, limit int) []Ranked {
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	unique := Dedupe(cands)
	sort.SliceStable(unique, func(i, j int) bool { return Less(unique[i], unique[j]) })
	if len(unique) > limit {
		unique = unique[:limit]
	}

	out := make([]Ranked, len(unique))
	for i, c := range unique {
		out[i] = Ranked{Candidate: c, Rank: i + 1}
	}
	return out
}
