package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/berdachuk/medexpertmatch/core"
)

// PriorityConfig tunes the secondary queue key.
type PriorityConfig struct {
	WaitWeight       float64       `yaml:"waitWeight"`
	ComplexityWeight float64       `yaml:"complexityWeight"`
	WaitSaturation   time.Duration `yaml:"waitSaturation"` // wait at which the wait term reaches ~63%
	MaxCodes         int           `yaml:"maxCodes"`
	MaxSymptomChars  int           `yaml:"maxSymptomChars"`
}

// DefaultPriorityConfig weighs wait 0.6 and complexity 0.4.
func DefaultPriorityConfig() PriorityConfig {
	return PriorityConfig{
		WaitWeight:       0.6,
		ComplexityWeight: 0.4,
		WaitSaturation:   24 * time.Hour,
		MaxCodes:         5,
		MaxSymptomChars:  500,
	}
}

// Validate rejects negative or all-zero weights.
func (c PriorityConfig) Validate() error {
	if c.WaitWeight < 0 {
		return &FusionConfigError{Field: "waitWeight", Reason: "must not be negative"}
	}
	if c.ComplexityWeight < 0 {
		return &FusionConfigError{Field: "complexityWeight", Reason: "must not be negative"}
	}
	if c.WaitWeight+c.ComplexityWeight == 0 {
		return &FusionConfigError{Reason: "at least one priority weight must be positive"}
	}
	return nil
}

func (c PriorityConfig) withDefaults() PriorityConfig {
	d := DefaultPriorityConfig()
	if c.WaitSaturation <= 0 {
		c.WaitSaturation = d.WaitSaturation
	}
	if c.MaxCodes <= 0 {
		c.MaxCodes = d.MaxCodes
	}
	if c.MaxSymptomChars <= 0 {
		c.MaxSymptomChars = d.MaxSymptomChars
	}
	return c
}

// CasePriority is the queue position of one case.
type CasePriority struct {
	CaseID     string
	Urgency    core.UrgencyLevel
	Score      float64 // secondary key in [0,1]
	Wait       time.Duration
	Complexity float64
	Position   int // dense, 1-based
	submitted  time.Time
}

// ComplexityProxy estimates case complexity from coded diagnoses and symptom text length.
func ComplexityProxy(c *core.Case, cfg PriorityConfig) float64 {
	cfg = cfg.withDefaults()
	codes := math.Min(float64(len(c.ICD10Codes))/float64(cfg.MaxCodes), 1)
	text := math.Min(float64(len(strings.TrimSpace(c.Symptoms)))/float64(cfg.MaxSymptomChars), 1)
	return Clamp01(0.5*codes + 0.5*text)
}

// WaitScore maps a wait onto [0,1) with exponential saturation.
func WaitScore(wait, saturation time.Duration) float64 {
	if wait <= 0 || saturation <= 0 {
		return 0
	}
	return Clamp01(1 - math.Exp(-float64(wait)/float64(saturation)))
}

// ScorePriority computes the secondary key of a case. Cases with no
// submission time have no wait term; the remaining weight is re-normalized.
// An invalid cfg returns its *FusionConfigError.
func ScorePriority(c *core.Case, now time.Time, cfg PriorityConfig) (CasePriority, error) {
	if err := cfg.Validate(); err != nil {
		return CasePriority{}, err
	}
	cfg = cfg.withDefaults()

	var wait time.Duration
	hasWait := !c.SubmittedAt.IsZero()
	if hasWait {
		wait = now.Sub(c.SubmittedAt)
		if wait < 0 {
			wait = 0
		}
	}
	complexity := ComplexityProxy(c, cfg)
	score := WeightedMean(
		Term{Value: WaitScore(wait, cfg.WaitSaturation), Weight: cfg.WaitWeight, Present: hasWait},
		Term{Value: complexity, Weight: cfg.ComplexityWeight, Present: true},
	)
	return CasePriority{
		CaseID:     c.ID,
		Urgency:    c.Urgency,
		Score:      score,
		Wait:       wait,
		Complexity: complexity,
		submitted:  c.SubmittedAt,
	}, nil
}

// OrderByPriority sorts cases for the consult queue: urgency first, then
// priority score, then earlier submission, then case id.
func OrderByPriority(cases []*core.Case, now time.Time, cfg PriorityConfig) ([]CasePriority, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	out := make([]CasePriority, 0, len(cases))
	for _, c := range cases {
		if c == nil {
			continue
		}
		p, err := ScorePriority(c, now, cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ua, ub := a.Urgency.Ordinal(), b.Urgency.Ordinal(); ua != ub {
			return ua > ub
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.submitted.Equal(b.submitted) {
			if a.submitted.IsZero() || b.submitted.IsZero() {
				return !a.submitted.IsZero()
			}
			return a.submitted.Before(b.submitted)
		}
		return a.CaseID < b.CaseID
	})
	for i := range out {
		out[i].Position = i + 1
	}
	return out, nil
}
