package scoring

import (
	"math"
	"time"

	"github.com/berdachuk/medexpertmatch/core"
)

// NeutralExperience is the score of a doctor with no relevant records.
const NeutralExperience = 0.5

// ExperienceConfig tunes outcome-quality aggregation.
type ExperienceConfig struct {
	// HalfLife is the age at which a record counts half. Zero disables decay.
	HalfLife time.Duration `yaml:"halfLife"`
	// RatingShare is the weight of the rating in a rated record's quality;
	// the outcome gets the rest.
	RatingShare float64 `yaml:"ratingShare"`
}

// DefaultExperienceConfig returns a one-year half-life and a 0.6 rating share.
func DefaultExperienceConfig() ExperienceConfig {
	return ExperienceConfig{
		HalfLife:    365 * 24 * time.Hour,
		RatingShare: 0.6,
	}
}

func (c ExperienceConfig) withDefaults() ExperienceConfig {
	if c.RatingShare <= 0 || c.RatingShare > 1 {
		c.RatingShare = DefaultExperienceConfig().RatingShare
	}
	if c.HalfLife < 0 {
		c.HalfLife = 0
	}
	return c
}

// OutcomeValue maps an outcome category onto [0,1].
func OutcomeValue(o core.Outcome) float64 {
	switch o {
	case core.OutcomeSuccess:
		return 1.0
	case core.OutcomeImproved:
		return 0.8
	case core.OutcomeStable:
		return 0.5
	case core.OutcomeComplicated:
		return 0.2
	}
	return 0.4
}

// RecordQuality is the quality of a single record in [0,1].
// Unrated records use the outcome alone.
func RecordQuality(r *core.ExperienceRecord, ratingShare float64) float64 {
	outcome := OutcomeValue(r.Outcome)
	if r.Rating < 1 || r.Rating > 5 {
		return outcome
	}
	rating := float64(r.Rating-1) / 4
	return Clamp01(ratingShare*rating + (1-ratingShare)*outcome)
}

// RecordWeight combines recency and complications. Records with an unknown
// date, or dated in the future, get full recency weight.
func RecordWeight(r *core.ExperienceRecord, now time.Time, halfLife time.Duration) float64 {
	recency := 1.0
	if halfLife > 0 && !r.RecordedAt.IsZero() {
		if age := now.Sub(r.RecordedAt); age > 0 {
			recency = math.Exp2(-float64(age) / float64(halfLife))
		}
	}
	return recency / float64(1+len(r.Complications))
}

// ExperienceScore aggregates a doctor's records for a specialty.
// Records without a specialty count for every specialty. No relevant records
// (or an empty specialty filter with no records) yields NeutralExperience.
func ExperienceScore(records []core.ExperienceRecord, specialty string, now time.Time, cfg ExperienceConfig) float64 {
	cfg = cfg.withDefaults()

	var sum, weights float64
	for i := range records {
		r := &records[i]
		if specialty != "" && r.Specialty != "" && !core.SameSpecialty(r.Specialty, specialty) {
			continue
		}
		w := RecordWeight(r, now, cfg.HalfLife)
		sum += w * RecordQuality(r, cfg.RatingShare)
		weights += w
	}
	if weights == 0 {
		return NeutralExperience
	}
	return Clamp01(sum / weights)
}
