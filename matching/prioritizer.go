package matching

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/scoring"
	"github.com/berdachuk/medexpertmatch/storage"
)

// Prioritizer orders the case queue by urgency, wait and complexity.
type Prioritizer struct {
	cases  storage.CaseRepository
	cfg    scoring.PriorityConfig
	logger *slog.Logger
}

// PrioritizerOption configures a Prioritizer.
type PrioritizerOption func(*Prioritizer) error

// WithPriorityConfig sets the priority weights.
func WithPriorityConfig(cfg scoring.PriorityConfig) PrioritizerOption {
	return func(p *Prioritizer) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		p.cfg = cfg
		return nil
	}
}

// WithPrioritizerLogger sets a custom logger.
func WithPrioritizerLogger(logger *slog.Logger) PrioritizerOption {
	return func(p *Prioritizer) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPrioritizer creates a prioritizer over cases.
func NewPrioritizer(cases storage.CaseRepository, opts ...PrioritizerOption) (*Prioritizer, error) {
	if cases == nil {
		return nil, ErrRepositoriesRequired
	}
	p := &Prioritizer{cases: cases, cfg: scoring.DefaultPriorityConfig(), logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "prioritizer")
	return p, nil
}

// Prioritize loads the given cases, or every stored case when caseIDs is
// empty, and orders them. Unknown IDs are skipped.
func (p *Prioritizer) Prioritize(ctx context.Context, caseIDs []string, now time.Time) ([]scoring.CasePriority, error) {
	var cases []*core.Case
	var err error
	if len(caseIDs) == 0 {
		cases, err = p.cases.ListCases(ctx)
	} else {
		cases, err = p.cases.GetCases(ctx, caseIDs...)
	}
	if err != nil {
		return nil, fmt.Errorf("load cases: %w", err)
	}
	if skipped := len(caseIDs) - len(cases); len(caseIDs) > 0 && skipped > 0 {
		p.logger.Warn("unknown cases skipped", "count", skipped)
	}
	return p.PrioritizeCases(cases, now)
}

// PrioritizeCases orders cases already in memory.
func (p *Prioritizer) PrioritizeCases(cases []*core.Case, now time.Time) ([]scoring.CasePriority, error) {
	return scoring.OrderByPriority(cases, now, p.cfg)
}
