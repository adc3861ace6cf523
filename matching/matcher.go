package matching

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/scoring"
	"github.com/berdachuk/medexpertmatch/signals"
	"github.com/berdachuk/medexpertmatch/storage"
)

// Result is the outcome of one Match call.
type Result struct {
	CaseID  string
	Matches []core.ConsultationMatch
	// NoCandidates is set when no doctor passed the hard filters. The
	// stored ranking of the case was replaced by an empty one.
	NoCandidates bool
	// Providers reports how each signal source behaved.
	Providers []signals.ProviderStatus
}

// Err returns ErrNoCandidates for an empty pool, nil otherwise.
func (r *Result) Err() error {
	if r.NoCandidates {
		return ErrNoCandidates
	}
	return nil
}

// Unavailable lists the signal kinds that failed for the whole request.
func (r *Result) Unavailable() []signals.Kind {
	var out []signals.Kind
	for _, p := range r.Providers {
		if !p.Available {
			out = append(out, p.Kind)
		}
	}
	return out
}

// Matcher ranks doctors for a case and persists the ranking.
type Matcher struct {
	doctors    storage.DoctorRepository
	cases      storage.CaseRepository
	matches    storage.MatchRepository
	collector  *signals.Collector
	normalizer *scoring.Normalizer
	fuser      *scoring.Fuser
	enhancer   Enhancer
	monitor    Monitor
	now        func() time.Time
	logger     *slog.Logger

	experience scoring.ExperienceConfig
}

// Option configures a Matcher.
type Option func(*Matcher) error

// WithFuser sets the fusion weights and rationale threshold.
func WithFuser(f *scoring.Fuser) Option {
	return func(m *Matcher) error {
		if f != nil {
			m.fuser = f
		}
		return nil
	}
}

// WithExperienceConfig sets the experience half-life and rating share.
func WithExperienceConfig(cfg scoring.ExperienceConfig) Option {
	return func(m *Matcher) error {
		m.experience = cfg
		return nil
	}
}

// WithEnhancer rewrites each match rationale with a model.
func WithEnhancer(e Enhancer) Option {
	return func(m *Matcher) error {
		m.enhancer = e
		return nil
	}
}

// WithMonitor sets the request observer.
func WithMonitor(mon Monitor) Option {
	return func(m *Matcher) error {
		if mon == nil {
			mon = noopMonitor{}
		}
		m.monitor = mon
		return nil
	}
}

// WithClock sets the time source used for experience recency and timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) error {
		if now != nil {
			m.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// NewMatcher creates a matcher reading doctors and cases from repos and
// writing rankings to repos.Matches.
func NewMatcher(repos *storage.Repositories, collector *signals.Collector, opts ...Option) (*Matcher, error) {
	if repos == nil || repos.Doctors == nil || repos.Matches == nil {
		return nil, ErrRepositoriesRequired
	}
	if collector == nil {
		return nil, ErrCollectorRequired
	}
	m := &Matcher{
		doctors:    repos.Doctors,
		cases:      repos.Cases,
		matches:    repos.Matches,
		collector:  collector,
		monitor:    noopMonitor{},
		now:        time.Now,
		logger:     slog.Default(),
		experience: scoring.DefaultExperienceConfig(),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if m.fuser == nil {
		f, err := scoring.NewFuser()
		if err != nil {
			return nil, err
		}
		m.fuser = f
	}
	m.normalizer = scoring.NewNormalizer(m.experience, m.now)
	m.logger = m.logger.With("component", "matcher")
	return m, nil
}

// MatchByID loads the case and matches it.
func (m *Matcher) MatchByID(ctx context.Context, caseID string, opts MatchOptions) (*Result, error) {
	if m.cases == nil {
		return nil, ErrRepositoriesRequired
	}
	c, err := m.cases.GetCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("load case %q: %w", caseID, err)
	}
	return m.Match(ctx, c, opts)
}

// Match ranks candidate doctors for c and replaces the stored ranking.
//
// Doctors failing the specialty, telehealth or facility filters are never
// scored. An empty pool is not an error: the result has NoCandidates set.
// Unavailable signal sources degrade the ranking but never fail it.
func (m *Matcher) Match(ctx context.Context, c *core.Case, opts MatchOptions) (*Result, error) {
	if c == nil {
		return nil, ErrCaseRequired
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	caseID := core.NormalizeCaseID(c.ID)
	logger := m.logger.With("case", caseID)

	pool, err := m.candidates(ctx, c, opts)
	if err != nil {
		return nil, err
	}
	m.monitor.OnCandidates(caseID, len(pool))

	result := &Result{CaseID: caseID}
	if len(pool) == 0 {
		logger.Info("no candidates passed the hard filters", "specialty", c.RequiredSpecialty)
		if err := m.matches.ReplaceForCase(ctx, caseID, nil); err != nil {
			return nil, err
		}
		result.NoCandidates = true
		m.monitor.OnRanked(caseID, 0, time.Since(start))
		return result, nil
	}

	ids := make([]string, len(pool))
	byID := make(map[string]*core.Doctor, len(pool))
	for i := range pool {
		ids[i] = pool[i].ID
		byID[pool[i].ID] = &pool[i]
	}

	collection, err := m.collector.Collect(ctx, c, ids)
	if err != nil {
		return nil, err
	}
	for _, st := range collection.Providers {
		result.Providers = append(result.Providers, st)
		m.monitor.OnProvider(caseID, st)
	}

	vectors := m.normalizer.Normalize(c, collection.Candidates)
	cands := make([]scoring.Candidate, 0, len(vectors))
	for i, v := range vectors {
		fused := m.fuser.Fuse(v)
		if fused.Score < opts.MinScore {
			continue
		}
		cands = append(cands, scoring.Candidate{DoctorID: collection.Candidates[i].DoctorID, Fused: fused})
	}
	ranked := scoring.Rank(cands, opts.limit())

	now := m.now()
	result.Matches = make([]core.ConsultationMatch, len(ranked))
	for i, r := range ranked {
		doctor := byID[r.DoctorID]
		result.Matches[i] = core.ConsultationMatch{
			ID:        uuid.NewString(),
			CaseID:    caseID,
			DoctorID:  r.DoctorID,
			Score:     r.Fused.Score,
			Rationale: m.rationale(ctx, c, doctor, r, opts.PreferredSpecialties),
			Rank:      r.Rank,
			Status:    core.MatchStatusPending,
			Signals:   kindNames(r.Fused.Contributing),
			CreatedAt: now,
		}
	}

	if err := m.matches.ReplaceForCase(ctx, caseID, result.Matches); err != nil {
		return nil, err
	}
	logger.Info("case matched", "candidates", len(pool), "matches", len(result.Matches),
		"unavailable", len(collection.Unavailable()), "elapsed", time.Since(start))
	m.monitor.OnRanked(caseID, len(result.Matches), time.Since(start))
	return result, nil
}

// candidates fetches the pool and applies the hard filters.
func (m *Matcher) candidates(ctx context.Context, c *core.Case, opts MatchOptions) ([]core.Doctor, error) {
	found, err := m.doctors.FindBySpecialty(ctx, c.RequiredSpecialty, opts.PoolSize())
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	doctors := make([]core.Doctor, 0, len(found))
	for _, d := range found {
		if d == nil {
			continue
		}
		if opts.RequireTelehealth && !d.TelehealthEnabled {
			continue
		}
		if len(opts.PreferredFacilityIDs) > 0 && !d.AffiliatedWith(opts.PreferredFacilityIDs) {
			continue
		}
		doctors = append(doctors, *d)
	}
	return scoring.FilterBySpecialty(doctors, c.RequiredSpecialty), nil
}

func (m *Matcher) rationale(ctx context.Context, c *core.Case, d *core.Doctor, r scoring.Ranked, preferred []string) string {
	text := r.Fused.Rationale
	if m.enhancer != nil {
		enhanced, err := m.enhancer.Enhance(ctx, c, d, r)
		if err != nil {
			m.logger.Warn("rationale enhancement failed, keeping template", "case", c.ID, "doctor", r.DoctorID, "error", err)
		} else if enhanced != "" {
			text = enhanced
		}
	}
	if d != nil {
		for _, s := range preferred {
			if d.HasSpecialty(s) {
				text += "; preferred specialty " + strings.TrimSpace(s)
				break
			}
		}
	}
	return scoring.TruncateRationale(text)
}

func kindNames(kinds []signals.Kind) []string {
	if len(kinds) == 0 {
		return nil
	}
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.String()
	}
	return out
}
