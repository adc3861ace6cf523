package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/graph"
	"github.com/berdachuk/medexpertmatch/scoring"
	"github.com/berdachuk/medexpertmatch/signals"
	"github.com/berdachuk/medexpertmatch/storage"
	"github.com/berdachuk/medexpertmatch/storage/badger"
)

type embeddingFunc func(ctx context.Context, c *core.Case, ids []string) (map[string]float64, error)

func (f embeddingFunc) Similarity(ctx context.Context, c *core.Case, ids []string) (map[string]float64, error) {
	return f(ctx, c, ids)
}

type graphFunc func(ctx context.Context, c *core.Case, ids []string) (map[string]graph.Path, error)

func (f graphFunc) Paths(ctx context.Context, c *core.Case, ids []string) (map[string]graph.Path, error) {
	return f(ctx, c, ids)
}

type lexicalFunc func(ctx context.Context, c *core.Case, ids []string) (map[string]float64, error)

func (f lexicalFunc) Scores(ctx context.Context, c *core.Case, ids []string) (map[string]float64, error) {
	return f(ctx, c, ids)
}

type experienceFunc func(ctx context.Context, ids []string) (map[string][]core.ExperienceRecord, error)

func (f experienceFunc) FindByDoctorIDs(ctx context.Context, ids []string) (map[string][]core.ExperienceRecord, error) {
	return f(ctx, ids)
}

// unfilteredDoctors ignores the specialty so the matcher's own hard filter
// is what keeps the ranking clean.
type unfilteredDoctors struct {
	storage.DoctorRepository
	all []*core.Doctor
}

func (u *unfilteredDoctors) FindBySpecialty(context.Context, string, int) ([]*core.Doctor, error) {
	return u.all, nil
}

type failingMatches struct {
	storage.MatchRepository
}

func (failingMatches) ReplaceForCase(_ context.Context, caseID string, _ []core.ConsultationMatch) error {
	return &storage.PersistenceError{CaseID: caseID, Op: "insert", Err: errors.New("disk full")}
}

type recordingMonitor struct {
	mu         sync.Mutex
	candidates int
	providers  []signals.ProviderStatus
	ranked     int
}

func (m *recordingMonitor) OnCandidates(_ string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = n
}

func (m *recordingMonitor) OnProvider(_ string, st signals.ProviderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers = append(m.providers, st)
}

func (m *recordingMonitor) OnRanked(_ string, n int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ranked = n
}

type stubEnhancer struct {
	text string
	err  error
}

func (s stubEnhancer) Enhance(context.Context, *core.Case, *core.Doctor, scoring.Ranked) (string, error) {
	return s.text, s.err
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRepos(t *testing.T, doctors ...*core.Doctor) *storage.Repositories {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })
	require.NoError(t, repos.Doctors.PutDoctors(context.Background(), doctors...))
	return repos
}

func newCollector(t *testing.T, opts ...signals.Option) *signals.Collector {
	t.Helper()
	c, err := signals.NewCollector(append([]signals.Option{signals.WithPoolSize(2)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(c.Release)
	return c
}

func newMatcher(t *testing.T, repos *storage.Repositories, collector *signals.Collector, opts ...Option) *Matcher {
	t.Helper()
	m, err := NewMatcher(repos, collector, append([]Option{WithClock(func() time.Time { return testNow })}, opts...)...)
	require.NoError(t, err)
	return m
}

func doctorIDs(matches []core.ConsultationMatch) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.DoctorID
	}
	return out
}

func cardiologyScenario(t *testing.T) (*storage.Repositories, *signals.Collector) {
	doctors := []*core.Doctor{
		{ID: "A", Name: "Dr. A", Specialties: []string{"Cardiology"}},
		{ID: "B", Name: "Dr. B", Specialties: []string{"Cardiology"}},
		{ID: "C", Name: "Dr. C", Specialties: []string{"Neurology"}},
	}
	repos := newRepos(t, doctors...)
	repos.Doctors = &unfilteredDoctors{DoctorRepository: repos.Doctors, all: doctors}

	collector := newCollector(t,
		signals.WithEmbeddingSource(embeddingFunc(func(_ context.Context, _ *core.Case, ids []string) (map[string]float64, error) {
			sims := map[string]float64{"A": 0.9, "B": 0.95, "C": 0.99}
			out := map[string]float64{}
			for _, id := range ids {
				out[id] = sims[id]
			}
			return out, nil
		})),
		signals.WithGraphSource(graphFunc(func(context.Context, *core.Case, []string) (map[string]graph.Path, error) {
			return map[string]graph.Path{"A": {Hops: 1, Weight: 1}, "B": {Hops: 3, Weight: 1}}, nil
		})),
		signals.WithExperienceSource(repos.Experiences),
	)
	return repos, collector
}

func TestNewMatcher_Validation(t *testing.T) {
	repos := newRepos(t)
	_, err := NewMatcher(nil, newCollector(t))
	assert.ErrorIs(t, err, ErrRepositoriesRequired)

	_, err = NewMatcher(repos, nil)
	assert.ErrorIs(t, err, ErrCollectorRequired)
}

func TestMatch_CardiologyScenario(t *testing.T) {
	repos, collector := cardiologyScenario(t)
	m := newMatcher(t, repos, collector)

	c := &core.Case{ID: "Case-1", RequiredSpecialty: "Cardiology", ChiefComplaint: "chest pain"}
	res, err := m.Match(context.Background(), c, DefaultMatchOptions())
	require.NoError(t, err)

	require.Equal(t, []string{"A", "B"}, doctorIDs(res.Matches), "C is excluded, graph favors A")
	assert.Greater(t, res.Matches[0].Score, res.Matches[1].Score)
	assert.Equal(t, "case-1", res.CaseID)
	for i, match := range res.Matches {
		assert.Equal(t, i+1, match.Rank)
		assert.Equal(t, "case-1", match.CaseID)
		assert.Equal(t, core.MatchStatusPending, match.Status)
		assert.NotEmpty(t, match.ID)
		assert.NotEmpty(t, match.Rationale)
		assert.LessOrEqual(t, len(match.Rationale), scoring.MaxRationaleLength)
		assert.Equal(t, testNow, match.CreatedAt)
		assert.Contains(t, match.Signals, "embedding")
	}
	assert.Contains(t, res.Unavailable(), signals.KindLexical)

	stored, err := repos.Matches.FindByCaseID(context.Background(), "CASE-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, doctorIDs(stored))
}

func TestMatch_Idempotent(t *testing.T) {
	repos, collector := cardiologyScenario(t)
	m := newMatcher(t, repos, collector)
	c := &core.Case{ID: "case-1", RequiredSpecialty: "Cardiology"}

	first, err := m.Match(context.Background(), c, DefaultMatchOptions())
	require.NoError(t, err)
	second, err := m.Match(context.Background(), c, DefaultMatchOptions())
	require.NoError(t, err)

	diff := cmp.Diff(first.Matches, second.Matches,
		cmpopts.IgnoreFields(core.ConsultationMatch{}, "ID"),
		cmpopts.EquateApprox(0, 1e-12))
	assert.Empty(t, diff)
}

func TestMatch_AllProvidersUnavailable(t *testing.T) {
	doctors := []*core.Doctor{
		{ID: "d3", Specialties: []string{"Cardiology"}},
		{ID: "d1", Specialties: []string{"Cardiology"}},
		{ID: "d2", Specialties: []string{"cardiology"}},
	}
	repos := newRepos(t, doctors...)
	boom := errors.New("down")
	collector := newCollector(t,
		signals.WithEmbeddingSource(embeddingFunc(func(context.Context, *core.Case, []string) (map[string]float64, error) {
			return nil, boom
		})),
		signals.WithGraphSource(graphFunc(func(context.Context, *core.Case, []string) (map[string]graph.Path, error) {
			return nil, boom
		})),
		signals.WithLexicalSource(lexicalFunc(func(context.Context, *core.Case, []string) (map[string]float64, error) {
			return nil, boom
		})),
		signals.WithExperienceSource(experienceFunc(func(context.Context, []string) (map[string][]core.ExperienceRecord, error) {
			return nil, boom
		})),
	)
	mon := &recordingMonitor{}
	m := newMatcher(t, repos, collector, WithMonitor(mon))

	res, err := m.Match(context.Background(), &core.Case{ID: "c", RequiredSpecialty: "Cardiology"}, DefaultMatchOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2", "d3"}, doctorIDs(res.Matches))
	assert.Len(t, res.Unavailable(), signals.NumKinds)
	for _, match := range res.Matches {
		assert.Equal(t, 0.0, match.Score)
		assert.Empty(t, match.Signals)
	}

	assert.Equal(t, 3, mon.candidates)
	assert.Len(t, mon.providers, signals.NumKinds)
	assert.Equal(t, 3, mon.ranked)
}

func TestMatch_ReplacesPreviousRanking(t *testing.T) {
	var doctors []*core.Doctor
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		doctors = append(doctors, &core.Doctor{ID: id, Specialties: []string{"Cardiology"}})
	}
	repos := newRepos(t, doctors...)
	m := newMatcher(t, repos, newCollector(t))
	c := &core.Case{ID: "c-9", RequiredSpecialty: "Cardiology"}

	_, err := m.Match(context.Background(), c, DefaultMatchOptions())
	require.NoError(t, err)
	count, err := repos.Matches.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, count)

	_, err = m.Match(context.Background(), c, MatchOptions{MaxResults: 2})
	require.NoError(t, err)
	stored, err := repos.Matches.FindByCaseID(context.Background(), "c-9")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, doctorIDs(stored))
}

func TestMatch_NoCandidatesClearsRanking(t *testing.T) {
	repos := newRepos(t, &core.Doctor{ID: "a", Specialties: []string{"Cardiology"}})
	m := newMatcher(t, repos, newCollector(t))

	c := &core.Case{ID: "c-1", RequiredSpecialty: "Cardiology"}
	_, err := m.Match(context.Background(), c, DefaultMatchOptions())
	require.NoError(t, err)

	c.RequiredSpecialty = "Oncology"
	res, err := m.Match(context.Background(), c, DefaultMatchOptions())
	require.NoError(t, err)
	assert.True(t, res.NoCandidates)
	assert.ErrorIs(t, res.Err(), ErrNoCandidates)
	assert.Empty(t, res.Matches)

	stored, err := repos.Matches.FindByCaseID(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestMatch_HardFilters(t *testing.T) {
	repos := newRepos(t,
		&core.Doctor{ID: "tele", Specialties: []string{"Cardiology"}, TelehealthEnabled: true, FacilityIDs: []string{"f2"}},
		&core.Doctor{ID: "onsite", Specialties: []string{"Cardiology"}, FacilityIDs: []string{"f1"}},
		&core.Doctor{ID: "both", Specialties: []string{"Cardiology"}, TelehealthEnabled: true, FacilityIDs: []string{"f1"}},
	)
	m := newMatcher(t, repos, newCollector(t))
	c := &core.Case{ID: "c", RequiredSpecialty: "Cardiology"}

	res, err := m.Match(context.Background(), c, MatchOptions{RequireTelehealth: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tele", "both"}, doctorIDs(res.Matches))

	res, err = m.Match(context.Background(), c, MatchOptions{RequireTelehealth: true, PreferredFacilityIDs: []string{"f1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"both"}, doctorIDs(res.Matches))
}

func TestMatch_MinScore(t *testing.T) {
	repos, collector := cardiologyScenario(t)
	m := newMatcher(t, repos, collector)

	res, err := m.Match(context.Background(), &core.Case{ID: "c", RequiredSpecialty: "Cardiology"}, MatchOptions{MinScore: 0.7})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, doctorIDs(res.Matches))
}

func TestMatch_Rationale(t *testing.T) {
	t.Run("enhanced", func(t *testing.T) {
		repos, collector := cardiologyScenario(t)
		m := newMatcher(t, repos, collector, WithEnhancer(stubEnhancer{text: "Treated similar cardiac cases."}))
		res, err := m.Match(context.Background(), &core.Case{ID: "c", RequiredSpecialty: "Cardiology"}, DefaultMatchOptions())
		require.NoError(t, err)
		assert.Equal(t, "Treated similar cardiac cases.", res.Matches[0].Rationale)
	})

	t.Run("enhancer failure keeps template", func(t *testing.T) {
		repos, collector := cardiologyScenario(t)
		m := newMatcher(t, repos, collector, WithEnhancer(stubEnhancer{err: errors.New("rate limited")}))
		res, err := m.Match(context.Background(), &core.Case{ID: "c", RequiredSpecialty: "Cardiology"}, DefaultMatchOptions())
		require.NoError(t, err)
		assert.Contains(t, res.Matches[0].Rationale, "lexical data unavailable")
	})

	t.Run("preferred specialty", func(t *testing.T) {
		repos, collector := cardiologyScenario(t)
		m := newMatcher(t, repos, collector)
		res, err := m.Match(context.Background(), &core.Case{ID: "c", RequiredSpecialty: "Cardiology"},
			MatchOptions{PreferredSpecialties: []string{"cardiology"}})
		require.NoError(t, err)
		assert.Contains(t, res.Matches[0].Rationale, "preferred specialty cardiology")
	})
}

func TestMatch_PersistenceFailure(t *testing.T) {
	repos, collector := cardiologyScenario(t)
	repos.Matches = failingMatches{MatchRepository: repos.Matches}
	m := newMatcher(t, repos, collector)

	_, err := m.Match(context.Background(), &core.Case{ID: "c", RequiredSpecialty: "Cardiology"}, DefaultMatchOptions())
	var perr *storage.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "c", perr.CaseID)
}

func TestMatchByID(t *testing.T) {
	repos, collector := cardiologyScenario(t)
	require.NoError(t, repos.Cases.PutCases(context.Background(), &core.Case{ID: "stored", RequiredSpecialty: "Cardiology"}))
	m := newMatcher(t, repos, collector)

	res, err := m.MatchByID(context.Background(), "stored", DefaultMatchOptions())
	require.NoError(t, err)
	assert.Len(t, res.Matches, 2)

	_, err = m.MatchByID(context.Background(), "missing", DefaultMatchOptions())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMatch_InvalidInput(t *testing.T) {
	m := newMatcher(t, newRepos(t), newCollector(t))

	_, err := m.Match(context.Background(), nil, DefaultMatchOptions())
	assert.ErrorIs(t, err, ErrCaseRequired)

	_, err = m.Match(context.Background(), &core.Case{ID: "c"}, MatchOptions{MinScore: 2})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestMatchOptions_PoolSize(t *testing.T) {
	assert.Equal(t, 20, MatchOptions{}.PoolSize())
	assert.Equal(t, 20, MatchOptions{MaxResults: 5}.PoolSize())
	assert.Equal(t, 30, MatchOptions{MaxResults: 15}.PoolSize())
}
