package search

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/signals"
	"github.com/berdachuk/medexpertmatch/storage/badger"
)

var _ signals.LexicalSource = (*Index)(nil)

type recordingMonitor struct {
	terms    []string
	verbatim []string
	finished map[string]float64
}

func (m *recordingMonitor) Start(_ string, terms []string)         { m.terms = terms }
func (m *recordingMonitor) VerbatimHit(_, doctorID string)         { m.verbatim = append(m.verbatim, doctorID) }
func (m *recordingMonitor) Finish(_ string, s map[string]float64) { m.finished = s }

func TestNewIndex(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		ix, err := NewIndex()
		require.NoError(t, err)
		assert.Equal(t, 0, ix.Len())
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		_, err := NewIndex(WithLogger(nil), WithLogger(slog.Default()))
		require.NoError(t, err)
	})

	t.Run("bad parameters", func(t *testing.T) {
		_, err := NewIndex(WithBM25(-1, 0.5))
		assert.ErrorIs(t, err, ErrInvalidParameter)
		_, err = NewIndex(WithBM25(1.2, 1.5))
		assert.ErrorIs(t, err, ErrInvalidParameter)
		_, err = NewIndex(WithVerbatimBoost(-0.1))
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestTokenizeAndFilter(t *testing.T) {
	got := tokenizeAndFilter("The patient presents with Chest-pain, dyspnea; (I21.4) and sweating.")
	assert.Equal(t, []string{"chest-pain", "dyspnea", "i21.4", "sweating"}, got)
	assert.Empty(t, tokenizeAndFilter("the of and"))
}

func TestIndex_ScoresRelevantDoctorHigher(t *testing.T) {
	mon := &recordingMonitor{}
	ix, err := NewIndex(WithMonitor(mon))
	require.NoError(t, err)

	ix.AddDoctor(&core.Doctor{ID: "cardio", Specialties: []string{"Cardiology"}})
	ix.AddText("cardio", "acute myocardial infarction chest pain troponin elevated")
	ix.AddText("cardio", "unstable angina chest pain")
	ix.AddDoctor(&core.Doctor{ID: "neuro", Specialties: []string{"Neurology"}})
	ix.AddText("neuro", "migraine headache aura photophobia")

	c := &core.Case{ID: "q", ChiefComplaint: "chest pain", Symptoms: "elevated troponin"}
	scores, err := ix.Scores(context.Background(), c, []string{"cardio", "neuro", "ghost"})
	require.NoError(t, err)

	assert.Greater(t, scores["cardio"], 0.0)
	assert.Equal(t, 0.0, scores["neuro"])
	assert.NotContains(t, scores, "ghost", "unindexed doctors are omitted")
	assert.Contains(t, mon.verbatim, "cardio")
	assert.Equal(t, scores, mon.finished)
	assert.ElementsMatch(t, []string{"chest", "pain", "elevated", "troponin"}, mon.terms)
}

func TestIndex_VerbatimBoost(t *testing.T) {
	build := func(boost float64) *Index {
		ix, err := NewIndex(WithVerbatimBoost(boost))
		require.NoError(t, err)
		ix.AddText("a", "seizure epilepsy")
		ix.AddText("b", "seizure")
		return ix
	}
	c := &core.Case{Symptoms: "seizure epilepsy"}

	without, err := build(0).Scores(context.Background(), c, []string{"a"})
	require.NoError(t, err)
	with, err := build(0.3).Scores(context.Background(), c, []string{"a"})
	require.NoError(t, err)
	assert.InDelta(t, 0.3, with["a"]-without["a"], 1e-9)
}

func TestIndex_EmptyQueryAndCanceledContext(t *testing.T) {
	ix, err := NewIndex()
	require.NoError(t, err)
	ix.AddText("a", "asthma")

	scores, err := ix.Scores(context.Background(), &core.Case{ID: "empty"}, []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, scores)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ix.Scores(ctx, &core.Case{Symptoms: "asthma"}, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_FromRepositories(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()
	ctx := context.Background()

	require.NoError(t, repos.Doctors.PutDoctors(ctx,
		&core.Doctor{ID: "d1", Specialties: []string{"Oncology"}},
		&core.Doctor{ID: "d2", Specialties: []string{"Dermatology"}},
	))
	require.NoError(t, repos.Cases.PutCases(ctx,
		&core.Case{ID: "C1", ChiefComplaint: "breast lump", CurrentDiagnosis: "carcinoma"},
	))
	require.NoError(t, repos.Experiences.PutExperiences(ctx,
		&core.ExperienceRecord{ID: "e1", DoctorID: "d1", CaseID: "c1"},
	))

	ix, err := Load(ctx, repos)
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())

	scores, err := ix.Scores(ctx, &core.Case{ChiefComplaint: "carcinoma"}, []string{"d1", "d2"})
	require.NoError(t, err)
	assert.Greater(t, scores["d1"], scores["d2"])

	_, err = Load(ctx, nil)
	assert.ErrorIs(t, err, ErrDoctorRepositoryRequired)
}
