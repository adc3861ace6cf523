package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

func newRepos(t *testing.T) *storage.Repositories {
	t.Helper()
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func doctorIDs(doctors []*core.Doctor) []string {
	out := make([]string, len(doctors))
	for i, d := range doctors {
		out[i] = d.ID
	}
	return out
}

func TestDoctorRepository(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Doctors.PutDoctors(ctx,
		&core.Doctor{ID: "d3", Specialties: []string{"Neurology"}},
		&core.Doctor{ID: "d1", Specialties: []string{"Cardiology"}},
		&core.Doctor{ID: "d2", Specialties: []string{"cardiology", "Internal Medicine"}},
	))

	got, err := repos.Doctors.GetDoctor(ctx, "d2")
	require.NoError(t, err)
	assert.Equal(t, []string{"cardiology", "Internal Medicine"}, got.Specialties)

	_, err = repos.Doctors.GetDoctor(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	all, err := repos.Doctors.ListDoctors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2", "d3"}, doctorIDs(all))

	cardio, err := repos.Doctors.FindBySpecialty(ctx, " CARDIOLOGY ", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2"}, doctorIDs(cardio))

	limited, err := repos.Doctors.FindBySpecialty(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	t.Run("reindexes on update", func(t *testing.T) {
		require.NoError(t, repos.Doctors.PutDoctors(ctx, &core.Doctor{ID: "d1", Specialties: []string{"Oncology"}}))

		cardio, err := repos.Doctors.FindBySpecialty(ctx, "Cardiology", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"d2"}, doctorIDs(cardio))

		onc, err := repos.Doctors.FindBySpecialty(ctx, "oncology", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"d1"}, doctorIDs(onc))
	})

	assert.ErrorIs(t, repos.Doctors.PutDoctors(ctx, &core.Doctor{}), core.ErrEmptyID)
}

func TestCaseRepository(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Cases.PutCases(ctx,
		&core.Case{ID: "CASE-B", Urgency: core.UrgencyHigh},
		&core.Case{ID: "case-a", Urgency: core.UrgencyLow},
	))

	c, err := repos.Cases.GetCase(ctx, " case-b ")
	require.NoError(t, err)
	assert.Equal(t, "CASE-B", c.ID, "stored ID is kept verbatim")

	cases, err := repos.Cases.GetCases(ctx, "case-b", "nope", "CASE-A")
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "CASE-B", cases[0].ID)
	assert.Equal(t, "case-a", cases[1].ID)

	all, err := repos.Cases.ListCases(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestExperienceRepository(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Experiences.PutExperiences(ctx,
		&core.ExperienceRecord{ID: "e1", DoctorID: "d1", CaseID: "c1", Rating: 5},
		&core.ExperienceRecord{ID: "e2", DoctorID: "d1", CaseID: "c2", Rating: 3},
		&core.ExperienceRecord{ID: "e3", DoctorID: "d2", CaseID: "c1"},
	))

	byDoctor, err := repos.Experiences.FindByDoctorIDs(ctx, []string{"d1", "d2", "d9"})
	require.NoError(t, err)
	assert.Len(t, byDoctor["d1"], 2)
	assert.Len(t, byDoctor["d2"], 1)
	assert.NotContains(t, byDoctor, "d9")

	t.Run("moving a record updates the doctor index", func(t *testing.T) {
		require.NoError(t, repos.Experiences.PutExperiences(ctx,
			&core.ExperienceRecord{ID: "e2", DoctorID: "d2", CaseID: "c2"}))

		byDoctor, err := repos.Experiences.FindByDoctorIDs(ctx, []string{"d1", "d2"})
		require.NoError(t, err)
		assert.Len(t, byDoctor["d1"], 1)
		assert.Len(t, byDoctor["d2"], 2)
	})

	all, err := repos.Experiences.ListExperiences(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFacilityRepository(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Facilities.PutFacilities(ctx,
		&core.Facility{ID: "f2", Capabilities: []string{"ICU"}},
		&core.Facility{ID: "f1", Location: &core.GeoPoint{Lat: 1, Lon: 2}},
	))

	f, err := repos.Facilities.GetFacility(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, &core.GeoPoint{Lat: 1, Lon: 2}, f.Location)

	all, err := repos.Facilities.ListFacilities(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "f1", all[0].ID)
}

func TestMatchRepository_ReplaceForCase(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := []core.ConsultationMatch{
		{DoctorID: "d2", Rank: 2, Score: 0.5, CreatedAt: now},
		{DoctorID: "d1", Rank: 1, Score: 0.9, CreatedAt: now},
	}
	require.NoError(t, repos.Matches.ReplaceForCase(ctx, "case-1", first))
	require.NoError(t, repos.Matches.ReplaceForCase(ctx, "case-2", first[:1]))

	got, err := repos.Matches.FindByCaseID(ctx, "CASE-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d1", got[0].DoctorID, "ordered by rank")
	assert.Equal(t, "case-1", got[0].CaseID)
	assert.NotEmpty(t, got[0].ID)

	second := []core.ConsultationMatch{{DoctorID: "d3", Rank: 1, Score: 0.7}}
	require.NoError(t, repos.Matches.ReplaceForCase(ctx, "case-1", second))

	got, err = repos.Matches.FindByCaseID(ctx, "case-1")
	require.NoError(t, err)
	require.Len(t, got, 1, "previous matches are replaced, not appended")
	assert.Equal(t, "d3", got[0].DoctorID)

	other, err := repos.Matches.FindByCaseID(ctx, "case-2")
	require.NoError(t, err)
	assert.Len(t, other, 1, "other cases are untouched")

	n, err := repos.Matches.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var perr *storage.PersistenceError
	assert.ErrorAs(t, repos.Matches.ReplaceForCase(ctx, "  ", second), &perr)
}

func TestMatchRepository_ReplaceForCaseStoresNormalizedCaseID(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Matches.ReplaceForCase(ctx, "  Case-MIXED ", []core.ConsultationMatch{
		{CaseID: "something-else", DoctorID: "d1", Rank: 1, Score: 0.8},
	}))

	got, err := repos.Matches.FindByCaseID(ctx, "case-mixed")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "case-mixed", got[0].CaseID, "same value the postgres backend stores")
}

func TestMatchRepository_BatchAndDelete(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Matches.InsertBatch(ctx, []core.ConsultationMatch{
		{CaseID: "c1", DoctorID: "d1", Rank: 1},
		{CaseID: "c1", DoctorID: "d1", Rank: 1},
		{CaseID: "c2", DoctorID: "d2", Rank: 1},
	}))
	n, err := repos.Matches.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "insert batch never overwrites")

	require.NoError(t, repos.Matches.DeleteByCaseID(ctx, "c1"))
	require.NoError(t, repos.Matches.DeleteByCaseID(ctx, ""))
	n, err = repos.Matches.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repos.Matches.DeleteAll(ctx))
	n, err = repos.Matches.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMatchRepository_ClosedStorage(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	require.NoError(t, repos.Close())

	err = repos.Matches.ReplaceForCase(context.Background(), "c1", []core.ConsultationMatch{{DoctorID: "d1", Rank: 1}})
	var perr *storage.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "c1", perr.CaseID)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestVectorIndex(t *testing.T) {
	repos := newRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Vectors.PutCaseVector(ctx, "C1", []float32{1, 0}))
	require.NoError(t, repos.Vectors.PutCaseVector(ctx, "c2", []float32{0, 1}))
	require.NoError(t, repos.Experiences.PutExperiences(ctx,
		&core.ExperienceRecord{ID: "e1", DoctorID: "near", CaseID: "c1"},
		&core.ExperienceRecord{ID: "e2", DoctorID: "mixed", CaseID: "c1"},
		&core.ExperienceRecord{ID: "e3", DoctorID: "mixed", CaseID: "c2"},
		&core.ExperienceRecord{ID: "e4", DoctorID: "noembed", CaseID: "c9"},
	))

	vec, ok, err := repos.Vectors.CaseVector(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0}, vec)

	_, ok, err = repos.Vectors.CaseVector(ctx, "c9")
	require.NoError(t, err)
	assert.False(t, ok)

	sims, err := repos.Vectors.DoctorSimilarity(ctx, []float32{1, 0}, []string{"near", "mixed", "noembed", "unknown"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sims["near"], 1e-6)
	assert.InDelta(t, 0.5, sims["mixed"], 1e-6)
	assert.NotContains(t, sims, "noembed")
	assert.NotContains(t, sims, "unknown")
}
