package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/signals"
	"github.com/berdachuk/medexpertmatch/storage"
)

var (
	_ signals.LexicalSource    = (*LexicalIndex)(nil)
	_ signals.ExperienceSource = (*ExperienceRepository)(nil)
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *Store) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := New(db)
	require.NoError(t, err)
	return db, mock, store
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

var doctorCols = []string{"id", "name", "email", "specialties", "certifications", "facility_ids", "telehealth_enabled", "availability"}

func TestMigrate(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectExec(q("CREATE EXTENSION IF NOT EXISTS vector")).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDoctorRepository_FindBySpecialty(t *testing.T) {
	_, mock, store := setupMockDB(t)
	repos := store.Repositories()

	rows := sqlmock.NewRows(doctorCols).
		AddRow("d1", "Dr. A", "a@example.org", "{Cardiology}", "{}", "{f1,f2}", true, "").
		AddRow("d2", "Dr. B", "", "{cardiology,\"Internal Medicine\"}", "{}", "{}", false, "mornings")

	mock.ExpectQuery(q("FROM doctors")).
		WithArgs("cardiology", 5).
		WillReturnRows(rows)

	doctors, err := repos.Doctors.FindBySpecialty(context.Background(), "  Cardiology ", 5)
	require.NoError(t, err)
	require.Len(t, doctors, 2)
	assert.Equal(t, []string{"f1", "f2"}, doctors[0].FacilityIDs)
	assert.True(t, doctors[0].TelehealthEnabled)
	assert.Nil(t, doctors[0].Certifications)
	assert.Equal(t, []string{"cardiology", "Internal Medicine"}, doctors[1].Specialties)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = repos.Doctors.FindBySpecialty(context.Background(), "x", -1)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestDoctorRepository_GetDoctorNotFound(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectQuery(q("FROM doctors WHERE id = $1")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(doctorCols))

	_, err := store.Repositories().Doctors.GetDoctor(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDoctorRepository_PutDoctors(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO doctors")).
		WithArgs("d1", "Dr. A", "", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), false, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Repositories().Doctors.PutDoctors(context.Background(), &core.Doctor{ID: "d1", Name: "Dr. A"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseRepository_GetCasesKeepsArgumentOrder(t *testing.T) {
	_, mock, store := setupMockDB(t)

	cols := []string{"id", "patient_age", "chief_complaint", "symptoms", "current_diagnosis", "icd10_codes",
		"snomed_codes", "urgency", "required_specialty", "case_type", "additional_notes", "abstract",
		"required_capabilities", "lat", "lon", "submitted_at"}
	submitted := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows(cols).
		AddRow("case-a", 40, "cough", "", "", "{J20.9}", "{}", 2, "Pulmonology", "CONSULT_REQUEST", "", "", "{}", nil, nil, nil).
		AddRow("CASE-B", 71, "chest pain", "", "", "{}", "{}", 4, "Cardiology", "INPATIENT", "", "", "{\"Cath Lab\"}", 42.3, -71.1, submitted)

	mock.ExpectQuery(q("FROM medical_cases WHERE norm_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	cases, err := store.Repositories().Cases.GetCases(context.Background(), "case-b", "missing", "Case-A")
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "CASE-B", cases[0].ID)
	assert.Equal(t, core.UrgencyCritical, cases[0].Urgency)
	assert.Equal(t, &core.GeoPoint{Lat: 42.3, Lon: -71.1}, cases[0].Location)
	assert.Equal(t, submitted, cases[0].SubmittedAt)
	assert.Equal(t, []string{"Cath Lab"}, cases[0].RequiredCapabilities)
	assert.Equal(t, "case-a", cases[1].ID)
	assert.Nil(t, cases[1].Location)
	assert.True(t, cases[1].SubmittedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExperienceRepository_FindByDoctorIDs(t *testing.T) {
	_, mock, store := setupMockDB(t)

	cols := []string{"id", "doctor_id", "case_id", "specialty", "procedures", "complexity", "outcome",
		"complications", "time_to_resolution_days", "rating", "recorded_at"}
	rows := sqlmock.NewRows(cols).
		AddRow("e1", "d1", "c1", "Cardiology", "{PCI}", "HIGH", "SUCCESS", "{}", 10, 5, nil).
		AddRow("e2", "d1", "c2", "Cardiology", "{}", "LOW", "STABLE", "{}", 3, 4, nil).
		AddRow("e3", "d2", "c1", "", "{}", "", "", "{}", 0, 0, nil)

	mock.ExpectQuery(q("FROM experience_records WHERE doctor_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	got, err := store.Repositories().Experiences.FindByDoctorIDs(context.Background(), []string{"d1", "d2", "d3"})
	require.NoError(t, err)
	assert.Len(t, got["d1"], 2)
	assert.Len(t, got["d2"], 1)
	assert.Equal(t, core.OutcomeSuccess, got["d1"][0].Outcome)
	assert.Equal(t, []string{"PCI"}, got["d1"][0].Procedures)
	assert.NotContains(t, got, "d3")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchRepository_ReplaceForCase(t *testing.T) {
	_, mock, store := setupMockDB(t)
	repo := store.Repositories().Matches

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM consultation_matches WHERE case_id = $1")).
		WithArgs("case-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	for range 2 {
		mock.ExpectExec(q("INSERT INTO consultation_matches")).
			WithArgs(sqlmock.AnyArg(), "case-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), "PENDING", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	err := repo.ReplaceForCase(context.Background(), " Case-1 ", []core.ConsultationMatch{
		{DoctorID: "d1", Rank: 1, Score: 0.9},
		{DoctorID: "d2", Rank: 2, Score: 0.4},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchRepository_ReplaceForCaseRollsBack(t *testing.T) {
	_, mock, store := setupMockDB(t)
	repo := store.Repositories().Matches
	boom := errors.New("disk full")

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM consultation_matches")).
		WithArgs("case-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO consultation_matches")).WillReturnError(boom)
	mock.ExpectRollback()

	err := repo.ReplaceForCase(context.Background(), "case-1", []core.ConsultationMatch{{DoctorID: "d1", Rank: 1}})
	var perr *storage.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "insert", perr.Op)
	assert.Equal(t, "case-1", perr.CaseID)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet(), "the transaction is rolled back")
}

func TestMatchRepository_FindAndDelete(t *testing.T) {
	_, mock, store := setupMockDB(t)
	repo := store.Repositories().Matches
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q("FROM consultation_matches WHERE case_id = $1 ORDER BY rank")).
		WithArgs("case-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "case_id", "doctor_id", "match_score", "match_rationale", "rank", "status", "signals", "created_at"}).
			AddRow("m1", "case-1", "d1", 0.9, "strong keyword overlap", 1, "PENDING", "{lexical}", created))
	mock.ExpectExec(q("DELETE FROM consultation_matches WHERE case_id = $1")).
		WithArgs("case-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("SELECT COUNT(*) FROM consultation_matches")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	ctx := context.Background()
	matches, err := repo.FindByCaseID(ctx, "CASE-1")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, core.MatchStatusPending, matches[0].Status)
	assert.Equal(t, []string{"lexical"}, matches[0].Signals)

	require.NoError(t, repo.DeleteByCaseID(ctx, "case-1"))
	require.NoError(t, repo.DeleteByCaseID(ctx, "   "), "blank id is a no-op")

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVectorIndex_DoctorSimilarity(t *testing.T) {
	_, mock, store := setupMockDB(t)

	mock.ExpectQuery(q("AVG(1 - (v.embedding <=> $1::vector))")).
		WithArgs("[1,0.5]", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"doctor_id", "avg"}).
			AddRow("d1", 0.8).
			AddRow("d2", nil))

	sims, err := store.Repositories().Vectors.DoctorSimilarity(context.Background(), []float32{1, 0.5}, []string{"d1", "d2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"d1": 0.8}, sims)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVectorIndex_CaseVector(t *testing.T) {
	_, mock, store := setupMockDB(t)
	vectors := store.Repositories().Vectors

	mock.ExpectQuery(q("SELECT embedding::text FROM case_embeddings")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"embedding"}).AddRow("[0.25,-1,3]"))
	mock.ExpectQuery(q("SELECT embedding::text FROM case_embeddings")).
		WithArgs("c2").
		WillReturnRows(sqlmock.NewRows([]string{"embedding"}))

	vec, ok, err := vectors.CaseVector(context.Background(), "C1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{0.25, -1, 3}, vec)

	_, ok, err = vectors.CaseVector(context.Background(), "c2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLexicalIndex_Scores(t *testing.T) {
	_, mock, store := setupMockDB(t)
	c := &core.Case{ID: "Q-1", ChiefComplaint: "chest pain", Symptoms: "shortness of breath"}

	mock.ExpectQuery(q("ts_rank(c.search_tsv, q.query)")).
		WithArgs("chest pain shortness of breath", sqlmock.AnyArg(), "q-1").
		WillReturnRows(sqlmock.NewRows([]string{"doctor_id", "sum"}).AddRow("d1", 0.42))

	scores, err := store.Lexical().Scores(context.Background(), c, []string{"d1", "d2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"d1": 0.42}, scores)
	assert.NoError(t, mock.ExpectationsWereMet())

	empty, err := store.Lexical().Scores(context.Background(), &core.Case{ID: "x"}, []string{"d1"})
	require.NoError(t, err)
	assert.Empty(t, empty, "no text means no query")
}

func TestVectorText(t *testing.T) {
	assert.Equal(t, "[0.5,-2,0]", formatVector([]float32{0.5, -2, 0}))
	assert.Equal(t, "[]", formatVector(nil))

	vec, err := parseVector(" [1, 2.5] ")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2.5}, vec)

	_, err = parseVector("1,2")
	assert.ErrorIs(t, err, storage.ErrSerializationFailed)
	_, err = parseVector("[a]")
	assert.ErrorIs(t, err, storage.ErrSerializationFailed)
}
