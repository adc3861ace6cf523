package storage

import (
	"context"

	"github.com/berdachuk/medexpertmatch/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository.
	Close() error
}

// DoctorRepository stores candidate doctors. The engine only reads them.
type DoctorRepository interface {
	Repository

	// PutDoctors inserts or replaces doctors by ID.
	PutDoctors(ctx context.Context, doctors ...*core.Doctor) error

	// GetDoctor returns ErrNotFound if the doctor doesn't exist.
	GetDoctor(ctx context.Context, id string) (*core.Doctor, error)

	// ListDoctors returns every doctor ordered by ID.
	ListDoctors(ctx context.Context) ([]*core.Doctor, error)

	// FindBySpecialty returns doctors practicing specialty (case-insensitive),
	// ordered by ID, at most limit when limit > 0. An empty specialty
	// matches every doctor.
	FindBySpecialty(ctx context.Context, specialty string, limit int) ([]*core.Doctor, error)
}

// CaseRepository stores medical cases keyed by normalized case ID.
type CaseRepository interface {
	Repository

	// PutCases inserts or replaces cases.
	PutCases(ctx context.Context, cases ...*core.Case) error

	// GetCase returns ErrNotFound if the case doesn't exist.
	GetCase(ctx context.Context, id string) (*core.Case, error)

	// GetCases returns only the cases that exist, in argument order.
	GetCases(ctx context.Context, ids ...string) ([]*core.Case, error)

	// ListCases returns every case ordered by ID.
	ListCases(ctx context.Context) ([]*core.Case, error)
}

// ExperienceRepository stores doctors' past clinical experience.
type ExperienceRepository interface {
	Repository

	// PutExperiences inserts or replaces records by ID.
	PutExperiences(ctx context.Context, records ...*core.ExperienceRecord) error

	// FindByDoctorIDs groups records by doctor. Doctors without records are omitted.
	FindByDoctorIDs(ctx context.Context, doctorIDs []string) (map[string][]core.ExperienceRecord, error)

	// ListExperiences returns every record ordered by ID.
	ListExperiences(ctx context.Context) ([]*core.ExperienceRecord, error)
}

// FacilityRepository stores care facilities.
type FacilityRepository interface {
	Repository

	PutFacilities(ctx context.Context, facilities ...*core.Facility) error

	// GetFacility returns ErrNotFound if the facility doesn't exist.
	GetFacility(ctx context.Context, id string) (*core.Facility, error)

	// ListFacilities returns every facility ordered by ID.
	ListFacilities(ctx context.Context) ([]*core.Facility, error)
}

// MatchRepository stores the ranked consultation matches of each case.
// Case IDs are normalized (trimmed, lowercased) by every method.
type MatchRepository interface {
	Repository

	// ReplaceForCase deletes the case's previous matches and inserts matches
	// atomically. On failure it returns *PersistenceError and the previous
	// matches are left intact.
	ReplaceForCase(ctx context.Context, caseID string, matches []core.ConsultationMatch) error

	// FindByCaseID returns the case's matches ordered by rank.
	FindByCaseID(ctx context.Context, caseID string) ([]core.ConsultationMatch, error)

	// DeleteByCaseID removes the case's matches. A blank ID is a no-op.
	DeleteByCaseID(ctx context.Context, caseID string) error

	// InsertBatch adds matches without removing existing ones.
	// Matches without an ID get a random one.
	InsertBatch(ctx context.Context, matches []core.ConsultationMatch) error

	// Count returns the number of stored matches across all cases.
	Count(ctx context.Context) (int, error)

	// DeleteAll removes every stored match.
	DeleteAll(ctx context.Context) error
}

// VectorIndex stores case embeddings and answers doctor similarity queries.
type VectorIndex interface {
	Repository

	// PutCaseVector stores or replaces the embedding of a case.
	PutCaseVector(ctx context.Context, caseID string, vec []float32) error

	// CaseVector returns the stored embedding of a case, if any.
	CaseVector(ctx context.Context, caseID string) ([]float32, bool, error)

	// DoctorSimilarity returns, per doctor, the mean cosine similarity between
	// vec and the embeddings of the cases in the doctor's experience records.
	// Doctors with no embedded cases are omitted.
	DoctorSimilarity(ctx context.Context, vec []float32, doctorIDs []string) (map[string]float64, error)
}

// Repositories bundles the repositories of one storage backend.
type Repositories struct {
	Doctors     DoctorRepository
	Cases       CaseRepository
	Experiences ExperienceRepository
	Facilities  FacilityRepository
	Matches     MatchRepository
	Vectors     VectorIndex

	closer func() error
}

// NewRepositories bundles repositories. closer releases the shared backend
// after every repository is closed; it may be nil.
func NewRepositories(doctors DoctorRepository, cases CaseRepository, experiences ExperienceRepository,
	facilities FacilityRepository, matches MatchRepository, vectors VectorIndex, closer func() error) *Repositories {
	return &Repositories{
		Doctors:     doctors,
		Cases:       cases,
		Experiences: experiences,
		Facilities:  facilities,
		Matches:     matches,
		Vectors:     vectors,
		closer:      closer,
	}
}

// Close closes every repository and then the backend. The first error wins.
func (r *Repositories) Close() error {
	var first error
	for _, repo := range []Repository{r.Doctors, r.Cases, r.Experiences, r.Facilities, r.Matches, r.Vectors} {
		if repo == nil {
			continue
		}
		if err := repo.Close(); err != nil && first == nil {
			first = err
		}
	}
	if r.closer != nil {
		if err := r.closer(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
