package badger

import "github.com/berdachuk/medexpertmatch/storage"

// NewRepositories wires every repository onto one backend. Closing the
// result closes the backend.
func NewRepositories(backend *Backend) *storage.Repositories {
	return storage.NewRepositories(
		NewDoctorRepository(backend),
		NewCaseRepository(backend),
		NewExperienceRepository(backend),
		NewFacilityRepository(backend),
		NewMatchRepository(backend),
		NewVectorIndex(backend),
		backend.Close,
	)
}

// Open opens or creates a database directory and returns its repositories.
func Open(path string, opts ...BackendOption) (*storage.Repositories, error) {
	backend, err := OpenBackend(path, false, opts...)
	if err != nil {
		return nil, err
	}
	return NewRepositories(backend), nil
}

// NewMemoryRepositories creates in-memory repositories for testing.
// Caller must Close the result when done.
func NewMemoryRepositories() (*storage.Repositories, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return NewRepositories(backend), nil
}
