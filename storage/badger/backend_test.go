package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := t.TempDir() + "/nested/db"
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
	assert.NoError(t, backend.Close(), "second close is a no-op")

	_, err = NewDoctorRepository(backend).GetDoctor(context.Background(), "x")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestBackend_CanceledContext(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = repos.Doctors.PutDoctors(ctx, &core.Doctor{ID: "d1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	repos, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, repos.Cases.PutCases(ctx, &core.Case{ID: "Case-1", ChiefComplaint: "dyspnea"}))
	require.NoError(t, repos.Close())

	repos, err = Open(dir)
	require.NoError(t, err)
	defer repos.Close()

	c, err := repos.Cases.GetCase(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, "dyspnea", c.ChiefComplaint)
}
