package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berdachuk/medexpertmatch/core"
)

var seedFile = filepath.Join("..", "..", "testdata", "seed.yaml")

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := newApp(&out, &errOut).Run(append([]string{"medexpertmatch"}, args...))
	return out.String(), err
}

func seededDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "db")
	out, err := run(t, "--db", db, "--log-level", "error", "seed", "--file", seedFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 3 doctors, 4 cases, 3 experience records, 2 facilities")
	return db
}

func TestMatchCommand(t *testing.T) {
	db := seededDB(t)

	t.Run("table output", func(t *testing.T) {
		out, err := run(t, "--db", db, "-l", "error", "match", "--case", "CASE-NEW")
		require.NoError(t, err)
		assert.Contains(t, out, "RANK")
		assert.Contains(t, out, "doc-a")
		assert.NotContains(t, out, "doc-c")
		assert.Contains(t, out, "warning: embedding signal unavailable")
	})

	t.Run("json output", func(t *testing.T) {
		out, err := run(t, "--db", db, "-l", "error", "match", "--case", "case-new", "--max-results", "1", "--json")
		require.NoError(t, err)
		var matches []core.ConsultationMatch
		require.NoError(t, json.Unmarshal([]byte(out), &matches))
		require.Len(t, matches, 1)
		assert.Equal(t, "doc-a", matches[0].DoctorID)
		assert.Equal(t, 1, matches[0].Rank)
	})

	t.Run("telehealth filter", func(t *testing.T) {
		out, err := run(t, "--db", db, "-l", "error", "match", "--case", "case-new", "--telehealth", "--json")
		require.NoError(t, err)
		var matches []core.ConsultationMatch
		require.NoError(t, json.Unmarshal([]byte(out), &matches))
		require.Len(t, matches, 1)
		assert.Equal(t, "doc-a", matches[0].DoctorID)
	})

	t.Run("case is required", func(t *testing.T) {
		_, err := run(t, "--db", db, "match")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "case")
	})
}

func TestPrioritizeCommand(t *testing.T) {
	db := seededDB(t)

	out, err := run(t, "--db", db, "-l", "error", "prioritize", "--json")
	require.NoError(t, err)
	var prios []priorityView
	require.NoError(t, json.Unmarshal([]byte(out), &prios))
	require.Len(t, prios, 4)
	assert.Equal(t, "MEDIUM", prios[3].Urgency)

	out, err = run(t, "--db", db, "-l", "error", "prioritize", "--case", "past-1", "--case", "past-2")
	require.NoError(t, err)
	assert.Contains(t, out, "POS")
	assert.Contains(t, out, "past-1")
	assert.NotContains(t, out, "case-new")
}

func TestRouteCommand(t *testing.T) {
	db := seededDB(t)

	out, err := run(t, "--db", db, "-l", "error", "route", "--case", "case-new")
	require.NoError(t, err)
	assert.Contains(t, out, "fac-general")
	assert.NotContains(t, out, "fac-clinic", "clinic has no cath lab")

	out, err = run(t, "--db", db, "-l", "error", "route", "--case", "case-new", "--capability", "PET")
	require.NoError(t, err)
	assert.Contains(t, out, "No facility meets the requirements")
}

func TestReembedCommand_RequiresModels(t *testing.T) {
	db := seededDB(t)
	_, err := run(t, "--db", db, "-l", "error", "reembed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ai.enabled")
}

func TestIngestCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "db")
	cases := filepath.Join(t.TempDir(), "cases.yaml")
	require.NoError(t, os.WriteFile(cases, []byte(`
cases:
  - id: Walk-In-1
    chiefComplaint: headache and blurred vision
    urgency: HIGH
`), 0o644))

	out, err := run(t, "--db", db, "-l", "error", "ingest", "--file", cases)
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested 1 cases")

	out, err = run(t, "--db", db, "-l", "error", "prioritize")
	require.NoError(t, err)
	assert.Contains(t, out, "walk-in-1")
}

func TestGlobalFlags(t *testing.T) {
	t.Run("invalid log level", func(t *testing.T) {
		_, err := run(t, "--db", t.TempDir(), "--log-level", "loud", "prioritize")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "loud")
	})

	t.Run("config file", func(t *testing.T) {
		cfgPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("logLevel: error\nstorage:\n  inMemory: true\n"), 0o644))
		out, err := run(t, "--config", cfgPath, "prioritize")
		require.NoError(t, err)
		assert.Contains(t, out, "POS")
	})

	t.Run("unknown config key", func(t *testing.T) {
		cfgPath := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("colour: blue\n"), 0o644))
		_, err := run(t, "--config", cfgPath, "prioritize")
		assert.Error(t, err)
	})
}
