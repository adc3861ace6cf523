package reembed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berdachuk/medexpertmatch/ai"
	"github.com/berdachuk/medexpertmatch/ai/mock"
	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/resilience"
)

func fastPolicy(attempts int) resilience.Policy {
	return resilience.Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, Multiplier: 2}
}

// unnormalized returns (1,2,2) for every text; its magnitude is 3.
func unnormalized() *mock.MockEmbedder {
	m := mock.NewMockEmbedder()
	m.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{1, 2, 2}
		}
		return out, nil
	}
	return m
}

func TestBatchProcessor_StoresNormalizedVectors(t *testing.T) {
	repos := setupRepos(t)
	cases := seedCases(t, repos, 2)
	ctx := context.Background()

	res, err := NewBatchProcessor(repos.Vectors, unnormalized(), fastPolicy(3)).Process(ctx, cases)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Embedded: 2}, res)

	for _, c := range cases {
		vec, ok, err := repos.Vectors.CaseVector(ctx, c.ID)
		require.NoError(t, err)
		require.True(t, ok, "case %s", c.ID)
		assert.InDeltaSlice(t, []float32{1.0 / 3, 2.0 / 3, 2.0 / 3}, vec, 1e-6)
	}
}

func TestBatchProcessor_SkipsCasesWithoutText(t *testing.T) {
	repos := setupRepos(t)
	embedder := unnormalized()
	var got []string
	inner := embedder.EmbedTextsFunc
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		got = texts
		return inner(ctx, texts)
	}

	cases := []*core.Case{
		{ID: "a", Abstract: "Suspected aortic stenosis"},
		{ID: "blank"},
		{ID: "b", Symptoms: "syncope on exertion"},
	}
	res, err := NewBatchProcessor(repos.Vectors, embedder, fastPolicy(1)).Process(context.Background(), cases)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Embedded: 2, Skipped: 1}, res)
	assert.Equal(t, []string{"Suspected aortic stenosis", "syncope on exertion"}, got)

	_, ok, err := repos.Vectors.CaseVector(context.Background(), "blank")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	embedder := unnormalized()
	res, err := NewBatchProcessor(nil, embedder, fastPolicy(1)).Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res)
	assert.Equal(t, 0, embedder.CallCount())
}

func TestBatchProcessor_RetriesThenSucceeds(t *testing.T) {
	repos := setupRepos(t)
	cases := seedCases(t, repos, 3)
	embedder := unnormalized()
	inner := embedder.EmbedTextsFunc
	attempts := 0
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("connection reset")
		}
		return inner(ctx, texts)
	}

	res, err := NewBatchProcessor(repos.Vectors, embedder, fastPolicy(3)).Process(context.Background(), cases)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Embedded)
	assert.Equal(t, 3, attempts)
}

func TestBatchProcessor_GivesUp(t *testing.T) {
	repos := setupRepos(t)
	cases := seedCases(t, repos, 2)
	boom := errors.New("model unavailable")
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) { return nil, boom }

	res, err := NewBatchProcessor(repos.Vectors, embedder, fastPolicy(2)).Process(context.Background(), cases)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, res.Embedded)
	assert.Equal(t, 2, embedder.CallCount())
}

func TestBatchProcessor_CountMismatch(t *testing.T) {
	repos := setupRepos(t)
	cases := seedCases(t, repos, 2)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	}

	_, err := NewBatchProcessor(repos.Vectors, embedder, fastPolicy(1)).Process(context.Background(), cases)
	assert.ErrorIs(t, err, ai.ErrBatchSizeMismatch)
}

func TestBatchProcessor_ContextCancellation(t *testing.T) {
	repos := setupRepos(t)
	cases := seedCases(t, repos, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBatchProcessor(repos.Vectors, unnormalized(), fastPolicy(3)).Process(ctx, cases)
	assert.ErrorIs(t, err, context.Canceled)
}
