package ai_test

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

func testGuard(t *testing.T) *resilience.Guard {
	t.Helper()
	g, err := resilience.NewGuard("test", resilience.WithPolicy(resilience.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Multiplier:  2,
		MaxDelay:    5 * time.Millisecond,
	}))
	require.NoError(t, err)
	return g
}

func TestGuardedEmbedder_RetriesTransientFailures(t *testing.T) {
	inner := mock.NewMockEmbedder()
	calls := 0
	inner.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("status code: 503")
		}
		return []float32{1, 0}, nil
	}

	e, err := ai.NewGuardedEmbedder(inner, testGuard(t))
	require.NoError(t, err)

	vec, err := e.EmbedText(context.Background(), "chest pain")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
	assert.Equal(t, 3, inner.CallCount())
}

func TestGuardedEmbedder_BatchSizeMismatchIsPermanent(t *testing.T) {
	inner := mock.NewMockEmbedder()
	inner.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}

	e, err := ai.NewGuardedEmbedder(inner, testGuard(t))
	require.NoError(t, err)

	_, err = e.EmbedTexts(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ai.ErrBatchSizeMismatch)
	assert.Equal(t, 1, inner.CallCount(), "a malformed response is not retried")
}

func TestGuardedGenerator_AuthFailureNotRetried(t *testing.T) {
	inner := mock.NewMockGenerator()
	inner.GenerateFunc = func(ctx context.Context, system, prompt string) (string, error) {
		return "", errors.New("status code: 401")
	}

	g, err := ai.NewGuardedGenerator(inner, testGuard(t))
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "sys", "prompt")
	assert.Error(t, err)
	assert.Equal(t, 1, inner.CallCount())
}

func TestGuardedAnalyzer_PassesThrough(t *testing.T) {
	inner := mock.NewMockAnalyzer()
	inner.AnalyzeCaseFunc = func(ctx context.Context, c *core.Case) (*ai.CaseAnalysis, error) {
		return &ai.CaseAnalysis{Urgency: core.UrgencyHigh}, nil
	}

	a, err := ai.NewGuardedAnalyzer(inner, testGuard(t))
	require.NoError(t, err)

	got, err := a.AnalyzeCase(context.Background(), &core.Case{ID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, core.UrgencyHigh, got.Urgency)
}

func TestNewGuarded_RequiresGuard(t *testing.T) {
	_, err := ai.NewGuardedEmbedder(mock.NewMockEmbedder(), nil)
	assert.ErrorIs(t, err, ai.ErrGuardRequired)
	_, err = ai.NewGuardedGenerator(mock.NewMockGenerator(), nil)
	assert.ErrorIs(t, err, ai.ErrGuardRequired)
	_, err = ai.NewGuardedAnalyzer(mock.NewMockAnalyzer(), nil)
	assert.ErrorIs(t, err, ai.ErrGuardRequired)
}

func TestCaseAnalysis_Apply(t *testing.T) {
	c := &core.Case{ID: "c1", RequiredSpecialty: "Cardiology"}
	a := &ai.CaseAnalysis{Urgency: core.UrgencyCritical, ICD10Codes: []string{"I21.9"}, Specialty: "Neurology"}

	assert.True(t, a.Apply(c))
	assert.Equal(t, core.UrgencyCritical, c.Urgency)
	assert.Equal(t, []string{"I21.9"}, c.ICD10Codes)
	assert.Equal(t, "Cardiology", c.RequiredSpecialty, "existing fields win")

	assert.False(t, a.Apply(c), "nothing left to fill")
}
