package matching

import (
	"context"
	"log/slog"
	"strings"

	"github.com/berdachuk/medexpertmatch/ai"
	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/resilience"
	"github.com/berdachuk/medexpertmatch/scoring"
)

// Enhancer rewrites the rationale of a ranked match. Returning an error
// keeps the template rationale.
type Enhancer interface {
	Enhance(ctx context.Context, c *core.Case, d *core.Doctor, r scoring.Ranked) (string, error)
}

// LLMEnhancer asks a text generator for a one-sentence rationale.
type LLMEnhancer struct {
	generator ai.TextGenerator
	guard     *resilience.Guard
	logger    *slog.Logger
}

var _ Enhancer = (*LLMEnhancer)(nil)

// NewLLMEnhancer creates an enhancer. guard may be nil, in which case each
// match gets a single attempt.
func NewLLMEnhancer(generator ai.TextGenerator, guard *resilience.Guard, logger *slog.Logger) *LLMEnhancer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMEnhancer{
		generator: generator,
		guard:     guard,
		logger:    logger.With("component", "rationale-enhancer"),
	}
}

// Enhance returns the model rationale, truncated to the rationale limit.
func (e *LLMEnhancer) Enhance(ctx context.Context, c *core.Case, d *core.Doctor, r scoring.Ranked) (string, error) {
	text, err := resilience.Call(ctx, e.guard, func(ctx context.Context) (string, error) {
		return e.generator.Generate(ctx, rationaleSystemPrompt, rationaleUserPrompt(c, d, r))
	})
	if err != nil {
		return "", err
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "", ai.ErrEmptyResponse
	}
	return scoring.TruncateRationale(text), nil
}
