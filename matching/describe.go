package matching

import (
	"context"
	"log/slog"
	"strings"

	"github.com/berdachuk/medexpertmatch/ai"
	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/resilience"
)

// FallbackDescription renders the deterministic case summary used when no
// model is configured or every model call failed. Empty fields are skipped.
func FallbackDescription(c *core.Case) string {
	if c == nil {
		return ""
	}
	var parts []string
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			parts = append(parts, label+": "+value)
		}
	}
	add("Chief Complaint", c.ChiefComplaint)
	add("Symptoms", c.Symptoms)
	add("Diagnosis", c.CurrentDiagnosis)
	add("ICD-10", strings.Join(c.ICD10Codes, ", "))
	add("Specialty", c.RequiredSpecialty)
	return strings.Join(parts, ". ")
}

// DescriptionGenerator produces the case text that is embedded and indexed.
type DescriptionGenerator struct {
	generator ai.TextGenerator
	guard     *resilience.Guard
	logger    *slog.Logger
}

// DescriptionOption configures a DescriptionGenerator.
type DescriptionOption func(*DescriptionGenerator) error

// WithGenerator sets the model used to enhance descriptions.
// Without one every description is the fallback template.
func WithGenerator(g ai.TextGenerator) DescriptionOption {
	return func(d *DescriptionGenerator) error {
		d.generator = g
		return nil
	}
}

// WithDescriptionGuard sets the rate limit and retry policy of model calls.
func WithDescriptionGuard(g *resilience.Guard) DescriptionOption {
	return func(d *DescriptionGenerator) error {
		d.guard = g
		return nil
	}
}

// WithDescriptionLogger sets a custom logger.
// Default is slog.Default().
func WithDescriptionLogger(logger *slog.Logger) DescriptionOption {
	return func(d *DescriptionGenerator) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// NewDescriptionGenerator creates a description generator.
func NewDescriptionGenerator(opts ...DescriptionOption) (*DescriptionGenerator, error) {
	d := &DescriptionGenerator{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	d.logger = d.logger.With("component", "case-description")
	return d, nil
}

// Describe returns the case abstract when present, otherwise a model-written
// summary, otherwise FallbackDescription. It never fails.
func (d *DescriptionGenerator) Describe(ctx context.Context, c *core.Case) string {
	if c == nil {
		return ""
	}
	if abstract := strings.TrimSpace(c.Abstract); abstract != "" {
		return abstract
	}
	fallback := func() string { return FallbackDescription(c) }
	if d.generator == nil {
		return fallback()
	}

	text, usedFallback := resilience.CallWithFallback(ctx, d.guard, func(ctx context.Context) (string, error) {
		out, err := d.generator.Generate(ctx, describeSystemPrompt, describeUserPrompt(c))
		if err != nil {
			return "", err
		}
		if out = strings.TrimSpace(out); out == "" {
			return "", ai.ErrEmptyResponse
		}
		return out, nil
	}, fallback)
	if usedFallback {
		d.logger.Info("using template description", "case", c.ID)
	}
	return text
}
