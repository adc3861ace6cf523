package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/berdachuk/medexpertmatch/ai"
	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

// analysisProcessor fills urgency, ICD-10 codes and the required specialty
// of cases that arrive without them, and writes a description into the
// abstract of cases that have none.
type analysisProcessor struct {
	cases     storage.CaseRepository
	analyzer  ai.CaseAnalyzer
	describer Describer
	logger    *slog.Logger
}

var _ processor = (*analysisProcessor)(nil)

func needsAnalysis(c *core.Case) bool {
	return c.Urgency == 0 || len(c.ICD10Codes) == 0 || strings.TrimSpace(c.RequiredSpecialty) == ""
}

// process enriches each case and stores the ones that changed. A failed
// analysis of one case does not stop the others; all failures are joined.
func (ap *analysisProcessor) process(ctx context.Context, cases []*core.Case) error {
	var errs []error
	var changed []*core.Case
	for _, c := range cases {
		dirty := false
		if ap.analyzer != nil && needsAnalysis(c) {
			analysis, err := ap.analyzer.AnalyzeCase(ctx, c)
			if err != nil {
				ap.logger.Warn("case analysis failed", "case", c.ID, "err", err)
				errs = append(errs, fmt.Errorf("analyze %s: %w", c.ID, err))
			} else if analysis.Apply(c) {
				dirty = true
			}
		}
		if ap.describer != nil && strings.TrimSpace(c.Abstract) == "" {
			if text := ap.describer.Describe(ctx, c); text != "" {
				c.Abstract = text
				dirty = true
			}
		}
		if dirty {
			changed = append(changed, c)
		}
	}

	if len(changed) > 0 {
		if err := ap.cases.PutCases(ctx, changed...); err != nil {
			errs = append(errs, err)
		}
		ap.logger.Debug("cases enriched", "cases", len(changed))
	}
	return errors.Join(errs...)
}
