package ai

import (
	"strings"

	"github.com/berdachuk/medexpertmatch/core"
)

// CaseAnalysis is the structured result of analyzing a case.
type CaseAnalysis struct {
	Urgency    core.UrgencyLevel
	ICD10Codes []string
	Specialty  string
}

// Apply fills the fields of c that are empty with the analysis results.
// Fields already set on the case win. Reports whether c changed.
func (a *CaseAnalysis) Apply(c *core.Case) bool {
	if a == nil || c == nil {
		return false
	}
	changed := false
	if c.Urgency == 0 && a.Urgency != 0 {
		c.Urgency = a.Urgency
		changed = true
	}
	if len(c.ICD10Codes) == 0 && len(a.ICD10Codes) > 0 {
		c.ICD10Codes = append([]string(nil), a.ICD10Codes...)
		changed = true
	}
	if strings.TrimSpace(c.RequiredSpecialty) == "" && a.Specialty != "" {
		c.RequiredSpecialty = a.Specialty
		changed = true
	}
	return changed
}
