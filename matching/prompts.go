package matching

import (
	"fmt"
	"strings"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/scoring"
)

const describeSystemPrompt = `You are a clinical documentation assistant. Rewrite the medical case below as one
concise clinical summary paragraph suitable for matching the case to a specialist.

Rules:
- Use only the facts given. Do not add findings, tests or diagnoses.
- Keep medical terminology and ICD-10 codes exactly as written.
- Output the paragraph only, with no heading or preamble.`

const rationaleSystemPrompt = `You explain why a specialist was matched to a medical case.
Write one sentence of at most 200 characters for a referring clinician.

Rules:
- Use only the evidence listed. Do not invent credentials or outcomes.
- Mention the specialty when it is relevant.
- Output the sentence only.`

const notSpecified = "Not specified"

func orNotSpecified(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return notSpecified
	}
	return s
}

func describeUserPrompt(c *core.Case) string {
	codes := notSpecified
	if len(c.ICD10Codes) > 0 {
		codes = strings.Join(c.ICD10Codes, ", ")
	}
	return fmt.Sprintf("Chief complaint: %s\nSymptoms: %s\nCurrent diagnosis: %s\nICD-10 codes: %s\nRequired specialty: %s",
		orNotSpecified(c.ChiefComplaint), orNotSpecified(c.Symptoms), orNotSpecified(c.CurrentDiagnosis),
		codes, orNotSpecified(c.RequiredSpecialty))
}

func rationaleUserPrompt(c *core.Case, d *core.Doctor, r scoring.Ranked) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Case: %s\n", FallbackDescription(c))
	if d != nil {
		fmt.Fprintf(&b, "Doctor: %s (%s)\n", orNotSpecified(d.Name), strings.Join(d.Specialties, ", "))
	}
	fmt.Fprintf(&b, "Match score: %.2f, rank %d\n", r.Fused.Score, r.Rank)
	fmt.Fprintf(&b, "Evidence: %s", r.Fused.Rationale)
	return b.String()
}
