package openai

import (
	"fmt"
	"strings"

	"github.com/berdachuk/medexpertmatch/core"
)

const analysisResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "urgency": {
      "type": "string",
      "enum": ["LOW", "MEDIUM", "HIGH", "CRITICAL"]
    },
    "icd10_codes": {
      "type": "array",
      "items": {"type": "string", "pattern": "^[A-Z][0-9][0-9A-Z](\\.[0-9A-Z]{1,4})?$"}
    },
    "specialty": {
      "type": "string"
    }
  },
  "required": ["urgency", "icd10_codes", "specialty"],
  "additionalProperties": false
}`

const analysisPromptTemplate = `You are a clinical triage assistant. Analyze the medical case and return JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- urgency is one of LOW, MEDIUM, HIGH, CRITICAL. CRITICAL means life-threatening and time-sensitive.
- icd10_codes lists the most likely ICD-10-CM codes, most likely first, at most 5.
- specialty is the single medical specialty best suited to consult on the case, in title case.
- Use only what the case states or clearly implies. Do not hallucinate.
- If a field cannot be determined use "MEDIUM", [] or "" respectively.

Example:
Input: "Chief complaint: crushing chest pain radiating to left arm. Symptoms: diaphoresis, nausea. Diagnosis: suspected STEMI."
Output:
{"urgency":"CRITICAL","icd10_codes":["I21.9"],"specialty":"Cardiology"}`

// buildAnalysisSystemPrompt creates the system prompt with the schema embedded.
func buildAnalysisSystemPrompt() string {
	return fmt.Sprintf(analysisPromptTemplate, analysisResponseSchema)
}

// buildAnalysisUserPrompt renders the case fields the model needs.
func buildAnalysisUserPrompt(c *core.Case) string {
	var b strings.Builder
	field := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	field("Chief complaint", c.ChiefComplaint)
	field("Symptoms", c.Symptoms)
	field("Diagnosis", c.CurrentDiagnosis)
	field("ICD-10 codes", strings.Join(c.ICD10Codes, ", "))
	field("Additional notes", c.AdditionalNotes)
	if c.PatientAge > 0 {
		fmt.Fprintf(&b, "Patient age: %d\n", c.PatientAge)
	}
	return strings.TrimSpace(b.String())
}
