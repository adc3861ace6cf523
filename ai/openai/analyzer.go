// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/berdachuk/medexpertmatch/ai"
	"github.com/berdachuk/medexpertmatch/core"
)

// parseAttempts is how many times a malformed JSON answer is re-requested.
const parseAttempts = 3

var icd10Pattern = regexp.MustCompile(`^[A-Z][0-9][0-9A-Z](\.[0-9A-Z]{1,4})?$`)

// CaseAnalyzer implements ai.CaseAnalyzer using OpenAI-compatible chat APIs.
type CaseAnalyzer struct {
	client llms.Model
	logger *slog.Logger
}

// analysis is the wrapper structure for the model's JSON response.
type analysis struct {
	Urgency    string   `json:"urgency"`
	ICD10Codes []string `json:"icd10_codes"`
	Specialty  string   `json:"specialty"`
}

func newCaseAnalyzer(config *ai.Config) (*CaseAnalyzer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client, err := newChatModel(config)
	if err != nil {
		return nil, err
	}
	return newCaseAnalyzerWithModel(client), nil
}

func newCaseAnalyzerWithModel(client llms.Model) *CaseAnalyzer {
	return &CaseAnalyzer{
		client: client,
		logger: slog.Default().With("component", "openai-case-analyzer"),
	}
}

// NewCaseAnalyzer creates a case analyzer from the configuration.
func NewCaseAnalyzer(config *ai.Config) (ai.CaseAnalyzer, error) {
	return newCaseAnalyzer(config)
}

// AnalyzeCase asks the model for urgency, ICD-10 codes and specialty.
// Malformed JSON is re-requested up to three times. Transport errors are
// returned immediately so a surrounding guard can apply its retry policy.
func (a *CaseAnalyzer) AnalyzeCase(ctx context.Context, c *core.Case) (*ai.CaseAnalysis, error) {
	content := chatMessages(buildAnalysisSystemPrompt(), buildAnalysisUserPrompt(c))

	var lastErr error
	for attempt := 0; attempt < parseAttempts; attempt++ {
		response, err := a.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			a.logger.Error("failed to generate content", "case", c.ID, "attempt", attempt+1, "err", err)
			return nil, err
		}
		if len(response.Choices) < 1 {
			return &ai.CaseAnalysis{}, nil
		}

		result, err := parseAnalysis(response.Choices[0].Content)
		if err != nil {
			lastErr = err
			a.logger.Warn("error parsing case analysis response",
				"case", c.ID,
				"attempt", attempt+1,
				"err", err)
			continue
		}
		a.logger.Debug("analyzed case",
			"case", c.ID,
			"urgency", result.Urgency,
			"codes", len(result.ICD10Codes),
			"specialty", result.Specialty)
		return result, nil
	}

	a.logger.Error("failed to parse case analysis after retries", "case", c.ID, "err", lastErr)
	return nil, lastErr
}

// parseAnalysis decodes a model answer. Unknown urgency values and codes
// that do not look like ICD-10 are dropped rather than failing the parse.
func parseAnalysis(text string) (*ai.CaseAnalysis, error) {
	text = repairJSON(extractJSONObject(stripCodeFences(text)))

	var raw analysis
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, err
	}

	out := &ai.CaseAnalysis{Specialty: strings.TrimSpace(raw.Specialty)}
	if u, err := core.ParseUrgencyLevel(raw.Urgency); err == nil {
		out.Urgency = u
	}
	seen := make(map[string]bool, len(raw.ICD10Codes))
	for _, code := range raw.ICD10Codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if icd10Pattern.MatchString(code) && !seen[code] {
			seen[code] = true
			out.ICD10Codes = append(out.ICD10Codes, code)
		}
	}
	return out, nil
}
