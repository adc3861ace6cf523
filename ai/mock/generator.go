package mock

import (
	"context"
	"sync/atomic"

	"github.com/berdachuk/medexpertmatch/ai"
	"github.com/berdachuk/medexpertmatch/core"
)

// MockGenerator is a test double for ai.TextGenerator.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, the prompt is returned unchanged.
	GenerateFunc func(ctx context.Context, system, prompt string) (string, error)

	callCount atomic.Int64
}

var _ ai.TextGenerator = (*MockGenerator)(nil)

// NewMockGenerator creates a mock generator that echoes prompts.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

func (m *MockGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	m.callCount.Add(1)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, system, prompt)
	}
	return prompt, nil
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected behavior.
func (m *MockGenerator) Reset() {
	m.callCount.Store(0)
	m.GenerateFunc = nil
}

// MockAnalyzer is a test double for ai.CaseAnalyzer.
type MockAnalyzer struct {
	// AnalyzeCaseFunc is called by AnalyzeCase if set.
	// If nil, an empty analysis is returned.
	AnalyzeCaseFunc func(ctx context.Context, c *core.Case) (*ai.CaseAnalysis, error)

	callCount atomic.Int64
}

var _ ai.CaseAnalyzer = (*MockAnalyzer)(nil)

// NewMockAnalyzer creates a mock analyzer.
func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{}
}

func (m *MockAnalyzer) AnalyzeCase(ctx context.Context, c *core.Case) (*ai.CaseAnalysis, error) {
	m.callCount.Add(1)
	if m.AnalyzeCaseFunc != nil {
		return m.AnalyzeCaseFunc(ctx, c)
	}
	return &ai.CaseAnalysis{}, nil
}

// CallCount returns the number of AnalyzeCase calls.
func (m *MockAnalyzer) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected behavior.
func (m *MockAnalyzer) Reset() {
	m.callCount.Store(0)
	m.AnalyzeCaseFunc = nil
}
