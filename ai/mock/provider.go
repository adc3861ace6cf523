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

package mock

import "github.com/berdachuk/medexpertmatch/ai"

// MockProvider is a test double for ai.Provider.
type MockProvider struct {
	embedder  *MockEmbedder
	generator *MockGenerator
	analyzer  *MockAnalyzer
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Use GetMockEmbedder()/GetMockGenerator()/GetMockAnalyzer() to access
// concrete types for test assertions.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		embedder:  NewMockEmbedder(),
		generator: NewMockGenerator(),
		analyzer:  NewMockAnalyzer(),
	}
}

var _ ai.Provider = (*MockProvider)(nil)

func (p *MockProvider) Embedder() ai.Embedder       { return p.embedder }
func (p *MockProvider) Generator() ai.TextGenerator { return p.generator }
func (p *MockProvider) Analyzer() ai.CaseAnalyzer   { return p.analyzer }

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockGenerator returns the underlying mock generator for test assertions.
func (p *MockProvider) GetMockGenerator() *MockGenerator {
	return p.generator
}

// GetMockAnalyzer returns the underlying mock analyzer for test assertions.
func (p *MockProvider) GetMockAnalyzer() *MockAnalyzer {
	return p.analyzer
}
