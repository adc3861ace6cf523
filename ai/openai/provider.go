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
	"log/slog"

	"github.com/berdachuk/medexpertmatch/ai"
)

// Provider bundles the embedder, the chat generator and the case analyzer.
// Generator and analyzer share one chat client.
type Provider struct {
	embedder  *Embedder
	generator *Generator
	analyzer  *CaseAnalyzer
	logger    *slog.Logger
}

// NewProvider validates config and creates every model-backed service.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}
	chat, err := newChatModel(config)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		embedder:  embedder,
		generator: newGeneratorWithModel(chat, config.Temperature),
		analyzer:  newCaseAnalyzerWithModel(chat),
		logger: slog.Default().With("component", "openai-provider",
			"embeddingModel", config.EmbeddingModel, "chatModel", config.ChatModel),
	}
	p.logger.Debug("model provider ready", "embeddingHost", config.EmbeddingHost, "chatHost", config.ChatHost)
	return p, nil
}

func (p *Provider) Embedder() ai.Embedder       { return p.embedder }
func (p *Provider) Generator() ai.TextGenerator { return p.generator }
func (p *Provider) Analyzer() ai.CaseAnalyzer   { return p.analyzer }

// Close is a no-op; the HTTP clients hold no resources that need releasing.
func (p *Provider) Close() error {
	p.logger.Debug("closing model provider")
	return nil
}
