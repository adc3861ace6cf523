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

// Package ai provides abstractions for the model services used by the matcher.
//
// # Interfaces
//
//   - Embedder: vector embeddings of case text
//   - TextGenerator: free text from a system and user prompt, used for case
//     descriptions and match rationales
//   - CaseAnalyzer: urgency, ICD-10 codes and specialty inferred from case text
//   - Provider: aggregates the three for initialization and shutdown
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs through langchaingo
//   - ai/mock: test doubles with injectable behavior and call counters
//
// Remote calls are usually wrapped with GuardedEmbedder, GuardedGenerator and
// GuardedAnalyzer so they share one concurrency limit and retry policy.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	guard, _ := resilience.NewGuard("llm", resilience.WithLimiter(resilience.NewLimiter(4, 0, 0)))
//	embedder, _ := ai.NewGuardedEmbedder(provider.Embedder(), guard)
//	vec, err := embedder.EmbedText(ctx, "acute chest pain radiating to left arm")
package ai
