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

// Package resilience wraps calls to slow or unreliable services.
//
// A Guard combines a Limiter (bounded in-flight calls plus an optional
// requests-per-second budget) with a retry Policy (bounded attempts and
// exponential backoff). Errors are classified before retrying: authentication
// and validation failures are returned immediately, transient network, 5xx
// and timeout failures are retried.
//
//	guard, err := resilience.NewGuard("chat",
//	    resilience.WithLimiter(resilience.NewLimiter(4, 2, 1)),
//	    resilience.WithPolicy(resilience.DefaultPolicy()),
//	)
//	text, usedFallback := resilience.CallWithFallback(ctx, guard,
//	    func(ctx context.Context) (string, error) { return llm.Generate(ctx, prompt) },
//	    func() string { return template },
//	)
package resilience
