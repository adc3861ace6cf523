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

// Package scoring turns collected signals into ranked results.
//
// The pipeline has three stages shared by doctor matching, queue priority and
// facility routing:
//
//   - normalize: map each raw signal onto [0,1], preserving order
//   - fuse: weighted mean over the signals actually present, clamped to [0,1]
//   - rank: deterministic sort, dedupe, truncate and dense 1-based ranks
//
// Everything here is pure computation. No function performs I/O or holds
// state between calls, so all of it is safe for concurrent use.
package scoring
