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

// Package search provides the in-memory keyword signal.
//
// Index holds one document per doctor built from the doctor's profile and
// the text of the cases the doctor treated. A case is scored against each
// candidate with Okapi BM25, plus a fixed boost when the doctor document
// contains every query term verbatim.
//
// Scores are raw and unbounded; the scoring package min-max normalizes
// them across the candidate set.
package search
