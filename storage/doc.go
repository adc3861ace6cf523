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

// Package storage defines the repositories the matching engine reads
// doctors, cases, experience and facilities from, and writes consultation
// matches to.
//
// Two backends implement these interfaces:
//
//   - storage/badger: embedded BadgerDB, also used in-memory by tests
//   - storage/postgres: PostgreSQL with pgvector for case embeddings
//
// Backends are bundled into a *Repositories value:
//
//	repos, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repos.Close()
//
// # Match persistence
//
// MatchRepository.ReplaceForCase is the only write path used by matching.
// It removes a case's previous matches and writes the new ones in one
// transaction, so readers see either the old set or the new set.
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use.
package storage
