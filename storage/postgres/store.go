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

package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/berdachuk/medexpertmatch/storage"
)

//go:embed schema.sql
var schema string

// Store owns a PostgreSQL connection pool and hands out repositories on it.
type Store struct {
	db       *sql.DB
	logger   *slog.Logger
	maxConns int
	ownsDB   bool
}

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMaxConns caps open connections. Only applies to Open.
func WithMaxConns(n int) Option {
	return func(s *Store) error {
		if n < 0 {
			return fmt.Errorf("max connections must be non-negative, got %d", n)
		}
		s.maxConns = n
		return nil
	}
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s, err := New(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	if s.maxConns > 0 {
		db.SetMaxOpenConns(s.maxConns)
		db.SetMaxIdleConns(s.maxConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return s, nil
}

// New wraps an existing pool. The caller keeps ownership of db.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "postgres")
	return s, nil
}

// Migrate creates the schema if it does not exist. It requires the
// pgvector extension to be installable.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	s.logger.Info("schema applied")
	return nil
}

// Repositories returns every repository backed by this store. Closing the
// result closes the store.
func (s *Store) Repositories() *storage.Repositories {
	return storage.NewRepositories(
		NewDoctorRepository(s.db),
		NewCaseRepository(s.db),
		NewExperienceRepository(s.db),
		NewFacilityRepository(s.db),
		NewMatchRepository(s.db, WithMatchLogger(s.logger)),
		NewVectorIndex(s.db),
		s.Close,
	)
}

// Lexical returns the full-text keyword scorer.
func (s *Store) Lexical() *LexicalIndex {
	return NewLexicalIndex(s.db)
}

// Close closes the pool if Open created it.
func (s *Store) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func timeOf(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
