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

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/berdachuk/medexpertmatch/ai"
	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

// ErrClientRequired is returned when no Redis client is supplied.
var ErrClientRequired = errors.New("redis client is required")

// ErrEmbedderRequired is returned when no embedder is supplied.
var ErrEmbedderRequired = errors.New("embedder is required")

const (
	defaultPrefix = "mem:emb"
	defaultTTL    = 7 * 24 * time.Hour
)

// Observer receives hit and miss counts for every lookup.
type Observer interface {
	CacheLookup(hits, misses int)
}

type noopObserver struct{}

func (noopObserver) CacheLookup(int, int) {}

// EmbeddingCache is an ai.Embedder that stores embeddings in Redis keyed
// by a content hash of the text. Redis failures are logged and fall
// through to the wrapped embedder.
type EmbeddingCache struct {
	client   *redis.Client
	embedder ai.Embedder
	prefix   string
	ttl      time.Duration
	observer Observer
	logger   *slog.Logger
}

var _ ai.Embedder = (*EmbeddingCache)(nil)

// Option configures an EmbeddingCache.
type Option func(*EmbeddingCache) error

// WithNamespace scopes keys, typically to the embedding model name, so a
// model change never serves stale vectors.
func WithNamespace(ns string) Option {
	return func(c *EmbeddingCache) error {
		if ns != "" {
			c.prefix = defaultPrefix + ":" + ns
		}
		return nil
	}
}

// WithTTL sets the entry lifetime. Zero keeps entries forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *EmbeddingCache) error {
		if ttl < 0 {
			return fmt.Errorf("ttl must be non-negative, got %s", ttl)
		}
		c.ttl = ttl
		return nil
	}
}

func WithObserver(o Observer) Option {
	return func(c *EmbeddingCache) error {
		if o == nil {
			o = noopObserver{}
		}
		c.observer = o
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *EmbeddingCache) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewEmbeddingCache wraps embedder with a Redis-backed cache.
func NewEmbeddingCache(client *redis.Client, embedder ai.Embedder, opts ...Option) (*EmbeddingCache, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	c := &EmbeddingCache{
		client:   client,
		embedder: embedder,
		prefix:   defaultPrefix,
		ttl:      defaultTTL,
		observer: noopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "embedding-cache")
	return c, nil
}

func (c *EmbeddingCache) key(text string) string {
	return fmt.Sprintf("%s:%016x", c.prefix, uint64(core.IDFromContent(text)))
}

// EmbedText returns the cached vector or embeds and stores it.
func (c *EmbeddingCache) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts looks all texts up with one MGET, embeds the misses in one
// batch and writes them back in one pipeline.
func (c *EmbeddingCache) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("cache lookup failed, embedding directly", "error", err)
		values = make([]any, len(texts))
	}
	for i, v := range values {
		if vec := decode(v); vec != nil {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
	}
	c.observer.CacheLookup(len(texts)-len(missIdx), len(missIdx))
	if len(missIdx) == 0 {
		return out, nil
	}

	missTexts := make([]string, len(missIdx))
	for j, i := range missIdx {
		missTexts[j] = texts[i]
	}
	fresh, err := c.embedder.EmbedTexts(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ai.ErrBatchSizeMismatch, len(fresh), len(missTexts))
	}

	pipe := c.client.Pipeline()
	for j, i := range missIdx {
		out[i] = fresh[j]
		pipe.Set(ctx, keys[i], storage.MarshalVector(fresh[j]), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("cache store failed", "error", err, "count", len(missIdx))
	}
	return out, nil
}

// Invalidate removes the cached vector of text.
func (c *EmbeddingCache) Invalidate(ctx context.Context, text string) error {
	return c.client.Del(ctx, c.key(text)).Err()
}

func decode(v any) []float32 {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	vec, err := storage.UnmarshalVector([]byte(s))
	if err != nil {
		return nil
	}
	return vec
}
