// Package cache provides a Redis-backed embedding cache.
//
// EmbeddingCache wraps any ai.Embedder. Case text that was embedded once
// is served from Redis afterwards, which keeps repeated matching of the
// same case off the embedding service.
package cache
