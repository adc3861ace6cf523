package graph

import (
	"context"
	"errors"
)

var (
	// ErrGraphNotFound is returned when the configured graph does not exist.
	ErrGraphNotFound = errors.New("graph does not exist")

	// ErrProviderRequired is returned when a CypherSource has no provider.
	ErrProviderRequired = errors.New("graph provider required")

	// ErrUnknownNode is returned when an edge references a node that was never added.
	ErrUnknownNode = errors.New("unknown graph node")
)

// Provider runs Cypher-style statements against a property graph.
// Implementations must be safe for concurrent use.
type Provider interface {
	// GraphExists reports whether the configured graph has been created.
	GraphExists(ctx context.Context) (bool, error)

	// Query runs statement with params bound by name ($name) and returns one
	// property map per row, keyed by the RETURN aliases.
	Query(ctx context.Context, statement string, params map[string]any) ([]map[string]any, error)
}

// Writer receives nodes and edges while a graph is being built.
type Writer interface {
	UpsertNode(ctx context.Context, label, id string, props map[string]any) error
	UpsertEdge(ctx context.Context, fromLabel, fromID, rel, toLabel, toID string) error
}
