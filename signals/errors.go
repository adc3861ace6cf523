package signals

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceNotConfigured marks a signal source that was never wired.
	ErrSourceNotConfigured = errors.New("signal source not configured")

	// ErrEmbedderRequired is returned when an embedding adapter has no embedder.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrVectorIndexRequired is returned when an embedding adapter has no vector index.
	ErrVectorIndexRequired = errors.New("vector index required")

	// ErrEmptyCaseText is returned when a case has no text to embed.
	ErrEmptyCaseText = errors.New("case has no text to embed")
)

// ProviderUnavailableError reports that one signal source failed or timed out
// for a case. It degrades that signal only.
type ProviderUnavailableError struct {
	Provider string
	CaseID   string
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("signal provider %s unavailable for case %s: %v", e.Provider, e.CaseID, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }
