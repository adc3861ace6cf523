package medexpertmatch

import "errors"

var (
	// ErrConfigRequired is returned by Open without a configuration.
	ErrConfigRequired = errors.New("configuration is required")

	// ErrModelsDisabled is returned by the engine's embedder when models are
	// turned off and a case has no stored vector.
	ErrModelsDisabled = errors.New("models are disabled")

	// ErrClosed is returned when the engine is used after Close.
	ErrClosed = errors.New("engine is closed")
)
