package resilience

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when a policy allows no attempts.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than 0")

	// ErrInvalidDelay is returned for negative delays or a multiplier below 1.
	ErrInvalidDelay = errors.New("invalid backoff delay configuration")

	// ErrAuthentication marks failures caused by rejected credentials. Never retried.
	ErrAuthentication = errors.New("authentication failed")

	// ErrValidation marks failures caused by a malformed request. Never retried.
	ErrValidation = errors.New("request validation failed")

	// ErrGuardNameRequired is returned by NewGuard for an empty name.
	ErrGuardNameRequired = errors.New("guard name is required")
)
