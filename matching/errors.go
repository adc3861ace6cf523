package matching

import "errors"

var (
	// ErrNoCandidates is returned by Result.Err when no doctor passed the
	// hard filters. Match itself reports this through Result.NoCandidates.
	ErrNoCandidates = errors.New("no candidate passed the hard filters")

	// ErrCaseRequired is returned when a nil case is passed.
	ErrCaseRequired = errors.New("case is required")

	// ErrRepositoriesRequired is returned when a component is built without storage.
	ErrRepositoriesRequired = errors.New("repositories are required")

	// ErrCollectorRequired is returned when a Matcher has no signal collector.
	ErrCollectorRequired = errors.New("signal collector is required")

	// ErrInvalidOptions is returned for out-of-range match or routing options.
	ErrInvalidOptions = errors.New("invalid options")
)
