package scoring

import (
	"errors"
	"fmt"
)

// ErrInvalidThreshold is returned for a notable threshold outside [0,1].
var ErrInvalidThreshold = errors.New("notable threshold must be within [0,1]")

// FusionConfigError reports misconfigured weights. It is raised once at
// startup and never per request.
type FusionConfigError struct {
	Field  string
	Reason string
}

func (e *FusionConfigError) Error() string {
	if e.Field == "" {
		return "fusion config: " + e.Reason
	}
	return fmt.Sprintf("fusion config: %s %s", e.Field, e.Reason)
}
