package resilience

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"syscall"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// OpenAI-compatible clients report HTTP failures only in the message text.
var statusPattern = regexp.MustCompile(`(?i)status(?:\s+code)?[:\s]+(\d{3})`)

// StatusCode extracts an HTTP status code from err, or returns 0.
func StatusCode(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	m := statusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	code, _ := strconv.Atoi(m[1])
	return code
}

// IsRetryable classifies err. Unknown errors are treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var perm *permanentError
	switch {
	case errors.As(err, &perm):
		return false
	case errors.Is(err, ErrAuthentication), errors.Is(err, ErrValidation):
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	switch code := StatusCode(err); {
	case code == 0:
		return true
	case code == 408 || code == 429:
		return true
	case code >= 500:
		return true
	case code >= 400:
		// 400, 401, 403, 404, 422 and the rest of the client errors.
		return false
	}
	return true
}
