package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError wraps an error that is safe to retry.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// PermanentError wraps an error that must not be retried, such as a
// rejected request.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not retryable. Nil stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsTransient reports whether err is an explicit TransientError or looks like
// a network hiccup.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsRetryable is the default retry check. Reasoning failures are usually
// malformed or flaky answers, so everything is retried except permanent
// errors, open circuits and caller cancellation.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsTransient(err) {
		return true
	}
	var pe *PermanentError
	switch {
	case errors.As(err, &pe):
		return false
	case errors.Is(err, ErrCircuitOpen):
		return false
	case errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// IsTransientHTTPStatus reports whether an HTTP status is worth retrying.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504, 529:
		return true
	default:
		return false
	}
}
