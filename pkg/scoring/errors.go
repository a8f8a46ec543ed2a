package scoring

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrCircuitOpen is returned without any network I/O while a backend's
	// circuit is open.
	ErrCircuitOpen = errors.New("scoring backend unavailable: circuit open")
	// ErrValidation marks a 4xx-style rejection. The request is the caller's
	// fault and is never retried.
	ErrValidation = errors.New("scoring request rejected")
	// ErrTransient marks a retryable backend failure (5xx, connection
	// errors).
	ErrTransient = errors.New("transient scoring backend error")
)

// APIError carries the HTTP status and body of a non-2xx backend response.
type APIError struct {
	Backend string
	Status  int
	Body    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %s returned status %d: %s", e.Backend, e.Status, e.Body)
}

// Unwrap classifies the status into the retry taxonomy.
func (e *APIError) Unwrap() error {
	if e.Status >= 400 && e.Status < 500 {
		return ErrValidation
	}
	return ErrTransient
}

// retryable reports whether the error is worth another attempt within the
// retry budget. Timeouts and transient failures qualify; validation
// rejections and open circuits do not.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrValidation) {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// failureReason labels an error for metrics.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrTransient):
		return "http"
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}
}
