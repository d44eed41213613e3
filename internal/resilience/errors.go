package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a source failure so the orchestrator can pattern-match
// without depending on concrete error types.
type Kind int

const (
	KindTransient Kind = iota
	KindNonRetryable
	KindCircuitOpen
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindNonRetryable:
		return "non_retryable"
	case KindCircuitOpen:
		return "circuit_open"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error tags an underlying source failure with its kind and origin.
type Error struct {
	Kind   Kind
	Source string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("source %s: %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("source %s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatusError carries a non-2xx upstream response for classification.
type HTTPStatusError struct {
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("upstream returned %s", e.Status)
	}
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// KindOf resolves the failure kind of any error produced along the fetch
// path. HTTP 429 and 5xx are transient, other 4xx are not; exceeded
// deadlines and cancellations surface as timeouts.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}

	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return KindTransient
		case httpErr.StatusCode >= 500:
			return KindTransient
		case httpErr.StatusCode >= 400:
			return KindNonRetryable
		}
	}

	return KindTransient
}

// Retryable reports whether another attempt against the source makes sense.
func Retryable(err error) bool {
	return KindOf(err) == KindTransient
}
