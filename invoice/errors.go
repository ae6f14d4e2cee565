package invoice

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound dostawca potwierdził brak zasobu.
	ErrNotFound = errors.New("invoice not found")
	// ErrUnauthorized ogólny marker dla 401
	ErrUnauthorized = errors.New("provider unauthorized")
	// ErrInvalidTransition status faktury nie pozwala na żądaną operację.
	ErrInvalidTransition = errors.New("invalid invoice status transition")
)

// AuthenticationError token acquisition or refresh failed. Fatal for the
// current call, the next call authenticates again.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("authentication failed: %s", e.Reason)
	}
	return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// ValidationError malformed request detected before any network call.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ErrorDetail pojedynczy wpis z tablicy "errors" odpowiedzi JSON:API.
type ErrorDetail struct {
	Title  string
	Detail string
	Source string
}

func (d ErrorDetail) String() string {
	switch {
	case d.Source != "" && d.Detail != "":
		return fmt.Sprintf("%s: %s", d.Source, d.Detail)
	case d.Detail != "":
		return d.Detail
	default:
		return d.Title
	}
}

// ProviderRequestError non-2xx or malformed response for a given operation.
type ProviderRequestError struct {
	Op         string
	StatusCode int
	Message    string
	Details    []ErrorDetail
	Body       []byte // fragment body, do diagnostyki
}

func (e *ProviderRequestError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if len(e.Details) > 0 {
		parts := make([]string, 0, len(e.Details))
		for _, d := range e.Details {
			parts = append(parts, d.String())
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return fmt.Sprintf("%s: provider returned http status %d: %s", e.Op, e.StatusCode, msg)
}

// Is pozwala na errors.Is(err, ErrNotFound) / errors.Is(err, ErrUnauthorized).
func (e *ProviderRequestError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// TransportError network or timeout failure; the provider never answered.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsRetryable reports whether repeating the same idempotent call may succeed.
// Caller cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var pe *ProviderRequestError
	if errors.As(err, &pe) {
		return pe.StatusCode == http.StatusTooManyRequests || pe.StatusCode >= http.StatusInternalServerError
	}
	return false
}
