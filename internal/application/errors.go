package application

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced resource or task does not exist.
	ErrNotFound = errors.New("application: not found")
)

// ValidationError captures field level validation issues that callers can
// surface to users. Validation failures never cause mutations.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(v.FieldErrors))
	for field, msg := range v.FieldErrors {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// NotFoundError names the specific identifiers a lookup could not resolve.
type NotFoundError struct {
	Kind string
	IDs  []int64
}

// Error implements the error interface.
func (n *NotFoundError) Error() string {
	if n == nil {
		return ErrNotFound.Error()
	}
	ids := make([]string, 0, len(n.IDs))
	for _, id := range n.IDs {
		ids = append(ids, fmt.Sprintf("%d", id))
	}
	return fmt.Sprintf("%ss not found: %s", n.Kind, strings.Join(ids, ", "))
}

// Is lets errors.Is(err, ErrNotFound) match typed not-found errors.
func (n *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// TransportErrorKind distinguishes why the scheduling service was unreachable.
type TransportErrorKind string

const (
	TransportTimeout    TransportErrorKind = "timeout"
	TransportConnection TransportErrorKind = "connection"
	TransportOther      TransportErrorKind = "other"
)

// TransportError reports a failure to reach the scheduling service. Timeout
// and connection failures are eligible for degraded-mode handling; other
// kinds propagate.
type TransportError struct {
	Kind TransportErrorKind
	Err  error
}

// Error implements the error interface.
func (t *TransportError) Error() string {
	if t == nil {
		return "transport error"
	}
	return fmt.Sprintf("scheduling service unreachable (%s): %v", t.Kind, t.Err)
}

// Unwrap exposes the underlying cause.
func (t *TransportError) Unwrap() error {
	if t == nil {
		return nil
	}
	return t.Err
}

// Degradable reports whether the failure may be tolerated in degraded mode.
func (t *TransportError) Degradable() bool {
	return t != nil && (t.Kind == TransportTimeout || t.Kind == TransportConnection)
}

// ErrorKind maps sentinel and typed errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrNotFound) {
		return "not_found"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	var tErr *TransportError
	if errors.As(err, &tErr) {
		return "transport_" + string(tErr.Kind)
	}

	return "unexpected"
}
