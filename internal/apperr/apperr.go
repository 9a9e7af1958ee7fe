package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrForbidden indicates the caller may not perform the mutation.
	ErrForbidden = errors.New("operation not permitted")
	// ErrBadSignature indicates a webhook carried an invalid or stale signature.
	ErrBadSignature = errors.New("invalid webhook signature")
)

// ValidationError reports a malformed or unacceptable input scoped to a
// single field, so callers can surface the offending field by name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validation constructs a field-scoped validation error.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// AsValidation unwraps a ValidationError if err carries one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// ProviderError wraps a failed call to an external collaborator (identity
// provider, video host, object store). The triggering request fails; no
// retries happen at this layer.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Provider wraps err as an external-provider failure.
func Provider(provider string, err error) error {
	return &ProviderError{Provider: provider, Err: err}
}

// IsProvider reports whether err originated at an external collaborator.
func IsProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
