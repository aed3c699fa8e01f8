package inventory

import (
	"errors"
	"fmt"
)

// ErrUnsupported is wrapped by providers that have no equivalent of an
// operation (for example a storage plane on Kubernetes).
var ErrUnsupported = errors.New("operation not supported by provider")

// AuthError means a session could not be established or switched.
// It is the only error class allowed to terminate a run.
type AuthError struct {
	Provider string
	Op       string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ProviderError means a single inventory or mutation call failed.
// Resource identifies the account, rule or container concerned.
type ProviderError struct {
	Op       string
	Resource string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Resource, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewAuthError wraps err as an *AuthError.
func NewAuthError(provider, op string, err error) error {
	return &AuthError{Provider: provider, Op: op, Err: err}
}

// NewProviderError wraps err as a *ProviderError.
func NewProviderError(op, resource string, err error) error {
	return &ProviderError{Op: op, Resource: resource, Err: err}
}

// IsAuthError reports whether err is or wraps an *AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
