package remediation

import (
	"errors"
	"fmt"
)

// ErrNotConfirmed is returned when a gated action was requested without the
// exact confirmation token. No mutating call has been made.
var ErrNotConfirmed = errors.New("confirmation token did not match; no changes made")

// ErrAborted is returned when the operator ends input before the run
// reaches Done.
var ErrAborted = errors.New("remediation aborted by operator")

// ValidationError means operator input did not match an expected choice.
// The flow re-prompts on it.
type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Input, e.Reason)
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
