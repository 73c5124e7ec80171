package transfer

import (
	"errors"
	"fmt"
)

// AuthError means a platform login failed. Job creation is refused and
// running items fail without retry.
type AuthError struct {
	Platform string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v", e.Platform, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix (4xx rejections,
// unusable payloads).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps an error as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsRetryable reports whether the item should be re-attempted. Network and
// unclassified failures retry; auth and permanent failures do not.
func IsRetryable(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return false
	}
	var permErr *PermanentError
	return !errors.As(err, &permErr)
}
