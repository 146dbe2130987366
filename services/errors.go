package services

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrParentNotFound     = errors.New("parent task not found")
	ErrSettingsNotFound   = errors.New("settings not found")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrResourceExists     = errors.New("resource already exists")
	ErrValidation         = errors.New("validation error")
)

// ValidationError reports the first rule a field broke. It matches ErrValidation
// under errors.Is.
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: failed %s", e.Field, e.Rule)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// BackendError wraps a failure of the store. Its message is the store's message,
// unchanged.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string {
	return e.Err.Error()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func backendError(err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Err: err}
}

// IsNotFound reports whether err means the requested record does not exist for the
// current user
func IsNotFound(err error) bool {
	for _, target := range []error{ErrNotFound, ErrUserNotFound, ErrTaskNotFound, ErrParentNotFound, ErrSettingsNotFound} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
