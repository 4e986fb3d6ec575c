package sync

import (
	"errors"
	"fmt"
)

// ValidationError marks malformed or incomplete input. It is never retried:
// the caller gets it back and the originating system must send a corrected
// payload.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Msg
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

func NewValidationError(field string, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// NotFoundError marks a referenced entity that does not exist. Event
// consumers swallow it, direct API callers get it surfaced.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func NewNotFoundError(entity string, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

// TrackerAPIError carries the status of a rejected or failed tracker call.
type TrackerAPIError struct {
	Status int
	Body   string
}

func (e *TrackerAPIError) Error() string {
	return fmt.Sprintf("tracker api status=%d body=%s", e.Status, e.Body)
}

// Retryable reports whether the failure is worth redelivering. Rate limits
// and server-side errors are transient, other 4xx responses are not.
func (e *TrackerAPIError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// RepositoryError marks a storage failure. The store is expected to come
// back, so these ride the caller's redelivery mechanism.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// IsRetryable classifies an error per the sync taxonomy: repository failures
// and transient tracker failures retry, validation and not-found do not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var tracker *TrackerAPIError
	if errors.As(err, &tracker) {
		return tracker.Retryable()
	}

	var repo *RepositoryError
	if errors.As(err, &repo) {
		return true
	}

	return !IsValidation(err) && !IsNotFound(err)
}
