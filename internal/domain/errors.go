package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrNotFound           = errors.New("not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrPreconditionFailed = errors.New("precondition failed")
)

// NotFoundError is returned when an entity does not exist in the caller's environment.
type NotFoundError struct {
	Kind Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Is makes NotFoundError match ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// PermissionDeniedError is returned when the oracle refuses an operation.
type PermissionDeniedError struct {
	Permission Permission
	Acts       []Act
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission %s[%s] required", e.Permission, string(actsBytes(e.Acts)))
}

// Is makes PermissionDeniedError match ErrPermissionDenied.
func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}

func actsBytes(acts []Act) []byte {
	out := make([]byte, len(acts))
	for i, a := range acts {
		out[i] = byte(a)
	}
	return out
}

// TransitionError is returned when a state transition is not allowed.
type TransitionError struct {
	Kind    Kind
	Action  Action
	Current State
	Reason  string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("action %q is not valid for %s in state %q", e.Action, e.Kind, e.Current)
}

// MalformedPreconditionError is returned for an unparsable If-Match header
// when strict parsing is enabled.
type MalformedPreconditionError struct {
	Header string
	Err    error
}

func (e *MalformedPreconditionError) Error() string {
	return fmt.Sprintf("malformed If-Match header %q: %v", e.Header, e.Err)
}

func (e *MalformedPreconditionError) Unwrap() error {
	return e.Err
}

// ConflictError is returned when a uniqueness rule is broken.
type ConflictError struct {
	Kind    Kind
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// ValidationError is returned for input that is well-formed but not acceptable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
