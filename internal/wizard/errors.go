package wizard

import (
	"errors"
	"fmt"
)

// RuntimeError represents a fault detected by the sequencing engine.
//
// Runtime errors include:
//   - Invalid task: unknown kind/target or a kind/target mismatch
//   - Missing registration: a task's target has no registered runner
//   - Bad registration: registration fields do not match its mode
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Target and Kind identify the affected task, when known.
	Target Target
	Kind   Kind

	// Token identifies the affected flow, when known.
	Token string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvalidTask indicates a malformed task was rejected.
	ErrCodeInvalidTask RuntimeErrorCode = "INVALID_TASK"

	// ErrCodeNoRegistration indicates a task targeted a component the
	// sequencer has no registration for.
	ErrCodeNoRegistration RuntimeErrorCode = "NO_REGISTRATION"

	// ErrCodeBadRegistration indicates a registration whose fields do
	// not match its completion mode.
	ErrCodeBadRegistration RuntimeErrorCode = "BAD_REGISTRATION"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Target != TargetInvalid || e.Kind != KindInvalid {
		return fmt.Sprintf("%s: %s (target=%s, kind=%s)", e.Code, e.Message, e.Target, e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvalidTask reports whether err is an invalid-task error.
// Uses errors.As to handle wrapped errors.
func IsInvalidTask(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeInvalidTask
}

// IsNoRegistration reports whether err is a missing-registration error.
func IsNoRegistration(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeNoRegistration
}

func newInvalidTaskError(t Task, msg string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidTask,
		Message: msg,
		Target:  t.Target,
		Kind:    t.Kind,
		Token:   t.Token,
	}
}

func newNoRegistrationError(t Task) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNoRegistration,
		Message: "no registration for task target",
		Target:  t.Target,
		Kind:    t.Kind,
		Token:   t.Token,
	}
}

func newBadRegistrationError(target Target, msg string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeBadRegistration,
		Message: msg,
		Target:  target,
	}
}
