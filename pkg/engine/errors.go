package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an engine error.
type ErrorClass string

const (
	// ErrorClassCancelled marks the normal unwinding of a cancelled run.
	// It is never reported as a fault.
	ErrorClassCancelled ErrorClass = "cancelled"

	// ErrorClassLifecycle marks misuse of the typist lifecycle, such as
	// emitting after Discard. These are programming errors.
	ErrorClassLifecycle ErrorClass = "lifecycle"

	// ErrorClassInvalid marks invalid props or actions.
	ErrorClassInvalid ErrorClass = "invalid"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// RunID is the run that raised the error, if any.
	RunID string `json:"run_id,omitempty"`

	// Action is the instruction being executed when the error occurred.
	Action ActionType `json:"action,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.RunID != "" {
		msg += fmt.Sprintf(" (run=%s)", e.RunID)
	}
	if e.Action != "" {
		msg += fmt.Sprintf(" (action=%s)", e.Action)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// WithRun returns a copy of e carrying the run ID.
func (e *EngineError) WithRun(runID string) *EngineError {
	c := *e
	c.RunID = runID
	return &c
}

// WithAction returns a copy of e carrying the action type.
func (e *EngineError) WithAction(action ActionType) *EngineError {
	c := *e
	c.Action = action
	return &c
}

// Error codes.
const (
	ErrCodeCancelled       = "CANCELLED"
	ErrCodeDiscarded       = "DISCARDED"
	ErrCodePostDiscard     = "POST_DISCARD_EMISSION"
	ErrCodeWaitOutstanding = "WAIT_OUTSTANDING"
	ErrCodeInvalidAction   = "INVALID_ACTION"
)

// Sentinel errors. Compare with errors.Is; the With* helpers return copies so
// the sentinels are never mutated.
var (
	// ErrCancelled is returned by a wait that was cancelled before resolving.
	ErrCancelled = &EngineError{Class: ErrorClassCancelled, Code: ErrCodeCancelled, Message: "wait cancelled"}

	// ErrDiscarded is returned when starting a typist that has been discarded.
	ErrDiscarded = &EngineError{Class: ErrorClassLifecycle, Code: ErrCodeDiscarded, Message: "typist has been discarded"}

	// ErrPostDiscard is returned when a state emission is attempted after Discard.
	ErrPostDiscard = &EngineError{Class: ErrorClassLifecycle, Code: ErrCodePostDiscard, Message: "state emitted after discard"}

	// ErrWaitOutstanding is returned when a wait is started while another is pending.
	ErrWaitOutstanding = &EngineError{Class: ErrorClassLifecycle, Code: ErrCodeWaitOutstanding, Message: "a wait is already outstanding"}
)

// NewInvalidActionError creates an error for an action the executor cannot run.
func NewInvalidActionError(a Action) *EngineError {
	return &EngineError{
		Class:   ErrorClassInvalid,
		Code:    ErrCodeInvalidAction,
		Message: "unknown action",
		Action:  a.Type,
	}
}

// IsCancelled returns true if the error is the normal cancellation of a run.
func IsCancelled(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassCancelled
	}
	return false
}

// IsLifecycle returns true if the error signals lifecycle misuse.
func IsLifecycle(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassLifecycle
	}
	return false
}
