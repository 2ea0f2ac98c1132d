package engine

import (
	"encoding/json"
	"fmt"
)

// RunStatus represents the lifecycle state of a typist run.
type RunStatus string

const (
	// RunStatusIdle indicates no run has been started yet.
	RunStatusIdle RunStatus = "idle"

	// RunStatusRunning indicates a pass is being executed.
	RunStatusRunning RunStatus = "running"

	// RunStatusCompleted indicates the last pass finished and looping is off.
	RunStatusCompleted RunStatus = "completed"

	// RunStatusCancelled indicates the run was abandoned at a wait boundary.
	RunStatusCancelled RunStatus = "cancelled"

	// RunStatusDiscarded indicates the typist has been torn down.
	RunStatusDiscarded RunStatus = "discarded"
)

// IsTerminal returns true if no further emissions can happen for the run.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusCancelled || s == RunStatusDiscarded
}

// IsActive returns true if the run is currently executing.
func (s RunStatus) IsActive() bool {
	return s == RunStatusRunning
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusIdle, RunStatusRunning, RunStatusCompleted,
		RunStatusCancelled, RunStatusDiscarded:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// ActionType identifies one of the five instruction kinds.
type ActionType string

const (
	// ActionTypeString types a string unit by unit.
	ActionTypeString ActionType = "TYPE_STRING"

	// ActionTypeElement types an opaque node as a whole line.
	ActionTypeElement ActionType = "TYPE_ELEMENT"

	// ActionBackspace erases units from the end of the buffer.
	ActionBackspace ActionType = "BACKSPACE"

	// ActionPause waits without emitting.
	ActionPause ActionType = "PAUSE"

	// ActionPaste appends a line immediately.
	ActionPaste ActionType = "PASTE"
)

// Validate checks if the action type is valid.
func (a ActionType) Validate() error {
	switch a {
	case ActionTypeString, ActionTypeElement, ActionBackspace, ActionPause, ActionPaste:
		return nil
	default:
		return fmt.Errorf("invalid action type: %s", a)
	}
}

// IsTimed returns true if executing the action involves at least one wait.
func (a ActionType) IsTimed() bool {
	return a != ActionPaste
}

// MarshalJSON implements json.Marshaler for RunStatus.
func (s RunStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler for RunStatus.
func (s *RunStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status := RunStatus(str)
	if err := status.Validate(); err != nil {
		return err
	}
	*s = status
	return nil
}
