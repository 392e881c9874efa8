package api

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownField      = errors.New("unknown profile field")
	ErrReadOnly          = errors.New("profile is read-only")
	ErrInvalidTransition = errors.New("action not allowed in the current state")
	ErrCommitInProgress  = errors.New("a save is already in progress")
	ErrAvatarDecode      = errors.New("avatar could not be decoded")
	ErrAvatarTooLarge    = errors.New("avatar exceeds the maximum size")
	ErrUnmounted         = errors.New("screen has been unmounted")
	ErrCommitFailed      = errors.New("commit failed")
)

// Reasons a submission is rejected before reaching confirmation.
const (
	ReasonPasswordMismatch = "password_mismatch"
	ReasonRequired         = "required"
)

// ValidationError blocks a submission. Nothing has been changed when it is
// returned.
type ValidationError struct {
	Field  Field
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError records which action was attempted in which state.
type InvalidTransitionError struct {
	Action string
	State  WorkflowState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Action, e.State)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}
