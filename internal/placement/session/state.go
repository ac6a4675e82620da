// Package session implements the map placement state machine: choosing a
// feature type, positioning its marker, and editing a feature's attributes.
package session

import (
	"errors"
	"fmt"
)

// State is the mode of a placement session.
type State int

const (
	Idle State = iota
	SelectingType
	ConfirmingPosition
	Editing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SelectingType:
		return "selecting_type"
	case ConfirmingPosition:
		return "confirming_position"
	case Editing:
		return "editing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Action names a user intent driving the machine.
type Action string

const (
	ActionAdd     Action = "add"
	ActionSelect  Action = "select_type"
	ActionMove    Action = "move_marker"
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
	ActionOpen    Action = "open"
	ActionEdit    Action = "edit"
	ActionChange  Action = "change"
	ActionSave    Action = "save"
	ActionDelete  Action = "delete"
	ActionClose   Action = "close"
)

var (
	// ErrInvalidAction matches every InvalidActionError.
	ErrInvalidAction = errors.New("action not allowed in current state")
	// ErrSavePending is returned by Add while a save is still in flight.
	ErrSavePending = errors.New("a save is still pending")
	// ErrUnknownType is returned when selecting a type not offered for the project.
	ErrUnknownType = errors.New("feature type is not assigned to this project")
	// ErrSuperseded is returned when the session moved on while a lookup was running.
	ErrSuperseded = errors.New("session changed while loading")
)

// InvalidActionError reports an action the current state does not accept.
// The machine is left unchanged.
type InvalidActionError struct {
	Action Action
	State  State
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Action, e.State)
}

func (e *InvalidActionError) Is(target error) bool {
	return target == ErrInvalidAction
}

// FormError carries attribute errors keyed by field name.
type FormError struct {
	Fields map[string]string
}

func (e *FormError) Error() string {
	return fmt.Sprintf("%d attribute(s) invalid", len(e.Fields))
}
