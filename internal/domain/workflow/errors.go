package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a trigger is not permitted from the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrTerminalState is returned when a trigger is fired after the lifecycle ended
	ErrTerminalState = errors.New("state is terminal")
)

// TransitionError records the rejected trigger and the state it was fired from
type TransitionError struct {
	From    State
	Trigger Trigger
	cause   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: %s from %s", e.cause, e.Trigger, e.From)
}

func (e *TransitionError) Unwrap() error {
	return e.cause
}
