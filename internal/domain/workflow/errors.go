package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a phase transition is not allowed
	ErrInvalidTransition = errors.New("invalid phase transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when a guard condition fails; the guard's
	// own error is wrapped alongside so callers can unwrap the specific cause
	ErrGuardFailed = errors.New("guard condition failed")
)
