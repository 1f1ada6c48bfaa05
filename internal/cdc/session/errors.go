package session

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Start while the session is Running.
	ErrAlreadyRunning = errors.New("session: already running")

	// ErrKillTimeout is returned when the server does not confirm the
	// forced cancellation within the configured wait bound.
	ErrKillTimeout = errors.New("session: timed out waiting for kill confirmation")

	// ErrKillFailed is returned when the termination request itself, or
	// the confirmation poll, fails on the control connection.
	ErrKillFailed = errors.New("session: forced cancellation failed")
)

// Error wraps session lifecycle failures with the operation and the
// state the session was in.
type Error struct {
	Op    string // "start", "stop", "kill"
	State State
	Err   error
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("session %s failed (state=%s): %v", e.Op, e.State, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(op string, state State, sentinel, cause error) error {
	return &Error{Op: op, State: state, Err: sentinel, Cause: cause}
}
