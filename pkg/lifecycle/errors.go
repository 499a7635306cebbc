package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when resuming an id with no persisted session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotRegistered is returned when a resumed session needs pairing but no
	// phone number was supplied.
	ErrNotRegistered = errors.New("session is not registered")
)

// ConnectionError reports a failure of the protocol collaborator.
type ConnectionError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s for session %s: %v", e.Op, e.SessionID, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
