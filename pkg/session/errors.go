package session

import (
	"errors"
	"fmt"
)

// ErrInvalidID is returned for ids that are not safe directory names.
var ErrInvalidID = errors.New("invalid session id")

// StoreError reports a failed filesystem operation on a session directory.
type StoreError struct {
	Op  string
	ID  string
	Err error
}

func (e *StoreError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("session store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("session store %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
