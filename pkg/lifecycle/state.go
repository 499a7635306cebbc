package lifecycle

import "time"

// State is the lifecycle state of a session.
type State string

const (
	StateInitiated            State = "initiated"
	StateAwaitingRegistration State = "awaiting_registration"
	StateAwaitingConnection   State = "awaiting_connection"
	StateConnected            State = "connected"
	StateDisconnected         State = "disconnected"
)

// States lists every state in lifecycle order.
var States = []State{
	StateInitiated,
	StateAwaitingRegistration,
	StateAwaitingConnection,
	StateConnected,
	StateDisconnected,
}

// Transition is published to observers on every state change.
type Transition struct {
	SessionID string    `json:"session_id"`
	From      State     `json:"from,omitempty"`
	To        State     `json:"to"`
	At        time.Time `json:"at"`
}

// Observer receives transitions. It must not block.
type Observer func(Transition)
