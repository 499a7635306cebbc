package httpapi

import (
	"context"
	"time"

	"github.com/harun/wapair/pkg/lifecycle"
)

const (
	MsgMissingNumber = "Numéro manquant"
	MsgConnectFailed = "Impossible de connecter le bot"
	MsgConnecting    = "Bot en cours de connexion. Si première connexion, un pairing code sera généré."

	// SessionIDHeader carries the id of the session a /connect call worked on.
	SessionIDHeader = "X-Session-Id"
)

// Sessions is the lifecycle surface the HTTP endpoint drives.
type Sessions interface {
	Start(ctx context.Context, phone string) (lifecycle.Result, error)
	Resume(ctx context.Context, id, phone string) (lifecycle.Result, error)
	Get(id string) (lifecycle.Info, bool)
	List() []lifecycle.Info
	Count() int
}

// ConnectRequest is the body of POST /connect.
type ConnectRequest struct {
	Number string `json:"number" form:"number"`
	// Session resumes a persisted session instead of creating one.
	Session string `json:"session,omitempty" form:"session"`
}

// PairingResponse is returned when the account still has to be linked.
type PairingResponse struct {
	PairingCode string `json:"pairingCode"`
}

// MessageResponse is returned when the session connects with stored
// credentials.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationError rejects a request before any session work starts.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// EventMessage is one frame on the /events stream.
type EventMessage struct {
	Type      string      `json:"type"`
	Event     string      `json:"event"`
	Seq       int64       `json:"seq"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// Options configures the HTTP server.
type Options struct {
	Host            string
	Port            int
	StaticDir       string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
	// RateLimit is the number of /connect calls allowed per client IP within
	// RateWindow. 0 disables limiting.
	RateLimit  int
	RateWindow time.Duration
}
