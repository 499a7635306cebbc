package lifecycle

import (
	"context"

	"github.com/harun/wapair/pkg/session"
)

// Connector opens protocol handles over a session's credentials.
type Connector interface {
	Open(ctx context.Context, creds *session.Credentials) (Handle, error)
}

// Handle is a live protocol client bound to one session.
type Handle interface {
	// Registered reports whether the credentials already belong to a paired
	// account.
	Registered() bool
	// Subscribe installs the event listener. It is called once, before Connect.
	Subscribe(fn func(Event))
	Connect(ctx context.Context) error
	RequestPairingCode(ctx context.Context, phone string) (string, error)
	SendText(ctx context.Context, chat, text string) error
	// Relocate releases everything the handle holds open in the credential
	// directory, runs move, and resumes on the directory the credentials
	// resolve to afterwards. move's error is returned as is.
	Relocate(ctx context.Context, move func(context.Context) error) error
	Close()
}

// Event is emitted by a Handle on its event stream.
type Event interface {
	event()
}

// ConnectionStatus is carried by ConnectionUpdate.
type ConnectionStatus string

const (
	ConnectionOpen      ConnectionStatus = "open"
	ConnectionClosed    ConnectionStatus = "closed"
	ConnectionLoggedOut ConnectionStatus = "logged_out"
)

// ConnectionUpdate reports a change of the underlying connection.
type ConnectionUpdate struct {
	Status ConnectionStatus
}

// CredentialsUpdate carries credential files to persist through the
// session's credentials hook, keyed by file name.
type CredentialsUpdate struct {
	Files map[string][]byte
}

// Message is an inbound chat message.
type Message struct {
	// ID is the protocol message id; empty ids are never de-duplicated.
	ID     string
	Chat   string
	Sender string
	Text   string
	FromMe bool
}

func (ConnectionUpdate) event()  {}
func (CredentialsUpdate) event() {}
func (Message) event()           {}
