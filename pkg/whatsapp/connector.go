// Package whatsapp binds the lifecycle manager to the whatsmeow client.
//
// Each session keeps the protocol client's device store as an SQLite
// database inside the session's credential directory, next to a small
// device.json summary written when pairing succeeds.
package whatsapp

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/harun/wapair/internal/logger"
	"github.com/harun/wapair/pkg/lifecycle"
	"github.com/harun/wapair/pkg/session"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
)

const (
	// DeviceDBFile holds the protocol client's device store.
	DeviceDBFile = "whatsmeow.db"
	// DeviceInfoFile is written through the credentials hook on pairing.
	DeviceInfoFile = "device.json"

	DefaultClientName  = "Safari (Mac OS)"
	DefaultPairTimeout = 30 * time.Second
)

// Config configures the protocol client.
type Config struct {
	// ClientName is shown on the phone's linked devices list.
	ClientName string
	// PairTimeout bounds the wait for the server before a pairing code
	// can be requested.
	PairTimeout time.Duration
	// LogLevel is the minimum level of protocol client logs.
	LogLevel string
}

// Connector opens whatsmeow clients over session credential directories.
type Connector struct {
	cfg    Config
	logger zerolog.Logger
}

var _ lifecycle.Connector = (*Connector)(nil)

// NewConnector creates a connector.
func NewConnector(cfg Config, log zerolog.Logger) *Connector {
	if cfg.ClientName == "" {
		cfg.ClientName = DefaultClientName
	}
	if cfg.PairTimeout <= 0 {
		cfg.PairTimeout = DefaultPairTimeout
	}
	return &Connector{
		cfg:    cfg,
		logger: log.With().Str("component", "whatsapp").Logger(),
	}
}

// Open loads (or creates) the device store in the session's credential
// directory and returns a handle around a fresh client.
func (c *Connector) Open(ctx context.Context, creds *session.Credentials) (lifecycle.Handle, error) {
	client, container, err := c.load(ctx, creds)
	if err != nil {
		return nil, err
	}
	return newHandle(creds, client, container, c, c.logger), nil
}

// load opens the device store wherever creds currently resolves to.
func (c *Connector) load(ctx context.Context, creds *session.Credentials) (*whatsmeow.Client, *sqlstore.Container, error) {
	dbPath := filepath.Join(creds.Dir(), DeviceDBFile)
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", dbPath)

	dbLog := logger.Protocol(c.logger, "database", c.cfg.LogLevel)
	container, err := sqlstore.New(ctx, "sqlite3", dsn, dbLog)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open device store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to load device: %w", err)
	}

	clientLog := logger.Protocol(c.logger, "client", c.cfg.LogLevel)
	client := whatsmeow.NewClient(device, clientLog)

	c.logger.Debug().
		Str("session_id", creds.ID()).
		Str("path", dbPath).
		Bool("registered", device.ID != nil).
		Msg("Device store opened")

	return client, container, nil
}
