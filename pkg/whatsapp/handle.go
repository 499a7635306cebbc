package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harun/wapair/pkg/lifecycle"
	"github.com/harun/wapair/pkg/session"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

var (
	// ErrNotConnected is returned when a pairing code is requested before
	// Connect.
	ErrNotConnected = errors.New("client is not connected")
	// ErrPairTimeout is returned when the server never becomes ready for
	// phone pairing.
	ErrPairTimeout = errors.New("timed out waiting for pairing to become available")
)

// DeviceInfo is the summary written to device.json on successful pairing.
type DeviceInfo struct {
	JID          string    `json:"jid"`
	BusinessName string    `json:"business_name,omitempty"`
	Platform     string    `json:"platform,omitempty"`
	PairedAt     time.Time `json:"paired_at"`
}

type handle struct {
	sessionID string
	creds     *session.Credentials
	connector *Connector
	cfg       Config
	logger    zerolog.Logger

	// mu guards the client and device store, which Relocate replaces.
	mu        sync.Mutex
	client    *whatsmeow.Client
	container *sqlstore.Container
	qr        <-chan whatsmeow.QRChannelItem
	listeners []func(lifecycle.Event)

	// gen is bumped on every relocation so handlers of a replaced client
	// go quiet.
	gen atomic.Uint64
}

var _ lifecycle.Handle = (*handle)(nil)

func newHandle(creds *session.Credentials, client *whatsmeow.Client, container *sqlstore.Container, connector *Connector, log zerolog.Logger) *handle {
	return &handle{
		sessionID: creds.ID(),
		creds:     creds,
		connector: connector,
		cfg:       connector.cfg,
		logger:    log.With().Str("session_id", creds.ID()).Logger(),
		client:    client,
		container: container,
	}
}

func (h *handle) current() *whatsmeow.Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.client
}

func (h *handle) Registered() bool {
	return h.current().Store.ID != nil
}

func (h *handle) Subscribe(fn func(lifecycle.Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
	h.attach(h.client, fn)
}

// attach forwards client events to fn until the handle relocates. Caller
// holds mu.
func (h *handle) attach(client *whatsmeow.Client, fn func(lifecycle.Event)) {
	gen := h.gen.Load()
	client.AddEventHandler(func(evt interface{}) {
		if h.gen.Load() != gen {
			return
		}
		if e, ok := translateEvent(evt, time.Now); ok {
			fn(e)
		}
	})
}

// Connect opens the websocket. For an unregistered device the pairing
// channel is set up first, since whatsmeow only hands it out before
// connecting.
func (h *handle) Connect(ctx context.Context) error {
	client := h.current()
	if client.Store.ID == nil {
		qr, err := client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("failed to get pairing channel: %w", err)
		}
		h.mu.Lock()
		h.qr = qr
		h.mu.Unlock()
	}

	if err := client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

// RequestPairingCode waits until the server offers the first login code,
// then asks for a phone pairing code instead.
func (h *handle) RequestPairingCode(ctx context.Context, phone string) (string, error) {
	h.mu.Lock()
	qr := h.qr
	client := h.client
	h.mu.Unlock()
	if qr == nil {
		return "", ErrNotConnected
	}

	if err := waitForCode(ctx, qr, h.cfg.PairTimeout); err != nil {
		return "", err
	}

	// later QR refreshes are not used but the channel must not block
	go func() {
		for item := range qr {
			h.logger.Debug().Str("event", item.Event).Msg("Pairing channel event")
		}
	}()

	code, err := client.PairPhone(ctx, phone, true, whatsmeow.PairClientSafari, h.cfg.ClientName)
	if err != nil {
		return "", fmt.Errorf("failed to request pairing code: %w", err)
	}
	return code, nil
}

func (h *handle) SendText(ctx context.Context, chat, text string) error {
	jid, err := types.ParseJID(chat)
	if err != nil {
		return fmt.Errorf("invalid chat %q: %w", chat, err)
	}

	_, err = h.current().SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Relocate closes the device store, runs move, and reopens the store
// wherever the credentials resolve to afterwards. The listeners move to the
// new client, which reconnects if the old one was connected. If move fails
// the store is reopened in place and move's error is returned.
func (h *handle) Relocate(ctx context.Context, move func(context.Context) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	wasConnected := h.client.IsConnected()
	h.gen.Add(1)
	h.client.Disconnect()
	if err := h.container.Close(); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to close device store")
	}

	moveErr := move(ctx)

	client, container, err := h.connector.load(ctx, h.creds)
	if err != nil {
		return errors.Join(moveErr, fmt.Errorf("failed to reopen device store: %w", err))
	}
	h.client = client
	h.container = container
	h.qr = nil
	for _, fn := range h.listeners {
		h.attach(client, fn)
	}

	h.logger.Debug().Str("path", h.creds.Dir()).Msg("Device store relocated")

	if wasConnected {
		if err := client.Connect(); err != nil {
			return errors.Join(moveErr, fmt.Errorf("failed to reconnect: %w", err))
		}
	}
	return moveErr
}

func (h *handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.gen.Add(1)
	h.client.Disconnect()
	if err := h.container.Close(); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to close device store")
	}
}

func waitForCode(ctx context.Context, qr <-chan whatsmeow.QRChannelItem, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case item, ok := <-qr:
			if !ok {
				return fmt.Errorf("pairing channel closed before a code was offered")
			}
			switch item.Event {
			case whatsmeow.QRChannelEventCode:
				return nil
			case whatsmeow.QRChannelEventError:
				return fmt.Errorf("pairing channel failed: %w", item.Error)
			case whatsmeow.QRChannelSuccess.Event:
				return fmt.Errorf("device paired before a code was requested")
			default:
				return fmt.Errorf("pairing unavailable: %s", item.Event)
			}
		case <-timer.C:
			return ErrPairTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// translateEvent maps whatsmeow events onto lifecycle events. Events the
// manager does not care about are dropped.
func translateEvent(evt interface{}, now func() time.Time) (lifecycle.Event, bool) {
	switch e := evt.(type) {
	case *events.Connected:
		return lifecycle.ConnectionUpdate{Status: lifecycle.ConnectionOpen}, true

	case *events.Disconnected, *events.StreamReplaced:
		return lifecycle.ConnectionUpdate{Status: lifecycle.ConnectionClosed}, true

	case *events.LoggedOut:
		return lifecycle.ConnectionUpdate{Status: lifecycle.ConnectionLoggedOut}, true

	case *events.PairSuccess:
		data, err := json.MarshalIndent(DeviceInfo{
			JID:          e.ID.String(),
			BusinessName: e.BusinessName,
			Platform:     e.Platform,
			PairedAt:     now().UTC(),
		}, "", "  ")
		if err != nil {
			return nil, false
		}
		return lifecycle.CredentialsUpdate{Files: map[string][]byte{DeviceInfoFile: data}}, true

	case *events.Message:
		return lifecycle.Message{
			ID:     e.Info.ID,
			Chat:   e.Info.Chat.String(),
			Sender: e.Info.Sender.String(),
			Text:   messageText(e.Message),
			FromMe: e.Info.IsFromMe,
		}, true
	}
	return nil, false
}

func messageText(msg *waE2E.Message) string {
	if text := msg.GetConversation(); text != "" {
		return text
	}
	return msg.GetExtendedTextMessage().GetText()
}
