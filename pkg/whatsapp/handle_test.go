package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/harun/wapair/pkg/lifecycle"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func fixedNow() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
}

func TestTranslateEvent_Connection(t *testing.T) {
	tests := []struct {
		name   string
		evt    interface{}
		status lifecycle.ConnectionStatus
	}{
		{"connected", &events.Connected{}, lifecycle.ConnectionOpen},
		{"disconnected", &events.Disconnected{}, lifecycle.ConnectionClosed},
		{"stream replaced", &events.StreamReplaced{}, lifecycle.ConnectionClosed},
		{"logged out", &events.LoggedOut{}, lifecycle.ConnectionLoggedOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, ok := translateEvent(tt.evt, fixedNow)
			require.True(t, ok)
			assert.Equal(t, lifecycle.ConnectionUpdate{Status: tt.status}, evt)
		})
	}
}

func TestTranslateEvent_PairSuccess(t *testing.T) {
	jid := types.NewJID("33612345678", types.DefaultUserServer)

	evt, ok := translateEvent(&events.PairSuccess{ID: jid, Platform: "smba"}, fixedNow)
	require.True(t, ok)

	update, ok := evt.(lifecycle.CredentialsUpdate)
	require.True(t, ok)
	require.Contains(t, update.Files, DeviceInfoFile)

	var info DeviceInfo
	require.NoError(t, json.Unmarshal(update.Files[DeviceInfoFile], &info))
	assert.Equal(t, jid.String(), info.JID)
	assert.Equal(t, "smba", info.Platform)
	assert.True(t, fixedNow().Equal(info.PairedAt))
}

func TestTranslateEvent_Message(t *testing.T) {
	chat := types.NewJID("33612345678", types.DefaultUserServer)

	tests := []struct {
		name   string
		msg    *waE2E.Message
		fromMe bool
		text   string
	}{
		{
			name: "conversation",
			msg:  &waE2E.Message{Conversation: proto.String("/ping")},
			text: "/ping",
		},
		{
			name: "extended text",
			msg: &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
				Text: proto.String("/say Hello World"),
			}},
			text: "/say Hello World",
		},
		{
			name:   "own message",
			msg:    &waE2E.Message{Conversation: proto.String("/help")},
			fromMe: true,
			text:   "/help",
		},
		{
			name: "no text",
			msg:  &waE2E.Message{},
			text: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &events.Message{Message: tt.msg}
			in.Info.Chat = chat
			in.Info.Sender = chat
			in.Info.IsFromMe = tt.fromMe
			in.Info.ID = "3EB0C0FFEE"

			evt, ok := translateEvent(in, fixedNow)
			require.True(t, ok)
			assert.Equal(t, lifecycle.Message{
				ID:     "3EB0C0FFEE",
				Chat:   chat.String(),
				Sender: chat.String(),
				Text:   tt.text,
				FromMe: tt.fromMe,
			}, evt)
		})
	}
}

func TestTranslateEvent_Ignored(t *testing.T) {
	_, ok := translateEvent(&events.Receipt{}, fixedNow)
	assert.False(t, ok)

	_, ok = translateEvent("not an event", fixedNow)
	assert.False(t, ok)
}

func TestWaitForCode(t *testing.T) {
	t.Run("code offered", func(t *testing.T) {
		qr := make(chan whatsmeow.QRChannelItem, 1)
		qr <- whatsmeow.QRChannelItem{Event: whatsmeow.QRChannelEventCode, Code: "2@abc"}
		assert.NoError(t, waitForCode(context.Background(), qr, time.Second))
	})

	t.Run("channel error", func(t *testing.T) {
		qr := make(chan whatsmeow.QRChannelItem, 1)
		qr <- whatsmeow.QRChannelItem{Event: whatsmeow.QRChannelEventError, Error: errors.New("boom")}
		assert.Error(t, waitForCode(context.Background(), qr, time.Second))
	})

	t.Run("channel closed", func(t *testing.T) {
		qr := make(chan whatsmeow.QRChannelItem)
		close(qr)
		assert.Error(t, waitForCode(context.Background(), qr, time.Second))
	})

	t.Run("timeout", func(t *testing.T) {
		qr := make(chan whatsmeow.QRChannelItem)
		err := waitForCode(context.Background(), qr, 10*time.Millisecond)
		assert.ErrorIs(t, err, ErrPairTimeout)
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		qr := make(chan whatsmeow.QRChannelItem)
		assert.ErrorIs(t, waitForCode(ctx, qr, time.Second), context.Canceled)
	})
}

func TestNewConnector_Defaults(t *testing.T) {
	c := NewConnector(Config{}, zerolog.Nop())
	assert.Equal(t, DefaultClientName, c.cfg.ClientName)
	assert.Equal(t, DefaultPairTimeout, c.cfg.PairTimeout)
}
