package httpapi

import (
	"testing"
	"time"

	"github.com/harun/wapair/pkg/lifecycle"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHub_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewEventHub(zerolog.Nop())

	// registered without a writer, so nothing ever drains its queue
	slow := newEventClient("slow", nil, "127.0.0.1")
	hub.mu.Lock()
	hub.clients[slow.ID] = slow
	hub.mu.Unlock()

	published := make(chan struct{})
	go func() {
		defer close(published)
		for i := 0; i < clientSendBuffer+1; i++ {
			hub.Publish(lifecycle.Transition{SessionID: "abc123DEF456", To: lifecycle.StateConnected})
		}
	}()

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a subscriber that never reads")
	}

	assert.Zero(t, hub.Count())
	assert.Len(t, slow.send, clientSendBuffer)
	select {
	case <-slow.done:
	default:
		t.Fatal("slow subscriber was not stopped")
	}
}

func TestEventClient_EnqueueAfterStop(t *testing.T) {
	c := newEventClient("c1", nil, "")
	require.True(t, c.enqueue([]byte("a")))

	c.stop()
	c.stop()
	assert.False(t, c.enqueue([]byte("b")))
	assert.Len(t, c.send, 1)
}
