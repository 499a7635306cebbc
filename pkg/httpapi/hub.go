package httpapi

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/wapair/pkg/lifecycle"
	"github.com/rs/zerolog"
)

// EventSessionState is the event name of lifecycle transitions.
const EventSessionState = "session.state"

const (
	// clientSendBuffer is how many events may queue for one subscriber
	// before it is dropped.
	clientSendBuffer = 64
	writeTimeout     = 5 * time.Second
)

// eventClient is one websocket subscriber. Events are queued on send and
// written by the client's own writer goroutine.
type eventClient struct {
	ID          string
	Conn        *websocket.Conn
	IPAddress   string
	ConnectedAt time.Time

	send     chan []byte
	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

func newEventClient(id string, conn *websocket.Conn, ip string) *eventClient {
	return &eventClient{
		ID:          id,
		Conn:        conn,
		IPAddress:   ip,
		ConnectedAt: time.Now(),
		send:        make(chan []byte, clientSendBuffer),
		done:        make(chan struct{}),
		exited:      make(chan struct{}),
	}
}

// enqueue hands data to the writer without blocking. It reports false when
// the queue is full.
func (c *eventClient) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *eventClient) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// writeLoop drains send until the client is stopped or a write fails, then
// closes the connection.
func (c *eventClient) writeLoop(logger zerolog.Logger) {
	defer close(c.exited)
	defer c.Conn.Close()

	for {
		select {
		case data := <-c.send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Warn().Err(err).Str("clientId", c.ID).Msg("Failed to send event to client")
				return
			}
		case <-c.done:
			_ = c.Conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second),
			)
			return
		}
	}
}

// EventHub fans lifecycle transitions out to websocket subscribers.
type EventHub struct {
	mu      sync.RWMutex
	clients map[string]*eventClient
	logger  zerolog.Logger
	seq     uint64
}

// NewEventHub creates an empty hub.
func NewEventHub(logger zerolog.Logger) *EventHub {
	return &EventHub{
		clients: make(map[string]*eventClient),
		logger:  logger,
	}
}

// add registers c and starts its writer.
func (h *EventHub) add(c *eventClient) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	go c.writeLoop(h.logger)
}

// remove unregisters the client and stops its writer. Unknown ids are
// ignored.
func (h *EventHub) remove(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		c.stop()
	}
}

// Count returns the number of subscribers.
func (h *EventHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish is a lifecycle observer broadcasting t as a session.state event.
func (h *EventHub) Publish(t lifecycle.Transition) {
	h.Broadcast(EventSessionState, t)
}

// Broadcast queues an event for every subscriber without waiting on any of
// them. A subscriber whose queue is full is disconnected.
func (h *EventHub) Broadcast(event string, data interface{}) {
	msg := EventMessage{
		Type:      "event",
		Event:     event,
		Seq:       int64(atomic.AddUint64(&h.seq, 1)),
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to marshal event")
		return
	}

	h.mu.RLock()
	clients := make([]*eventClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	dropped := 0
	for _, c := range clients {
		if !c.enqueue(payload) {
			h.logger.Warn().
				Str("clientId", c.ID).
				Str("event", event).
				Msg("Event subscriber too slow, disconnecting")
			h.remove(c.ID)
			dropped++
		}
	}

	h.logger.Debug().
		Str("event", event).
		Int64("seq", msg.Seq).
		Int("clients", len(clients)).
		Int("dropped", dropped).
		Msg("Event broadcast complete")
}

// CloseAll disconnects every subscriber.
func (h *EventHub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*eventClient)
	h.mu.Unlock()

	for _, c := range clients {
		c.stop()
	}
	for _, c := range clients {
		<-c.exited
	}
}
