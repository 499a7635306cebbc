package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harun/wapair/internal/observability"
	"github.com/harun/wapair/internal/tracing"
	"github.com/harun/wapair/pkg/commands"
	"github.com/harun/wapair/pkg/session"
	"github.com/rs/zerolog"
)

// MaxPromoteAttempts caps how many open events try to promote a session.
// Each attempt reconnects the handle, which raises the next open event.
const MaxPromoteAttempts = 3

// Result is the outcome of Start or Resume. Exactly one of PairingCode and
// Accepted is set on success.
type Result struct {
	SessionID   string
	PairingCode string
	Accepted    bool
}

// Info is a snapshot of a session held by the manager.
type Info struct {
	ID        string       `json:"id"`
	Phone     string       `json:"phone,omitempty"`
	State     State        `json:"state"`
	Area      session.Area `json:"area"`
	Promoted  bool         `json:"promoted"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	LastError string       `json:"last_error,omitempty"`
}

// Options configures a Manager.
type Options struct {
	Store      *session.Store
	Connector  Connector
	Dispatcher *commands.Dispatcher
	Logger     zerolog.Logger
	Now        func() time.Time
	// DedupTTL bounds how long delivered message ids are remembered.
	DedupTTL time.Duration
}

// Manager owns every session's handle for the life of the process.
type Manager struct {
	store      *session.Store
	connector  Connector
	dispatcher *commands.Dispatcher
	logger     zerolog.Logger
	now        func() time.Time
	dedup      *dedupCache

	mu       sync.RWMutex
	sessions map[string]*managedSession

	observersMu sync.RWMutex
	observers   []Observer
}

type managedSession struct {
	id        string
	phone     string
	createdAt time.Time

	mu          sync.Mutex
	handle      Handle
	state       State
	updatedAt   time.Time
	promoted    bool
	dispatching bool
	lastErr     string

	// serializes promotion; events from one handle already arrive in order
	promoteMu       sync.Mutex
	promoteAttempts int
}

// NewManager creates a lifecycle manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if opts.Connector == nil {
		return nil, fmt.Errorf("connector is required")
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = commands.NewDefault(opts.Logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Manager{
		store:      opts.Store,
		connector:  opts.Connector,
		dispatcher: opts.Dispatcher,
		logger:     opts.Logger.With().Str("component", "lifecycle").Logger(),
		now:        opts.Now,
		dedup:      newDedupCache(opts.DedupTTL, opts.Now),
		sessions:   make(map[string]*managedSession),
	}, nil
}

// AddObserver registers fn to receive every state transition.
func (m *Manager) AddObserver(fn Observer) {
	m.observersMu.Lock()
	defer m.observersMu.Unlock()
	m.observers = append(m.observers, fn)
}

// Start creates a pending session for phone and opens a handle on it.
// An unregistered handle yields a pairing code; a registered one is
// accepted and connects in the background.
func (m *Manager) Start(ctx context.Context, phone string) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "wapair.lifecycle", "lifecycle.start")
	defer span.End()

	id, err := session.NewID()
	if err != nil {
		tracing.Fail(span, err)
		return Result{}, &session.StoreError{Op: "create", Err: err}
	}
	span.SetAttributes(tracing.SessionAttr(id))

	if _, err := m.store.CreatePending(id); err != nil {
		tracing.Fail(span, err)
		return Result{SessionID: id}, err
	}

	sess := m.register(id, phone)
	result, err := m.open(ctx, sess, true)
	tracing.Fail(span, err)
	return result, err
}

// Resume reopens a persisted session. If the manager already holds a handle
// for id it is reused and the request is accepted. phone is only used when
// the stored credentials turn out not to be registered.
func (m *Manager) Resume(ctx context.Context, id, phone string) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "wapair.lifecycle", "lifecycle.resume",
		tracing.SessionAttr(id))
	defer span.End()

	if err := session.ValidateID(id); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}

	m.mu.RLock()
	existing, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok && existing.hasHandle() {
		return Result{SessionID: id, Accepted: true}, nil
	}

	if !m.store.IsPersisted(id) {
		return Result{SessionID: id}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	sess := existing
	if sess == nil {
		sess = m.register(id, phone)
	} else if phone != "" {
		sess.mu.Lock()
		sess.phone = phone
		sess.mu.Unlock()
	}
	result, err := m.open(ctx, sess, phone != "")
	tracing.Fail(span, err)
	return result, err
}

// ResumeAll resumes every persisted session and returns how many were
// resumed. Failures are logged and skipped.
func (m *Manager) ResumeAll(ctx context.Context) (int, error) {
	persisted, err := m.store.ListPersisted()
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, info := range persisted {
		if _, err := m.Resume(ctx, info.ID, ""); err != nil {
			m.logger.Warn().Err(err).Str("session_id", info.ID).Msg("Failed to resume session")
			continue
		}
		resumed++
	}

	m.logger.Info().
		Int("resumed", resumed).
		Int("persisted", len(persisted)).
		Msg("Persisted sessions resumed")
	return resumed, nil
}

// Get returns a snapshot of the session with id.
func (m *Manager) Get(id string) (Info, bool) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return Info{}, false
	}
	return m.info(sess), true
}

// List returns snapshots of every session, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	sessions := make([]*managedSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, m.info(sess))
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Count returns the number of sessions held.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every handle. Session directories are left untouched.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	sessions := make([]*managedSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.RUnlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		handle := sess.handle
		sess.mu.Unlock()
		if handle != nil {
			handle.Close()
		}
	}
	m.logger.Info().Int("sessions", len(sessions)).Msg("Lifecycle manager shut down")
}

func (m *Manager) register(id, phone string) *managedSession {
	now := m.now()
	sess := &managedSession{
		id:        id,
		phone:     phone,
		createdAt: now,
		updatedAt: now,
		state:     StateInitiated,
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	m.publish(Transition{SessionID: id, To: StateInitiated, At: now})
	return sess
}

// open binds a handle to sess and branches on its registration state.
func (m *Manager) open(ctx context.Context, sess *managedSession, canPair bool) (Result, error) {
	result := Result{SessionID: sess.id}
	logger := m.logger.With().Str("session_id", sess.id).Logger()

	// The listener and the connection outlive the request.
	bg := tracing.WithSessionID(tracing.Detach(ctx), sess.id)

	handle, err := m.connector.Open(bg, m.store.Credentials(sess.id))
	if err != nil {
		return result, m.fail(sess, "open", err)
	}
	sess.mu.Lock()
	sess.handle = handle
	sess.mu.Unlock()

	handle.Subscribe(m.listener(bg, sess, handle))

	if !handle.Registered() {
		if !canPair {
			handle.Close()
			sess.mu.Lock()
			sess.handle = nil
			sess.mu.Unlock()
			return result, m.fail(sess, "pair", ErrNotRegistered)
		}
		m.transition(sess, StateAwaitingRegistration)

		if err := handle.Connect(bg); err != nil {
			return result, m.fail(sess, "connect", err)
		}
		sess.mu.Lock()
		phone := sess.phone
		sess.mu.Unlock()
		code, err := handle.RequestPairingCode(ctx, phone)
		if err != nil {
			return result, m.fail(sess, "pair", err)
		}

		logger.Info().Msg("Pairing code issued")
		result.PairingCode = code
		return result, nil
	}

	m.transition(sess, StateAwaitingConnection)
	if err := handle.Connect(bg); err != nil {
		return result, m.fail(sess, "connect", err)
	}

	logger.Info().Msg("Connection accepted")
	result.Accepted = true
	return result, nil
}

func (m *Manager) fail(sess *managedSession, op string, err error) error {
	m.recordError(sess, err)
	return &ConnectionError{Op: op, SessionID: sess.id, Err: err}
}

// listener is the single long-lived event handler of a handle.
func (m *Manager) listener(ctx context.Context, sess *managedSession, handle Handle) func(Event) {
	creds := m.store.Credentials(sess.id)
	logger := m.logger.With().Str("session_id", sess.id).Logger()

	return func(evt Event) {
		switch e := evt.(type) {
		case CredentialsUpdate:
			for name, data := range e.Files {
				if err := creds.WriteFile(name, data); err != nil {
					observability.RecordCredentialWrite(false)
					logger.Error().Err(err).Str("file", name).Msg("Failed to persist credentials")
					continue
				}
				observability.RecordCredentialWrite(true)
			}

		case ConnectionUpdate:
			switch e.Status {
			case ConnectionOpen:
				m.onOpen(ctx, sess, handle)
			case ConnectionClosed, ConnectionLoggedOut:
				logger.Warn().Str("status", string(e.Status)).Msg("Connection lost")
				m.transition(sess, StateDisconnected)
			}

		case Message:
			m.onMessage(ctx, sess, handle, e)
		}
	}
}

func (m *Manager) onOpen(ctx context.Context, sess *managedSession, handle Handle) {
	m.transition(sess, StateConnected)

	sess.promoteMu.Lock()
	defer sess.promoteMu.Unlock()

	sess.mu.Lock()
	done := sess.promoted
	sess.mu.Unlock()
	if done {
		return
	}

	logger := m.logger.With().Str("session_id", sess.id).Logger()
	logger.Info().Msg("Bot connected")

	sess.mu.Lock()
	sess.promoteAttempts++
	attempt := sess.promoteAttempts
	sess.mu.Unlock()
	if attempt > MaxPromoteAttempts {
		return
	}

	if !m.store.IsPending(sess.id) {
		// resumed from the persisted area, nothing to move
		sess.mu.Lock()
		sess.promoted = true
		sess.dispatching = true
		sess.mu.Unlock()
		return
	}

	// the device store is open inside the pending directory, so the handle
	// lets go of it while the directory moves
	var promoteErr error
	err := handle.Relocate(ctx, func(ctx context.Context) error {
		_, promoteErr = m.store.Promote(ctx, sess.id)
		return promoteErr
	})

	if promoteErr != nil {
		// left unpromoted; the next open event tries again
		logger.Error().Err(promoteErr).Int("attempt", attempt).Msg("Failed to promote session")
		m.recordError(sess, promoteErr)
		if err != promoteErr {
			m.dropHandle(sess, handle, err)
		}
		return
	}

	sess.mu.Lock()
	sess.promoted = true
	sess.dispatching = true
	sess.mu.Unlock()

	if err != nil {
		m.dropHandle(sess, handle, err)
	}
}

// dropHandle closes a handle that could not be reopened. A later Resume
// opens a fresh one.
func (m *Manager) dropHandle(sess *managedSession, handle Handle, err error) {
	m.logger.Error().Err(err).Str("session_id", sess.id).Msg("Failed to reopen session")
	m.recordError(sess, err)
	handle.Close()
	sess.mu.Lock()
	sess.handle = nil
	sess.mu.Unlock()
	m.transition(sess, StateDisconnected)
}

func (m *Manager) recordError(sess *managedSession, err error) {
	sess.mu.Lock()
	sess.lastErr = err.Error()
	sess.updatedAt = m.now()
	sess.mu.Unlock()
}

func (m *Manager) onMessage(ctx context.Context, sess *managedSession, handle Handle, msg Message) {
	sess.mu.Lock()
	dispatching := sess.dispatching
	sess.mu.Unlock()
	if !dispatching {
		return
	}
	if msg.ID != "" && m.dedup.seen(sess.id+"/"+msg.ID) {
		m.logger.Debug().Str("session_id", sess.id).Str("message_id", msg.ID).Msg("Duplicate message ignored")
		return
	}

	reply := func(ctx context.Context, text string) error {
		return handle.SendText(ctx, msg.Chat, text)
	}
	in := commands.Message{Chat: msg.Chat, Sender: msg.Sender, Text: msg.Text, FromMe: msg.FromMe}

	if _, err := m.dispatcher.Dispatch(ctx, in, reply); err != nil {
		m.logger.Error().Err(err).Str("session_id", sess.id).Msg("Failed to reply to command")
	}
}

func (m *Manager) transition(sess *managedSession, to State) {
	sess.mu.Lock()
	from := sess.state
	if from == to {
		sess.mu.Unlock()
		return
	}
	sess.state = to
	sess.updatedAt = m.now()
	at := sess.updatedAt
	sess.mu.Unlock()

	m.logger.Debug().
		Str("session_id", sess.id).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Session state changed")

	m.publish(Transition{SessionID: sess.id, From: from, To: to, At: at})
}

func (m *Manager) publish(t Transition) {
	m.updateSessionsMetric()

	m.observersMu.RLock()
	observers := append([]Observer(nil), m.observers...)
	m.observersMu.RUnlock()

	for _, fn := range observers {
		fn(t)
	}
}

func (m *Manager) updateSessionsMetric() {
	counts := make(map[State]int, len(States))
	m.mu.RLock()
	for _, sess := range m.sessions {
		sess.mu.Lock()
		counts[sess.state]++
		sess.mu.Unlock()
	}
	m.mu.RUnlock()

	for _, state := range States {
		observability.SetSessions(string(state), counts[state])
	}
}

func (m *Manager) info(sess *managedSession) Info {
	sess.mu.Lock()
	info := Info{
		ID:        sess.id,
		Phone:     sess.phone,
		State:     sess.state,
		Promoted:  sess.promoted,
		CreatedAt: sess.createdAt,
		UpdatedAt: sess.updatedAt,
		LastError: sess.lastErr,
	}
	sess.mu.Unlock()

	info.Area = session.AreaPending
	if m.store.IsPersisted(sess.id) {
		info.Area = session.AreaPersisted
	}
	return info
}

func (s *managedSession) hasHandle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}
