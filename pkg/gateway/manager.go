package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/gatemock/gatemock/pkg/config"
	"github.com/gatemock/gatemock/pkg/integration"
	"github.com/gatemock/gatemock/pkg/route"
)

// Close reasons observable by clients.
const (
	reasonConnectFailed = "Backend connect failed"
	reasonIdleTimeout   = "Idle timeout"
	reasonHardTimeout   = "Hard timeout"
	reasonAdminClose    = "Closed by management API"
	reasonShutdown      = "Server shutting down"
)

// ErrGone is returned by management operations when the session is absent or
// already closing. The HTTP layer maps it to 410.
var ErrGone = errors.New("connection gone")

// ConnectionInfo is the metadata returned by the management GET.
type ConnectionInfo struct {
	ID           string
	ConnectedAt  time.Time
	LastActiveAt time.Time
}

// Manager owns the set of live sessions and runs the WebSocket lifecycle.
// Each Go process has one Manager instance.
type Manager struct {
	cfg        *config.Config
	dispatcher *integration.Dispatcher
	selector   *route.Selector
	timeouts   *timeoutController
	logger     *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	wg sync.WaitGroup
}

// NewManager creates a session manager using the configured timeout clocks.
func NewManager(cfg *config.Config, dispatcher *integration.Dispatcher, selector *route.Selector) *Manager {
	return newManager(cfg, dispatcher, selector, cfg.IdleTimeout(), cfg.HardTimeout())
}

// newManager lets tests run with sub-second clocks.
func newManager(cfg *config.Config, dispatcher *integration.Dispatcher, selector *route.Selector, idle, hard time.Duration) *Manager {
	m := &Manager{
		cfg:        cfg,
		dispatcher: dispatcher,
		selector:   selector,
		sessions:   make(map[string]*Session),
		logger:     slog.With("component", "gateway"),
	}
	m.timeouts = newTimeoutController(idle, hard, m.onExpire)
	return m
}

// HandleConnection runs the lifecycle of one accepted WebSocket. Called by
// the HTTP handler after upgrade; blocks until the session is gone.
//
// Admission order matters: the session enters the live set before $connect is
// dispatched, so management operations arriving during backend processing of
// the connect event already resolve.
func (m *Manager) HandleConnection(ctx context.Context, conn *websocket.Conn, r *http.Request) {
	sess := newSession(conn, r)
	if !m.register(sess) {
		conn.Close(websocket.StatusGoingAway, reasonShutdown)
		return
	}
	defer m.wg.Done()

	log := m.logger.With("connection_id", sess.ID)
	log.Debug("Session admitted", "source_ip", sess.SourceIP)

	m.timeouts.Start(sess.ID)

	outcome := m.dispatcher.Dispatch(ctx, integration.Event{
		Type:     integration.EventConnect,
		RouteKey: config.RouteConnect,
		Session:  sess.info(),
	})
	if outcome != integration.OutcomeAccepted {
		log.Warn("Backend did not accept $connect, closing session", "outcome", outcome)
		sess.beginClose(stateClosingFailed, websocket.StatusInternalError, reasonConnectFailed)
		conn.Close(websocket.StatusInternalError, reasonConnectFailed)
		m.timeouts.Cancel(sess.ID)
		m.remove(sess.ID)
		return
	}

	// Acceptance is recorded before the state transition: even if a close won
	// the state machine while $connect was in flight, the session is owed its
	// $disconnect.
	sess.markConnectAccepted()

	// A timer may have fired while $connect was in flight; markActive failing
	// means the close is already underway and the read loop will observe it.
	if sess.markActive() {
		log.Info("Session connected")
	}

	m.readLoop(ctx, sess)
}

// readLoop consumes frames until the socket dies, then reaps the session.
// Running dispatch inline keeps per-session MESSAGE events strictly ordered.
func (m *Manager) readLoop(ctx context.Context, sess *Session) {
	log := m.logger.With("connection_id", sess.ID)

	for {
		_, data, err := sess.conn.Read(ctx)
		if err != nil {
			m.teardown(sess, err)
			return
		}

		// Binary frames are surfaced as UTF-8 text.
		text := string(data)
		sess.touch()
		m.timeouts.ResetIdle(sess.ID)

		key := m.selector.Select(text)
		outcome := m.dispatcher.Dispatch(ctx, integration.Event{
			Type:     integration.EventMessage,
			RouteKey: key,
			Session:  sess.info(),
			Body:     text,
		})
		if outcome != integration.OutcomeAccepted {
			// Message failures never tear the session down.
			log.Warn("Message dispatch failed, dropping event", "route_key", key, "outcome", outcome)
		}
	}
}

// teardown reaps a session after its socket ended: cancels both clocks,
// removes it from the live set, and dispatches $disconnect when owed.
func (m *Manager) teardown(sess *Session, readErr error) {
	// If no close was initiated on our side, the client did it.
	if code, reason := clientClose(readErr); sess.beginClose(stateClosingClient, code, reason) {
		sess.conn.Close(code, reason)
	}
	state, code, reason, connectAccepted := sess.closeInfo()

	m.timeouts.Cancel(sess.ID)
	m.remove(sess.ID)

	log := m.logger.With("connection_id", sess.ID)
	log.Info("Session closed", "code", int(code), "reason", reason)

	// $disconnect is owed for every accepted session except on admission
	// failure and on shutdown, where delivery is deliberately not guaranteed.
	if !connectAccepted || state == stateClosingFailed || state == stateClosingShutdown {
		return
	}

	// The request context may already be dead; the dispatcher's own timeout
	// bounds this call.
	outcome := m.dispatcher.Dispatch(context.Background(), integration.Event{
		Type:     integration.EventDisconnect,
		RouteKey: config.RouteDisconnect,
		Session:  sess.info(),
		Disconnect: &integration.DisconnectInfo{
			StatusCode: int(code),
			Reason:     reason,
		},
	})
	if outcome != integration.OutcomeAccepted {
		log.Warn("Disconnect dispatch failed", "outcome", outcome)
	}
}

// Post writes data verbatim as one text frame to the session's socket and
// counts as activity (resets the idle clock, never the hard clock).
func (m *Manager) Post(ctx context.Context, id string, data []byte) error {
	sess, ok := m.lookup(id)
	if !ok {
		return ErrGone
	}

	sess.writeMu.Lock()
	if !sess.isLive() {
		sess.writeMu.Unlock()
		return ErrGone
	}
	err := sess.conn.Write(ctx, websocket.MessageText, data)
	sess.writeMu.Unlock()

	if err != nil {
		// Socket died under us; the read loop will reap it.
		return ErrGone
	}

	sess.touch()
	m.timeouts.ResetIdle(id)
	return nil
}

// Get returns session metadata for the management GET.
func (m *Manager) Get(id string) (ConnectionInfo, error) {
	sess, ok := m.lookup(id)
	if !ok || !sess.isLive() {
		return ConnectionInfo{}, ErrGone
	}
	return ConnectionInfo{
		ID:           sess.ID,
		ConnectedAt:  sess.ConnectedAt,
		LastActiveAt: sess.lastActiveAt(),
	}, nil
}

// Delete closes the session with 1000 on behalf of the management API. The
// read loop observes the close and performs the actual reap (including the
// $disconnect dispatch).
func (m *Manager) Delete(id string) error {
	sess, ok := m.lookup(id)
	if !ok {
		return ErrGone
	}
	if !sess.beginClose(stateClosingAdmin, websocket.StatusNormalClosure, reasonAdminClose) {
		return ErrGone
	}
	sess.conn.Close(websocket.StatusNormalClosure, reasonAdminClose)
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every live session with 1001 and waits for their read
// loops to finish reaping, bounded by ctx. Idempotent. No $disconnect is
// dispatched for sessions closed this way.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	snapshot := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		snapshot = append(snapshot, sess)
	}
	m.mu.Unlock()

	for _, sess := range snapshot {
		if sess.beginClose(stateClosingShutdown, websocket.StatusGoingAway, reasonShutdown) {
			m.timeouts.Cancel(sess.ID)
			sess.conn.Close(websocket.StatusGoingAway, reasonShutdown)
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onExpire is the timeout controller callback. A fire against a vanished
// session is a no-op; a fire racing a client close loses the beginClose CAS
// and is equally a no-op.
func (m *Manager) onExpire(id string, kind expireKind) {
	sess, ok := m.lookup(id)
	if !ok {
		return
	}

	state, reason := stateClosingIdle, reasonIdleTimeout
	if kind == expireHard {
		state, reason = stateClosingHard, reasonHardTimeout
	}
	if sess.beginClose(state, websocket.StatusGoingAway, reason) {
		m.logger.Debug("Timeout fired", "connection_id", id, "reason", reason)
		sess.conn.Close(websocket.StatusGoingAway, reason)
	}
}

// register inserts the session into the live set, regenerating the identity
// on the (astronomically unlikely) collision. Returns false once the manager
// is shutting down.
func (m *Manager) register(sess *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	for {
		if _, exists := m.sessions[sess.ID]; !exists {
			break
		}
		sess.ID = integration.NewSocketID()
	}
	m.sessions[sess.ID] = sess
	m.wg.Add(1)
	return true
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *Manager) lookup(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}
