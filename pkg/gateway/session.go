// Package gateway owns every live WebSocket session. It drives the
// per-connection lifecycle (admission → active → termination), fans events
// out to backend integrations, enforces the idle and hard timeout clocks,
// backs the management operations, and tears everything down on shutdown.
package gateway

import (
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/gatemock/gatemock/pkg/integration"
)

// sessionState tracks the lifecycle of one session. A session leaves
// stateActive exactly once; the closing state records who initiated it.
type sessionState int

const (
	stateAdmitting sessionState = iota
	stateActive
	stateClosingClient   // client sent a close frame or the socket errored
	stateClosingIdle     // idle clock fired
	stateClosingHard     // hard clock fired
	stateClosingAdmin    // management DELETE
	stateClosingFailed   // backend rejected or never saw $connect
	stateClosingShutdown // process stopping
)

// Session is one accepted WebSocket. The manager is the only writer of the
// socket and of all mutable fields; connect-time snapshot fields never change
// after admission.
type Session struct {
	ID          string
	ConnectedAt time.Time
	SourceIP    string
	UserAgent   string
	Headers     map[string]string // names lowercased, first value per name
	Query       map[string]string // last value per name; nil when none

	conn *websocket.Conn

	// lastActivity is milliseconds since epoch, monotonic per session.
	lastActivity atomic.Int64

	// writeMu serializes management pushes to the socket. Inbound frames are
	// read by a single goroutine, so reads need no lock.
	writeMu sync.Mutex

	mu              sync.Mutex
	state           sessionState
	closeCode       websocket.StatusCode // valid once a closing state is entered
	closeReason     string
	connectAccepted bool
}

// newSession snapshots the connect-time request state. The identity may still
// be regenerated by the manager if it collides at insert time.
func newSession(conn *websocket.Conn, r *http.Request) *Session {
	now := time.Now()
	headers := snapshotHeaders(r.Header)
	// The server promotes Host out of r.Header before the handler runs;
	// restore it so connect payloads carry it like every other header.
	if r.Host != "" {
		headers["host"] = r.Host
	}
	s := &Session{
		ID:          integration.NewSocketID(),
		ConnectedAt: now,
		SourceIP:    sourceIP(r.RemoteAddr),
		UserAgent:   r.UserAgent(),
		Headers:     headers,
		Query:       snapshotQuery(r),
		conn:        conn,
		state:       stateAdmitting,
	}
	s.lastActivity.Store(now.UnixMilli())
	return s
}

// touch advances lastActivity to now, never backwards.
func (s *Session) touch() {
	now := time.Now().UnixMilli()
	for {
		prev := s.lastActivity.Load()
		if prev >= now || s.lastActivity.CompareAndSwap(prev, now) {
			return
		}
	}
}

// lastActiveAt returns the last observed activity moment.
func (s *Session) lastActiveAt() time.Time {
	return time.UnixMilli(s.lastActivity.Load())
}

// markActive transitions admitting → active. Returns false if a close was
// already initiated (e.g. a timer fired while $connect was in flight).
func (s *Session) markActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateAdmitting {
		return false
	}
	s.state = stateActive
	return true
}

// markConnectAccepted records that the backend accepted $connect. Kept apart
// from markActive: a close can win the state machine while the dispatch is in
// flight, and an accepted session is owed its $disconnect even then.
func (s *Session) markConnectAccepted() {
	s.mu.Lock()
	s.connectAccepted = true
	s.mu.Unlock()
}

// isActive reports whether the session accepts frames.
func (s *Session) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateActive
}

// isLive reports whether management operations may address the session.
// Admitting counts: the session registers before $connect is dispatched so
// that management requests arriving mid-admission already resolve.
func (s *Session) isLive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateAdmitting || s.state == stateActive
}

// beginClose records the first close initiation and wins the right to issue
// the close frame. Subsequent attempts are no-ops returning false, which
// makes double closes and timer-vs-client races safe.
func (s *Session) beginClose(st sessionState, code websocket.StatusCode, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateAdmitting && s.state != stateActive {
		return false
	}
	s.state = st
	s.closeCode = code
	s.closeReason = reason
	return true
}

// closeInfo returns the recorded closing state. Only meaningful after the
// read loop has observed the socket's end.
func (s *Session) closeInfo() (sessionState, websocket.StatusCode, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.closeCode, s.closeReason, s.connectAccepted
}

// info builds the immutable snapshot handed to the event encoder.
func (s *Session) info() integration.SessionInfo {
	return integration.SessionInfo{
		ConnectionID: s.ID,
		ConnectedAt:  s.ConnectedAt,
		SourceIP:     s.SourceIP,
		UserAgent:    s.UserAgent,
		Headers:      s.Headers,
		Query:        s.Query,
	}
}

// sourceIP extracts the client address, normalizing IPv4-mapped IPv6
// addresses to their IPv4 form.
func sourceIP(remoteAddr string) string {
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return ap.Addr().Unmap().String()
	}
	// RemoteAddr without a port (some proxies, tests).
	if addr, err := netip.ParseAddr(remoteAddr); err == nil {
		return addr.Unmap().String()
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// snapshotHeaders lowercases names and collapses multi-valued headers to
// their first value.
func snapshotHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) == 0 {
			continue
		}
		out[strings.ToLower(name)] = values[0]
	}
	return out
}

// snapshotQuery keeps the last value per parameter name, and nil (not an
// empty map) when the connect URL carried no parameters at all.
func snapshotQuery(r *http.Request) map[string]string {
	values := r.URL.Query()
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for name, vs := range values {
		if len(vs) == 0 {
			continue
		}
		out[name] = vs[len(vs)-1]
	}
	return out
}

// clientClose derives the DISCONNECT info for a client-initiated close from
// the read loop's terminal error: the peer's close frame if one arrived,
// 1006 (abnormal closure) otherwise.
func clientClose(readErr error) (websocket.StatusCode, string) {
	var ce websocket.CloseError
	if errors.As(readErr, &ce) {
		return ce.Code, ce.Reason
	}
	if code := websocket.CloseStatus(readErr); code != -1 {
		return code, ""
	}
	return websocket.StatusAbnormalClosure, ""
}
