// Package integration shapes session events into the backend wire contract
// and delivers them as HTTP POSTs with classified outcomes.
package integration

import "time"

// EventType is the lifecycle class of a dispatched event.
type EventType string

// Event types as they appear in requestContext.eventType.
const (
	EventConnect    EventType = "CONNECT"
	EventMessage    EventType = "MESSAGE"
	EventDisconnect EventType = "DISCONNECT"
)

// DisconnectInfo carries the observed WebSocket close.
type DisconnectInfo struct {
	StatusCode int    // close code observed or assigned on the socket
	Reason     string // close reason, possibly empty
}

// SessionInfo is the connect-time snapshot of a session that the encoder
// folds into every event payload. All fields are immutable after admission.
type SessionInfo struct {
	ConnectionID string
	ConnectedAt  time.Time
	SourceIP     string
	UserAgent    string            // empty when the client sent none
	Headers      map[string]string // names lowercased, first value per name
	Query        map[string]string // last value per name; nil when the connect URL had none
}

// Event is one session event bound for a backend integration.
type Event struct {
	Type       EventType
	RouteKey   string
	Session    SessionInfo
	Body       string          // frame text, only set for MESSAGE
	Disconnect *DisconnectInfo // only set for DISCONNECT
}
