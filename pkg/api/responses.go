package api

import "time"

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Uptime      int    `json:"uptime"` // seconds
}

// ConnectionResponse is returned by GET /@connections/{id}.
type ConnectionResponse struct {
	ConnectionID string `json:"connectionId"`
	ConnectedAt  string `json:"connectedAt"`  // ISO-8601 UTC, millisecond precision
	LastActiveAt string `json:"lastActiveAt"` // ISO-8601 UTC, millisecond precision
}

// GoneResponse is the 410 body for missing or closed sessions.
type GoneResponse struct {
	Message      string `json:"message"`
	ConnectionID string `json:"connectionId"`
}

// isoMillis renders a timestamp as ISO-8601 UTC with millisecond precision.
func isoMillis(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
