package integration

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gatemock/gatemock/pkg/config"
)

// requestTimeout bounds every outbound backend POST. Without it a slow
// backend would wedge session reaps behind in-flight disconnect events.
const requestTimeout = 5 * time.Second

// Outcome classifies the result of one dispatch attempt.
type Outcome int

const (
	// OutcomeAccepted — the backend answered with a 2xx status.
	OutcomeAccepted Outcome = iota
	// OutcomeRejected — the backend answered with any non-2xx status.
	OutcomeRejected
	// OutcomeUnreachable — no route, transport error, DNS failure, or timeout.
	OutcomeUnreachable
)

// String returns the outcome name for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeUnreachable:
		return "unreachable"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Dispatcher resolves route keys to integration URIs and performs the
// outbound POST. It never retries: events are at-most-once from the gateway's
// perspective, and a single clean failure is more useful to the caller than a
// duplicated notification the backend cannot distinguish.
type Dispatcher struct {
	cfg     *config.Config
	encoder *Encoder
	client  *http.Client
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher with a bounded-timeout HTTP client.
func NewDispatcher(cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		cfg:     cfg,
		encoder: NewEncoder(cfg),
		client:  &http.Client{Timeout: requestTimeout},
		logger:  slog.With("component", "dispatcher"),
	}
}

// Dispatch delivers one event to the integration registered for its route
// key and classifies the result.
//
// Lifecycle routes ($connect, $disconnect) must be present in the table;
// their absence is an error. A missing key on a message route — in practice
// only a missing $default, since the selector never returns an absent
// user-defined key — is tolerated with a warning.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) Outcome {
	log := d.logger.With("connection_id", ev.Session.ConnectionID, "route_key", ev.RouteKey, "event_type", ev.Type)

	uri, ok := d.cfg.Routes[ev.RouteKey]
	if !ok {
		if ev.Type == EventMessage {
			log.Warn("No integration registered for message route, dropping event")
		} else {
			log.Error("No integration registered for lifecycle route")
		}
		return OutcomeUnreachable
	}

	req, err := d.buildRequest(ctx, uri, ev)
	if err != nil {
		log.Error("Failed to build integration request", "error", err)
		return OutcomeUnreachable
	}

	resp, err := d.client.Do(req)
	if err != nil {
		log.Warn("Integration unreachable", "uri", uri, "error", err)
		return OutcomeUnreachable
	}
	defer resp.Body.Close()
	// Drain so the transport can reuse the connection.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Debug("Integration accepted event", "status", resp.StatusCode)
		return OutcomeAccepted
	}
	log.Warn("Integration rejected event", "uri", uri, "status", resp.StatusCode)
	return OutcomeRejected
}

// buildRequest assembles the outbound POST in the configured wire shape.
func (d *Dispatcher) buildRequest(ctx context.Context, uri string, ev Event) (*http.Request, error) {
	if d.cfg.IntegrationMode == config.ModeHTTPHeaders {
		hr := d.encoder.HeaderBody(ev)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(hr.Body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		// Direct map assignment keeps the exact key spelling on the wire.
		for name, value := range hr.Header {
			req.Header[name] = []string{value}
		}
		if len(hr.Query) > 0 {
			req.URL.RawQuery = hr.Query.Encode()
		}
		req.Header.Set("Content-Type", hr.ContentType)
		return req, nil
	}

	body, err := d.encoder.ProxyBody(ev)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
