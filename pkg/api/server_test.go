package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatemock/gatemock/pkg/config"
	"github.com/gatemock/gatemock/pkg/gateway"
	"github.com/gatemock/gatemock/pkg/integration"
	"github.com/gatemock/gatemock/pkg/route"
)

var isoMillisPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)

// apiFixture runs the full server wiring behind httptest, with an accept-all
// integration backend that surfaces admitted connection ids.
type apiFixture struct {
	t       *testing.T
	server  *httptest.Server
	manager *gateway.Manager
	connIDs chan string
}

func setupServer(t *testing.T) *apiFixture {
	t.Helper()

	f := &apiFixture{t: t, connIDs: make(chan string, 8)}

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var payload struct {
			RequestContext struct {
				EventType    string `json:"eventType"`
				ConnectionID string `json:"connectionId"`
			} `json:"requestContext"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.RequestContext.EventType == "CONNECT" {
			f.connIDs <- payload.RequestContext.ConnectionID
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(backend.Close)

	cfg := config.Defaults()
	cfg.Routes = map[string]string{
		config.RouteConnect:    backend.URL + "/connect",
		config.RouteDisconnect: backend.URL + "/disconnect",
		config.RouteDefault:    backend.URL + "/default",
	}

	selector, err := route.NewSelector(cfg.RouteSelectionExpression, cfg.Routes)
	require.NoError(t, err)

	f.manager = gateway.NewManager(cfg, integration.NewDispatcher(cfg), selector)
	f.server = httptest.NewServer(NewServer(cfg, f.manager).Handler())
	t.Cleanup(f.server.Close)
	return f
}

// dial opens a WebSocket to the server and returns the connection together
// with the id the backend saw on $connect.
func (f *apiFixture) dial() (*websocket.Conn, string) {
	f.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wsURL := "ws://" + strings.TrimPrefix(f.server.URL, "http://")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	select {
	case id := <-f.connIDs:
		return conn, id
	case <-time.After(2 * time.Second):
		f.t.Fatal("backend never saw $connect")
		return nil, ""
	}
}

func (f *apiFixture) request(method, path string, body []byte) *http.Response {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(f.t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	f := setupServer(t)

	resp := f.request(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	health := decodeJSON[HealthResponse](t, resp)
	assert.Equal(t, "ok", health.Status)
	assert.Zero(t, health.Connections)
	assert.GreaterOrEqual(t, health.Uptime, 0)

	// Polling health must not disturb anything.
	resp = f.request(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthCountsConnections(t *testing.T) {
	f := setupServer(t)
	f.dial()

	resp := f.request(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decodeJSON[HealthResponse](t, resp)
	assert.Equal(t, 1, health.Connections)
}

func TestPlainRequestOnUpgradeSpace(t *testing.T) {
	f := setupServer(t)

	// No Upgrade header: the open path space is not a plain-HTTP surface.
	resp := f.request(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.request(http.MethodGet, "/some/arbitrary/path", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Non-GET methods on unknown paths are equally a 404, not a 405.
	resp = f.request(http.MethodPost, "/some/arbitrary/path", []byte("x"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.request(http.MethodPut, "/", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestManagementMethodNotAllowed(t *testing.T) {
	f := setupServer(t)

	resp := f.request(http.MethodPut, "/@connections/abc", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestManagementUnknownConnectionIsGone(t *testing.T) {
	f := setupServer(t)

	resp := f.request(http.MethodPost, "/@connections/missing", []byte("hello"))
	require.Equal(t, http.StatusGone, resp.StatusCode)
	gone := decodeJSON[GoneResponse](t, resp)
	assert.Equal(t, "Gone", gone.Message)
	assert.Equal(t, "missing", gone.ConnectionID)

	resp = f.request(http.MethodGet, "/@connections/missing", nil)
	assert.Equal(t, http.StatusGone, resp.StatusCode)

	resp = f.request(http.MethodDelete, "/@connections/missing", nil)
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestManagementRoundTrip(t *testing.T) {
	f := setupServer(t)
	conn, id := f.dial()

	// POST pushes one verbatim text frame to the client.
	resp := f.request(http.MethodPost, "/@connections/"+id, []byte("server push"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	assert.Equal(t, "server push", string(data))

	// GET returns metadata with millisecond ISO timestamps.
	resp = f.request(http.MethodGet, "/@connections/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info := decodeJSON[ConnectionResponse](t, resp)
	assert.Equal(t, id, info.ConnectionID)
	assert.Regexp(t, isoMillisPattern, info.ConnectedAt)
	assert.Regexp(t, isoMillisPattern, info.LastActiveAt)

	// DELETE closes the socket with a normal closure.
	resp = f.request(http.MethodDelete, "/@connections/"+id, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, _, err = conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))

	// Once reaped, the id resolves to Gone.
	require.Eventually(t, func() bool {
		return f.manager.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
	resp = f.request(http.MethodGet, "/@connections/"+id, nil)
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestManagementPercentEncodedID(t *testing.T) {
	f := setupServer(t)
	_, id := f.dial()

	// Clients routinely percent-encode the trailing '='.
	encoded := strings.ReplaceAll(id, "=", "%3D")
	require.NotEqual(t, id, encoded)

	resp := f.request(http.MethodGet, "/@connections/"+encoded, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info := decodeJSON[ConnectionResponse](t, resp)
	assert.Equal(t, id, info.ConnectionID)
}

func TestSecurityHeaders(t *testing.T) {
	f := setupServer(t)

	resp := f.request(http.MethodGet, "/health", nil)
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}
