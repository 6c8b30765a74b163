package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatemock/gatemock/pkg/config"
)

var testRoutes = map[string]string{
	config.RouteConnect:    "http://localhost:9000/connect",
	config.RouteDisconnect: "http://localhost:9000/disconnect",
	config.RouteDefault:    "http://localhost:9000/default",
	"join":                 "http://localhost:9000/join",
	"leave":                "http://localhost:9000/leave",
}

func newTestSelector(t *testing.T, expression string) *Selector {
	t.Helper()
	s, err := NewSelector(expression, testRoutes)
	require.NoError(t, err)
	return s
}

func TestNewSelector_InvalidExpression(t *testing.T) {
	_, err := NewSelector("$context.routeKey", testRoutes)
	assert.Error(t, err)

	_, err = NewSelector("$request.body.", testRoutes)
	assert.Error(t, err)

	_, err = NewSelector("$request.body.a..b", testRoutes)
	assert.Error(t, err)
}

func TestSelect_NoExpression(t *testing.T) {
	s := newTestSelector(t, "")
	assert.Equal(t, config.RouteDefault, s.Select(`{"action":"join"}`))
	assert.Equal(t, config.RouteDefault, s.Select("plain text"))
}

func TestSelect_MatchesConfiguredRoute(t *testing.T) {
	s := newTestSelector(t, "$request.body.action")
	assert.Equal(t, "join", s.Select(`{"action":"join","roomId":"123"}`))
	assert.Equal(t, "leave", s.Select(`{"action":"leave"}`))
}

func TestSelect_NestedPath(t *testing.T) {
	s := newTestSelector(t, "$request.body.message.type")
	assert.Equal(t, "join", s.Select(`{"message":{"type":"join"}}`))
	assert.Equal(t, config.RouteDefault, s.Select(`{"message":"join"}`))
}

func TestSelect_FallsBackToDefault(t *testing.T) {
	s := newTestSelector(t, "$request.body.action")

	tests := []struct {
		name    string
		message string
	}{
		{"not json", "hello there"},
		{"member absent", `{"verb":"join"}`},
		{"unknown route", `{"action":"dance"}`},
		{"numeric terminal", `{"action":42}`},
		{"boolean terminal", `{"action":true}`},
		{"array terminal", `{"action":["join"]}`},
		{"object terminal", `{"action":{"name":"join"}}`},
		{"null terminal", `{"action":null}`},
		{"root not object", `["join"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, config.RouteDefault, s.Select(tt.message))
		})
	}
}
