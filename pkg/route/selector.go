// Package route chooses the integration route key for inbound messages.
//
// A Selector compiles a route selection expression of the form
// "$request.body.<path>" once at startup and evaluates it against each
// message. Anything that does not resolve to a string naming a configured
// route falls back to $default; message routing never fails.
package route

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gatemock/gatemock/pkg/config"
)

// expressionPrefix is the only supported expression root.
const expressionPrefix = "$request.body."

// Selector resolves inbound message text to a route key.
type Selector struct {
	path   []string // compiled member path; nil when no expression is configured
	routes map[string]string
}

// NewSelector compiles the route selection expression against the integration
// table. An empty expression is valid and routes every message to $default.
func NewSelector(expression string, routes map[string]string) (*Selector, error) {
	s := &Selector{routes: routes}
	if expression == "" {
		return s, nil
	}

	if !strings.HasPrefix(expression, expressionPrefix) {
		return nil, fmt.Errorf("route selection expression %q must begin with %q", expression, expressionPrefix)
	}
	segments := strings.Split(strings.TrimPrefix(expression, expressionPrefix), ".")
	for _, segment := range segments {
		if segment == "" {
			return nil, fmt.Errorf("route selection expression %q contains an empty path segment", expression)
		}
	}
	s.path = segments
	return s, nil
}

// Select returns the route key for a message.
//
// The message is parsed as JSON and the compiled path is walked through
// nested objects. The terminal value matches only if it is a string naming a
// key present in the integration table; every other outcome (parse failure,
// missing member, non-object step, non-string terminal, unknown route)
// returns $default.
func (s *Selector) Select(message string) string {
	if len(s.path) == 0 {
		return config.RouteDefault
	}

	var doc any
	if err := json.Unmarshal([]byte(message), &doc); err != nil {
		return config.RouteDefault
	}

	current := doc
	for _, segment := range s.path {
		obj, ok := current.(map[string]any)
		if !ok {
			return config.RouteDefault
		}
		if current, ok = obj[segment]; !ok {
			return config.RouteDefault
		}
	}

	key, ok := current.(string)
	if !ok {
		return config.RouteDefault
	}
	if _, present := s.routes[key]; !present {
		return config.RouteDefault
	}
	return key
}
