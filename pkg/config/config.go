// Package config holds the immutable server configuration: listener settings,
// the integration table, timeout clocks, and payload shaping mode.
//
// Configuration is resolved once at startup (defaults → YAML file → environment
// overrides) and never mutated afterwards; every component receives the final
// Config by value or pointer and treats it as read-only.
package config

import (
	"fmt"
	"time"
)

// IntegrationMode selects the wire shape of outbound backend POSTs.
type IntegrationMode string

// Supported integration modes.
const (
	// ModeLambdaProxy wraps every event in the full JSON proxy envelope
	// (requestContext, headers, body, ...). This is the default.
	ModeLambdaProxy IntegrationMode = "lambda-proxy"

	// ModeHTTPHeaders sends the raw frame text as the POST body and carries
	// the event context in request headers. Targets plain HTTP services.
	ModeHTTPHeaders IntegrationMode = "http-headers"
)

// IsValid returns true if the mode is one of the supported values.
func (m IntegrationMode) IsValid() bool {
	switch m {
	case ModeLambdaProxy, ModeHTTPHeaders:
		return true
	}
	return false
}

// Reserved route keys. $connect and $disconnect receive the lifecycle events;
// $default is the fallback for message routing only.
const (
	RouteConnect    = "$connect"
	RouteDisconnect = "$disconnect"
	RouteDefault    = "$default"
)

// Config is the complete gateway configuration.
type Config struct {
	// Port is the single TCP listen port serving both WebSocket upgrades
	// and the management HTTP surface.
	Port int `yaml:"port"`

	// Stage is the stage name reported in requestContext.stage.
	Stage string `yaml:"stage"`

	// APIID is the API identifier reported in requestContext.apiId.
	APIID string `yaml:"api_id"`

	// DomainName is the public domain reported in requestContext.domainName.
	// Empty means "localhost:<port>".
	DomainName string `yaml:"domain_name"`

	// IntegrationMode selects lambda-proxy or http-headers payload shaping.
	IntegrationMode IntegrationMode `yaml:"integration_mode"`

	// RouteSelectionExpression selects the route key for inbound messages.
	// Grammar: "$request.body.<path>" with dot-separated member names.
	// Empty means every message routes to $default.
	RouteSelectionExpression string `yaml:"route_selection_expression"`

	// Routes maps route keys to backend integration URIs.
	Routes map[string]string `yaml:"routes"`

	// IdleTimeoutSeconds closes a session after this many seconds without
	// activity (inbound frame or successful management push).
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds"`

	// HardTimeoutSeconds closes a session this many seconds after creation,
	// regardless of activity.
	HardTimeoutSeconds int `yaml:"hard_timeout_seconds"`

	// Verbose enables debug-level logging.
	Verbose bool `yaml:"verbose"`
}

// IdleTimeout returns the idle clock as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// HardTimeout returns the hard clock as a duration.
func (c *Config) HardTimeout() time.Duration {
	return time.Duration(c.HardTimeoutSeconds) * time.Second
}

// PublicDomain returns the configured domain name, defaulting to
// "localhost:<port>" when unset.
func (c *Config) PublicDomain() string {
	if c.DomainName != "" {
		return c.DomainName
	}
	return fmt.Sprintf("localhost:%d", c.Port)
}

// HasRoute reports whether a route key is present in the integration table.
func (c *Config) HasRoute(key string) bool {
	_, ok := c.Routes[key]
	return ok
}
