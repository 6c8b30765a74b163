package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Defaults()
	cfg.Routes = map[string]string{
		RouteConnect:    "http://localhost:9000/connect",
		RouteDisconnect: "http://localhost:9000/disconnect",
		RouteDefault:    "http://localhost:9000/default",
		"join":          "http://localhost:9000/join",
	}
	return cfg
}

func TestValidateAll_Valid(t *testing.T) {
	require.NoError(t, NewValidator(validConfig()).ValidateAll())
}

func TestValidateAll_ValidExpression(t *testing.T) {
	cfg := validConfig()
	cfg.RouteSelectionExpression = "$request.body.action"
	require.NoError(t, NewValidator(cfg).ValidateAll())

	cfg.RouteSelectionExpression = "$request.body.message.type"
	require.NoError(t, NewValidator(cfg).ValidateAll())
}

func TestValidateAll_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Port = 0 }},
		{"port out of range", func(c *Config) { c.Port = 70000 }},
		{"empty stage", func(c *Config) { c.Stage = "" }},
		{"empty api id", func(c *Config) { c.APIID = "" }},
		{"bad mode", func(c *Config) { c.IntegrationMode = "smoke-signals" }},
		{"zero idle timeout", func(c *Config) { c.IdleTimeoutSeconds = 0 }},
		{"zero hard timeout", func(c *Config) { c.HardTimeoutSeconds = 0 }},
		{"empty route key", func(c *Config) { c.Routes[""] = "http://localhost:9000/x" }},
		{"unknown reserved key", func(c *Config) { c.Routes["$custom"] = "http://localhost:9000/x" }},
		{"relative route uri", func(c *Config) { c.Routes["join"] = "/join" }},
		{"bad route scheme", func(c *Config) { c.Routes["join"] = "ftp://localhost/join" }},
		{"bad expression prefix", func(c *Config) { c.RouteSelectionExpression = "$response.body.action" }},
		{"empty expression segment", func(c *Config) { c.RouteSelectionExpression = "$request.body.action..type" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := NewValidator(cfg).ValidateAll()
			require.Error(t, err)

			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}
