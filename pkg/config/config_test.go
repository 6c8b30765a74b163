package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntegrationMode_IsValid(t *testing.T) {
	assert.True(t, ModeLambdaProxy.IsValid())
	assert.True(t, ModeHTTPHeaders.IsValid())
	assert.False(t, IntegrationMode("").IsValid())
	assert.False(t, IntegrationMode("lambda").IsValid())
}

func TestConfig_PublicDomain(t *testing.T) {
	cfg := &Config{Port: 3001}
	assert.Equal(t, "localhost:3001", cfg.PublicDomain())

	cfg.DomainName = "gw.example.com"
	assert.Equal(t, "gw.example.com", cfg.PublicDomain())
}

func TestConfig_TimeoutDurations(t *testing.T) {
	cfg := &Config{IdleTimeoutSeconds: 600, HardTimeoutSeconds: 7200}
	assert.Equal(t, 10*time.Minute, cfg.IdleTimeout())
	assert.Equal(t, 2*time.Hour, cfg.HardTimeout())
}

func TestConfig_HasRoute(t *testing.T) {
	cfg := &Config{Routes: map[string]string{RouteDefault: "http://localhost:9000/default"}}
	assert.True(t, cfg.HasRoute(RouteDefault))
	assert.False(t, cfg.HasRoute(RouteConnect))
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, ModeLambdaProxy, cfg.IntegrationMode)
	assert.Equal(t, DefaultIdleTimeoutSeconds, cfg.IdleTimeoutSeconds)
	assert.Equal(t, DefaultHardTimeoutSeconds, cfg.HardTimeoutSeconds)
	assert.NotNil(t, cfg.Routes)
	assert.Empty(t, cfg.Routes)
}
