package config

import (
	"fmt"
	"net/url"
	"strings"
)

// routeSelectionPrefix is the only supported expression root: message routing
// reads a path out of the JSON request body.
const routeSelectionPrefix = "$request.body."

// ConfigValidator validates configuration with clear error messages.
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast, stops at first error).
func (v *ConfigValidator) ValidateAll() error {
	if err := v.validateServer(); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	if err := v.validateRoutes(); err != nil {
		return fmt.Errorf("route validation failed: %w", err)
	}
	if err := v.validateExpression(); err != nil {
		return fmt.Errorf("route selection expression validation failed: %w", err)
	}
	return nil
}

func (v *ConfigValidator) validateServer() error {
	if v.cfg.Port < 1 || v.cfg.Port > 65535 {
		return NewValidationError("port", fmt.Errorf("%w: %d", ErrInvalidValue, v.cfg.Port))
	}
	if v.cfg.Stage == "" {
		return NewValidationError("stage", ErrMissingRequiredField)
	}
	if v.cfg.APIID == "" {
		return NewValidationError("api_id", ErrMissingRequiredField)
	}
	if !v.cfg.IntegrationMode.IsValid() {
		return NewValidationError("integration_mode",
			fmt.Errorf("%w: %q (must be %q or %q)", ErrInvalidValue, v.cfg.IntegrationMode, ModeLambdaProxy, ModeHTTPHeaders))
	}
	if v.cfg.IdleTimeoutSeconds < 1 {
		return NewValidationError("idle_timeout_seconds", fmt.Errorf("%w: %d", ErrInvalidValue, v.cfg.IdleTimeoutSeconds))
	}
	if v.cfg.HardTimeoutSeconds < 1 {
		return NewValidationError("hard_timeout_seconds", fmt.Errorf("%w: %d", ErrInvalidValue, v.cfg.HardTimeoutSeconds))
	}
	return nil
}

func (v *ConfigValidator) validateRoutes() error {
	for key, uri := range v.cfg.Routes {
		if key == "" {
			return NewValidationError("routes", fmt.Errorf("%w: empty route key", ErrInvalidValue))
		}
		// $-prefixed keys are reserved for the three well-known routes.
		if strings.HasPrefix(key, "$") && key != RouteConnect && key != RouteDisconnect && key != RouteDefault {
			return NewValidationError(key, fmt.Errorf("%w: unknown reserved route key", ErrInvalidValue))
		}
		u, err := url.Parse(uri)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return NewValidationError(key, fmt.Errorf("%w: integration URI %q must be an absolute http(s) URL", ErrInvalidValue, uri))
		}
	}
	return nil
}

func (v *ConfigValidator) validateExpression() error {
	expr := v.cfg.RouteSelectionExpression
	if expr == "" {
		return nil
	}
	if !strings.HasPrefix(expr, routeSelectionPrefix) {
		return NewValidationError("route_selection_expression",
			fmt.Errorf("%w: %q must begin with %q", ErrInvalidValue, expr, routeSelectionPrefix))
	}
	for _, segment := range strings.Split(strings.TrimPrefix(expr, routeSelectionPrefix), ".") {
		if segment == "" {
			return NewValidationError("route_selection_expression",
				fmt.Errorf("%w: %q contains an empty path segment", ErrInvalidValue, expr))
		}
	}
	return nil
}
