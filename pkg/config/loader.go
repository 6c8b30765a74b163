package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Load resolves the configuration: YAML file (optional) → environment
// overrides → defaults for anything still unset → validation.
//
// path may be empty, in which case only environment variables and defaults
// apply. The integration table can only come from the file or from code;
// there is no environment form for it.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, NewLoadError(path, ErrConfigNotFound)
			}
			return nil, NewLoadError(path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
		slog.Info("Loaded configuration file", "path", path)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	// Fill anything still at its zero value from the defaults.
	if err := mergo.Merge(cfg, Defaults()); err != nil {
		return nil, fmt.Errorf("merge defaults: %w", err)
	}

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	return cfg, nil
}

// applyEnv overrides config fields from GATEMOCK_* environment variables.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("GATEMOCK_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return NewValidationError("GATEMOCK_PORT", fmt.Errorf("%w: %q", ErrInvalidValue, v))
		}
		cfg.Port = port
	}
	if v := os.Getenv("GATEMOCK_STAGE"); v != "" {
		cfg.Stage = v
	}
	if v := os.Getenv("GATEMOCK_API_ID"); v != "" {
		cfg.APIID = v
	}
	if v := os.Getenv("GATEMOCK_DOMAIN_NAME"); v != "" {
		cfg.DomainName = v
	}
	if v := os.Getenv("GATEMOCK_INTEGRATION_MODE"); v != "" {
		cfg.IntegrationMode = IntegrationMode(v)
	}
	if v := os.Getenv("GATEMOCK_ROUTE_SELECTION_EXPRESSION"); v != "" {
		cfg.RouteSelectionExpression = v
	}
	if v := os.Getenv("GATEMOCK_IDLE_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return NewValidationError("GATEMOCK_IDLE_TIMEOUT_SECONDS", fmt.Errorf("%w: %q", ErrInvalidValue, v))
		}
		cfg.IdleTimeoutSeconds = secs
	}
	if v := os.Getenv("GATEMOCK_HARD_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return NewValidationError("GATEMOCK_HARD_TIMEOUT_SECONDS", fmt.Errorf("%w: %q", ErrInvalidValue, v))
		}
		cfg.HardTimeoutSeconds = secs
	}
	if v := os.Getenv("GATEMOCK_VERBOSE"); v != "" {
		cfg.Verbose = v == "1" || v == "true"
	}
	return nil
}
