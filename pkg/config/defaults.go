package config

// Default timeout clocks mirror the managed service limits: ten minutes idle,
// two hours total connection lifetime.
const (
	DefaultPort               = 3001
	DefaultStage              = "dev"
	DefaultAPIID              = "local"
	DefaultIdleTimeoutSeconds = 600
	DefaultHardTimeoutSeconds = 7200
)

// Defaults returns a Config populated with default values.
// Routes is left empty: the integration table has no useful default.
func Defaults() *Config {
	return &Config{
		Port:               DefaultPort,
		Stage:              DefaultStage,
		APIID:              DefaultAPIID,
		IntegrationMode:    ModeLambdaProxy,
		Routes:             map[string]string{},
		IdleTimeoutSeconds: DefaultIdleTimeoutSeconds,
		HardTimeoutSeconds: DefaultHardTimeoutSeconds,
	}
}
