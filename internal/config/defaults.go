package config

import "github.com/tonimelisma/netatmo-go/internal/netatmo"

// Default values for configuration options. These are layer 0 of the
// override chain and work without any config file once a client id is set.
const (
	defaultRedirectHost   = "localhost"
	defaultAuthTimeout    = "3m"
	defaultLogLevel       = "info"
	defaultNetworkTimeout = "30s"
	loopbackHost          = "127.0.0.1"
)

// DefaultConfig returns a Config populated with all default values.
// It is the starting point for TOML decoding so unset fields keep defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      netatmo.DefaultBaseURL,
		RedirectHost: defaultRedirectHost,
		AuthTimeout:  defaultAuthTimeout,
		LogLevel:     defaultLogLevel,
		Network: NetworkConfig{
			Timeout: defaultNetworkTimeout,
		},
	}
}
