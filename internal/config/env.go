package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig       = "NETATMO_GO_CONFIG"
	EnvClientID     = "NETATMO_GO_CLIENT_ID"
	EnvClientSecret = "NETATMO_GO_CLIENT_SECRET"
	EnvTokenFile    = "NETATMO_GO_TOKEN_FILE"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath   string // NETATMO_GO_CONFIG: override config file path
	ClientID     string // NETATMO_GO_CLIENT_ID
	ClientSecret string // NETATMO_GO_CLIENT_SECRET
	TokenFile    string // NETATMO_GO_TOKEN_FILE: token cache path
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
		TokenFile:    os.Getenv(EnvTokenFile),
	}
}
