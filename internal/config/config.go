// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for netatmo-go. Values are layered
// defaults -> config file -> environment -> CLI flags.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/tonimelisma/netatmo-go/internal/auth"
)

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	ClientID     string        `toml:"client_id"`
	ClientSecret string        `toml:"client_secret"`
	TokenFile    string        `toml:"token_file"`
	Scopes       []string      `toml:"scopes"`
	BaseURL      string        `toml:"base_url"`
	RedirectHost string        `toml:"redirect_host"`
	RedirectPort int           `toml:"redirect_port"`
	AuthTimeout  string        `toml:"auth_timeout"`
	LogLevel     string        `toml:"log_level"`
	Network      NetworkConfig `toml:"network"`
}

// NetworkConfig controls the API HTTP client.
type NetworkConfig struct {
	Timeout   string `toml:"timeout"`
	UserAgent string `toml:"user_agent"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Empty strings mean "not specified".
type CLIOverrides struct {
	ConfigPath string // --config
	TokenFile  string // --token-file
}

// Resolved is the final configuration after all layers are applied, with
// string settings parsed into their typed forms.
type Resolved struct {
	Config

	ConfigPath     string
	Scope          auth.ScopeSet
	AuthTimeout    time.Duration
	NetworkTimeout time.Duration
}

// ListenAddr is the loopback address the redirect receiver binds: the
// redirect host itself when it is an IP literal, 127.0.0.1 otherwise.
// Port 0 picks an ephemeral port.
func (r *Resolved) ListenAddr() string {
	host := loopbackHost
	if ip := loopbackIP(r.RedirectHost); ip != nil {
		host = ip.String()
	}

	return net.JoinHostPort(host, strconv.Itoa(r.RedirectPort))
}
