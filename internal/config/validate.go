package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/tonimelisma/netatmo-go/internal/auth"
)

// Validation range constants.
const (
	maxPort           = 65535
	minAuthTimeout    = 10 * time.Second
	minNetworkTimeout = 1 * time.Second
)

// Validate checks all configuration values and returns all errors found,
// joined, so a user can fix every problem in one pass. A missing client id
// is not an error here: it may still come from the environment or the
// token cache.
func Validate(cfg *Config) error {
	var errs []error

	if _, err := auth.ParseScopeSet(cfg.Scopes); err != nil {
		errs = append(errs, fmt.Errorf("scopes: %w", err))
	}

	errs = append(errs, validateBaseURL(cfg.BaseURL)...)

	errs = append(errs, validateRedirectHost(cfg.RedirectHost)...)

	if cfg.RedirectPort < 0 || cfg.RedirectPort > maxPort {
		errs = append(errs, fmt.Errorf("redirect_port: must be between 0 and %d, got %d",
			maxPort, cfg.RedirectPort))
	}

	errs = append(errs, validateDurationMin("auth_timeout", cfg.AuthTimeout, minAuthTimeout)...)
	errs = append(errs, validateLogLevel(cfg.LogLevel)...)
	errs = append(errs, validateDurationMin("network.timeout", cfg.Network.Timeout, minNetworkTimeout)...)

	return errors.Join(errs...)
}

func validateBaseURL(raw string) []error {
	u, err := url.Parse(raw)
	if err != nil {
		return []error{fmt.Errorf("base_url: %w", err)}
	}

	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return []error{fmt.Errorf("base_url: must be an absolute http(s) URL, got %q", raw)}
	}

	return nil
}

// validateRedirectHost requires a loopback name or address: the receiver
// only listens on loopback, so any other host is unreachable.
func validateRedirectHost(host string) []error {
	if host == "" {
		return []error{errors.New("redirect_host: must not be empty")}
	}

	if strings.EqualFold(host, "localhost") || loopbackIP(host) != nil {
		return nil
	}

	return []error{fmt.Errorf("redirect_host: must be localhost or a loopback address, got %q", host)}
}

// loopbackIP parses host as a bare loopback IP literal. Returns nil for
// names, bracketed forms, and non-loopback addresses.
func loopbackIP(host string) net.IP {
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return nil
	}

	return ip
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)}
	}

	return nil
}
