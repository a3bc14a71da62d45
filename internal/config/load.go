package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tonimelisma/netatmo-go/internal/auth"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal with "did you mean?" suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	// Config path: CLI > env > default.
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if env.ClientID != "" {
		cfg.ClientID = env.ClientID
	}

	if env.ClientSecret != "" {
		cfg.ClientSecret = env.ClientSecret
	}

	if env.TokenFile != "" {
		cfg.TokenFile = env.TokenFile
	}

	if cli.TokenFile != "" {
		cfg.TokenFile = cli.TokenFile
	}

	if cfg.TokenFile == "" {
		cfg.TokenFile = DefaultTokenPath()
	}

	cfg.TokenFile = expandTilde(cfg.TokenFile)

	return resolve(cfg, cfgPath)
}

// resolve parses the validated string settings into a Resolved.
func resolve(cfg *Config, cfgPath string) (*Resolved, error) {
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	if cfg.TokenFile == "" {
		return nil, errors.New("config: no token file path (set token_file or " + EnvTokenFile + ")")
	}

	// Validate has already checked every field parsed below.
	scope, _ := auth.ParseScopeSet(cfg.Scopes)
	authTimeout, _ := time.ParseDuration(cfg.AuthTimeout)
	netTimeout, _ := time.ParseDuration(cfg.Network.Timeout)

	return &Resolved{
		Config:         *cfg,
		ConfigPath:     cfgPath,
		Scope:          scope,
		AuthTimeout:    authTimeout,
		NetworkTimeout: netTimeout,
	}, nil
}
