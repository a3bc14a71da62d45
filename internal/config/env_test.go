package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadEnvOverrides_AllSet(t *testing.T) {
	t.Setenv("NETATMO_GO_CONFIG", "/custom/config.toml")
	t.Setenv("NETATMO_GO_CLIENT_ID", "cid")
	t.Setenv("NETATMO_GO_CLIENT_SECRET", "csecret")
	t.Setenv("NETATMO_GO_TOKEN_FILE", "/custom/token.json")

	overrides := ReadEnvOverrides()
	assert.Equal(t, "/custom/config.toml", overrides.ConfigPath)
	assert.Equal(t, "cid", overrides.ClientID)
	assert.Equal(t, "csecret", overrides.ClientSecret)
	assert.Equal(t, "/custom/token.json", overrides.TokenFile)
}

func TestReadEnvOverrides_NoneSet(t *testing.T) {
	clearEnv(t)

	assert.Equal(t, EnvOverrides{}, ReadEnvOverrides())
}
