//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/netatmo-go/testutil"
)

// realHomeDir holds the original HOME directory before TestMain overrides it.
var realHomeDir string

// testCredentialDir holds the path to .testdata/ (repo-root-relative).
// The token and config are read from here, never from production dirs.
var testCredentialDir string

// isolatedTokenPath is where the binary finds the token during the run.
var isolatedTokenPath string

// validateTestData checks that .testdata/ has the expected files before
// tests start. E2E tests can't import internal packages, so validation uses
// stdlib JSON.
func validateTestData(credDir string) {
	tokenPath := filepath.Join(credDir, testutil.TokenFileName)

	data, err := os.ReadFile(tokenPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: cannot read token file %s: %v\n", tokenPath, err)
		os.Exit(1)
	}

	var parsed map[string]json.RawMessage
	if jsonErr := json.Unmarshal(data, &parsed); jsonErr != nil {
		fmt.Fprintf(os.Stderr, "FATAL: token file %s is not valid JSON: %v\n", tokenPath, jsonErr)
		os.Exit(1)
	}

	for _, key := range []string{"access_token", "refresh_token", "valid_until"} {
		if _, ok := parsed[key]; !ok {
			fmt.Fprintf(os.Stderr, "FATAL: token file %s missing %q key\n", tokenPath, key)
			os.Exit(1)
		}
	}

	if _, statErr := os.Stat(filepath.Join(credDir, testutil.ConfigFileName)); statErr != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config.toml not found in %s\n", credDir)
		os.Exit(1)
	}
}

// setupIsolation overrides HOME and XDG directories to temp directories and
// copies the test token and config from .testdata/. The returned cleanup
// copies a rotated token back and removes the temp root.
func setupIsolation() func() {
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: cannot determine home dir: %v\n", err)
		os.Exit(1)
	}

	realHomeDir = home
	testCredentialDir = testutil.FindTestCredentialDir(testutil.FindModuleRoot(".."))
	validateTestData(testCredentialDir)

	for _, k := range []string{"NETATMO_GO_CONFIG", "NETATMO_GO_TOKEN_FILE", "NETATMO_GO_CLIENT_ID", "NETATMO_GO_CLIENT_SECRET"} {
		os.Unsetenv(k)
	}

	tempRoot, err := os.MkdirTemp("", "netatmo-e2e-isolation-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: creating isolation temp dir: %v\n", err)
		os.Exit(1)
	}

	tempHome := filepath.Join(tempRoot, "home")
	tempConfig := filepath.Join(tempRoot, "config")
	tempData := filepath.Join(tempRoot, "data")
	appConfigDir := filepath.Join(tempConfig, "netatmo-go")
	appDataDir := filepath.Join(tempData, "netatmo-go")

	for _, d := range []string{tempHome, appConfigDir, appDataDir} {
		if mkErr := os.MkdirAll(d, 0o700); mkErr != nil {
			fmt.Fprintf(os.Stderr, "FATAL: creating dir %s: %v\n", d, mkErr)
			os.Exit(1)
		}
	}

	os.Setenv("HOME", tempHome)
	os.Setenv("XDG_CONFIG_HOME", tempConfig)
	os.Setenv("XDG_DATA_HOME", tempData)

	isolatedTokenPath = filepath.Join(appDataDir, testutil.TokenFileName)
	testutil.CopyFile(filepath.Join(testCredentialDir, testutil.TokenFileName), isolatedTokenPath, 0o600)
	testutil.CopyFile(
		filepath.Join(testCredentialDir, testutil.ConfigFileName),
		filepath.Join(appConfigDir, testutil.ConfigFileName),
		0o600,
	)

	verifyIsolation(tempRoot)

	fmt.Fprintf(os.Stderr, "E2E isolation: HOME=%s XDG_DATA_HOME=%s\n", tempHome, tempData)

	return func() {
		// Netatmo rotates refresh tokens, so keep the latest one.
		if data, readErr := os.ReadFile(isolatedTokenPath); readErr == nil {
			origPath := filepath.Join(testCredentialDir, testutil.TokenFileName)
			if writeErr := os.WriteFile(origPath, data, 0o600); writeErr != nil {
				fmt.Fprintf(os.Stderr, "WARNING: cannot write rotated token back to %s: %v\n", origPath, writeErr)
			}
		}

		os.RemoveAll(tempRoot)
	}
}

// verifyIsolation crashes the process if a production path could leak into
// test execution. Runs before m.Run().
func verifyIsolation(tempRoot string) {
	crash := func(msg string) {
		fmt.Fprintf(os.Stderr, "FATAL: isolation check failed: %s\n", msg)
		os.Exit(1)
	}

	for _, v := range []string{"HOME", "XDG_DATA_HOME", "XDG_CONFIG_HOME"} {
		if val := os.Getenv(v); val == "" || !strings.HasPrefix(val, tempRoot) {
			crash(v + " not overridden to temp dir")
		}
	}

	if homeDir, _ := os.UserHomeDir(); !strings.HasPrefix(homeDir, tempRoot) {
		crash("UserHomeDir() returns " + homeDir + " (not under temp)")
	}
}

func TestIsolation_HomeOverridden(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.NotEqual(t, realHomeDir, home, "HOME should be overridden to temp dir")
}

func TestIsolation_TokenInTempDir(t *testing.T) {
	assert.NotContains(t, isolatedTokenPath, realHomeDir)

	_, err := os.Stat(isolatedTokenPath)
	assert.NoError(t, err, "token file should exist at %s", isolatedTokenPath)
}

// TestIsolation_BinaryResolvesTemp verifies that the binary resolves its
// config and token under the temp isolation directory.
func TestIsolation_BinaryResolvesTemp(t *testing.T) {
	stdout, stderr := runCLI(t, "status", "--json")

	assert.NotContains(t, stdout, realHomeDir)
	assert.NotContains(t, stderr, realHomeDir)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, isolatedTokenPath, out["token_file"])
}
