package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/netatmo-go/internal/config"
	"github.com/tonimelisma/netatmo-go/internal/tokenfile"
)

// Global flag reset pattern: newRootCmd() binds flags via StringVar/BoolVar,
// which reset the global flag variables to their defaults. Tests either set
// globals after newRootCmd() returns or pass flags through SetArgs.

// cliEnv is a temp config dir wired to a fake Netatmo server.
type cliEnv struct {
	configPath string
	tokenPath  string
}

// newCLIEnv writes a config pointing at baseURL and clears the override
// environment variables.
func newCLIEnv(t *testing.T, baseURL, clientID string) cliEnv {
	t.Helper()

	for _, k := range []string{config.EnvConfig, config.EnvClientID, config.EnvClientSecret, config.EnvTokenFile} {
		t.Setenv(k, "")
	}

	dir := t.TempDir()
	env := cliEnv{
		configPath: filepath.Join(dir, "config.toml"),
		tokenPath:  filepath.Join(dir, "token.json"),
	}

	content := fmt.Sprintf("client_id = %q\nclient_secret = \"secret\"\nbase_url = %q\nauth_timeout = \"10s\"\n",
		clientID, baseURL)
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0o600))

	return env
}

// saveToken writes a cached credential expiring at validUntil.
func (e cliEnv) saveToken(t *testing.T, access string, validUntil time.Time) {
	t.Helper()

	require.NoError(t, tokenfile.Save(e.tokenPath, tokenfile.Credential{
		AccessToken:  access,
		RefreshToken: "RT1",
		ValidUntil:   validUntil.Truncate(time.Second),
	}))
}

// run executes the CLI with the env's config and returns stdout and stderr.
func (e cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath, "--token-file", e.tokenPath, "--no-browser"}, args...))

	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), stderr.String(), err
}

// newAPIServer serves fixed bodies per path and fails on anything else.
func newAPIServer(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := routes[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)

			return
		}

		h(w, r)
	}))
	t.Cleanup(srv.Close)

	return srv
}

// safeBuffer is a bytes.Buffer safe for concurrent writers.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func saveFlags(t *testing.T) {
	t.Helper()

	oldCfg := resolvedCfg
	oldVerbose := flagVerbose
	oldQuiet := flagQuiet

	t.Cleanup(func() {
		resolvedCfg = oldCfg
		flagVerbose = oldVerbose
		flagQuiet = oldQuiet
	})
}

// --- buildLogger tests ---

func TestBuildLogger_Default(t *testing.T) {
	saveFlags(t)

	resolvedCfg = nil
	flagVerbose = false
	flagQuiet = false

	logger := buildLogger(&bytes.Buffer{})

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_ConfigLevel(t *testing.T) {
	saveFlags(t)

	resolvedCfg = &config.Resolved{Config: config.Config{LogLevel: "warn"}}
	flagVerbose = false
	flagQuiet = false

	logger := buildLogger(&bytes.Buffer{})

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
}

func TestBuildLogger_VerboseOverridesConfig(t *testing.T) {
	saveFlags(t)

	resolvedCfg = &config.Resolved{Config: config.Config{LogLevel: "error"}}
	flagVerbose = true
	flagQuiet = false

	logger := buildLogger(&bytes.Buffer{})

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_QuietWins(t *testing.T) {
	saveFlags(t)

	resolvedCfg = &config.Resolved{Config: config.Config{LogLevel: "debug"}}
	flagVerbose = true
	flagQuiet = true

	logger := buildLogger(&bytes.Buffer{})

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelError))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
}

func TestMustCLIContext_Missing(t *testing.T) {
	assert.Panics(t, func() { mustCLIContext(context.Background()) })
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	for _, name := range []string{"login", "logout", "token", "status", "homes", "schedules", "schedule"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}

	sw, _, err := cmd.Find([]string{"schedule", "switch"})
	require.NoError(t, err)
	assert.Equal(t, "switch", sw.Name())
}

func TestRootCmd_BadConfig(t *testing.T) {
	env := newCLIEnv(t, "https://api.example.test", "cid")
	require.NoError(t, os.WriteFile(env.configPath, []byte(`log_levl = "debug"`), 0o600))

	_, _, err := env.run(t, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
	assert.Contains(t, err.Error(), `did you mean "log_level"`)
}
