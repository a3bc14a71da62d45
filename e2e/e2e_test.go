//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/netatmo-go/testutil"
)

var binaryPath string

func TestMain(m *testing.M) {
	testutil.LoadDotEnv(filepath.Join(testutil.FindModuleRoot(".."), ".env"))

	tmpDir, err := os.MkdirTemp("", "netatmo-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating temp dir: %v\n", err)
		os.Exit(1)
	}

	binaryPath = filepath.Join(tmpDir, "netatmo-go")

	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	cmd.Dir = testutil.FindModuleRoot("..")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "building binary: %v\n", err)
		os.Exit(1)
	}

	cleanup := setupIsolation()
	code := m.Run()

	cleanup()
	os.RemoveAll(tmpDir)
	os.Exit(code)
}

func runCLI(t *testing.T, args ...string) (string, string) {
	t.Helper()

	cmd := exec.Command(binaryPath, append([]string{"--no-browser"}, args...)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("CLI command %v failed: %v\nstdout: %s\nstderr: %s", args, err, stdout.String(), stderr.String())
	}

	return stdout.String(), stderr.String()
}

func TestE2E_ReadOnly(t *testing.T) {
	t.Run("token", func(t *testing.T) {
		stdout, _ := runCLI(t, "token")
		assert.NotEmpty(t, strings.TrimSpace(stdout))
	})

	t.Run("status", func(t *testing.T) {
		stdout, _ := runCLI(t, "status", "--json")

		var out map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &out))
		assert.Equal(t, "valid", out["state"])
	})

	t.Run("homes", func(t *testing.T) {
		stdout, _ := runCLI(t, "homes", "--json")

		var homes []map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &homes))
		assert.NotEmpty(t, homes, "test account should have at least one home")
	})

	t.Run("schedules", func(t *testing.T) {
		stdout, _ := runCLI(t, "schedules", "--json")

		var schedules []map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &schedules))

		for _, s := range schedules {
			assert.NotEmpty(t, s["id"], "every listed schedule has an effective id")
		}
	})
}
