// Command integration-bootstrap runs the interactive login once and stores
// the resulting token in .testdata/ for the E2E suite.
//
// Usage: go run ./cmd/integration-bootstrap --client-id ID --client-secret SECRET
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/tonimelisma/netatmo-go/internal/auth"
	"github.com/tonimelisma/netatmo-go/internal/netatmo"
	"github.com/tonimelisma/netatmo-go/testutil"
)

func main() {
	clientID := flag.String("client-id", os.Getenv("NETATMO_GO_CLIENT_ID"), "Netatmo app client id")
	clientSecret := flag.String("client-secret", os.Getenv("NETATMO_GO_CLIENT_SECRET"), "Netatmo app client secret")
	listen := flag.String("listen", "127.0.0.1:0", "callback listen address")
	flag.Parse()

	dir := filepath.Join(testutil.FindModuleRoot("."), ".testdata")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := slog.Default()

	mgr, err := auth.NewManager(auth.ManagerOptions{
		TokenPath:    filepath.Join(dir, testutil.TokenFileName),
		BaseURL:      netatmo.DefaultBaseURL,
		ClientID:     *clientID,
		ClientSecret: *clientSecret,
		Scope:        auth.NewScopeSet(auth.ReadThermostat, auth.WriteThermostat),
		Callback:     auth.CallbackConfig{ListenAddr: *listen},
		HTTPClient:   http.DefaultClient,
		Logger:       logger,
	})
	if err != nil {
		fail(err)
	}

	if _, err := mgr.Login(ctx); err != nil {
		fail(err)
	}

	// The E2E config carries only the client credentials; the token path is
	// set by the test harness.
	cfg := fmt.Sprintf("client_id = %q\nclient_secret = %q\nscopes = [\"read_thermostat\", \"write_thermostat\"]\n",
		*clientID, *clientSecret)
	if err := os.WriteFile(filepath.Join(dir, testutil.ConfigFileName), []byte(cfg), 0o600); err != nil {
		fail(err)
	}

	fmt.Println("Login successful. Token saved to " + dir)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
	os.Exit(1)
}
