package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/netatmo-go/internal/auth"
	"github.com/tonimelisma/netatmo-go/internal/tokenfile"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize netatmo-go in the browser",
		Long: `Run the OAuth2 authorization code flow even if a token is cached.
A local callback server receives the redirect from Netatmo.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved token cache",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, refreshing or authorizing if needed",
		Args:  cobra.NoArgs,
		RunE:  runToken,
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show token state and expiry",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	mgr, err := cc.newManager()
	if err != nil {
		return err
	}

	tok, err := mgr.Login(cmd.Context())
	if tok == "" {
		return err
	}

	if err != nil {
		if failErr := warnOrFail(cc, err); failErr != nil {
			return failErr
		}
	}

	cc.Logger.Info("login successful", slog.String("token_file", cc.Cfg.TokenFile))
	cc.Statusf("Login successful. Token valid until %s.\n", formatExpiry(mgr.Status().ValidUntil, time.Now()))

	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	mgr, err := cc.newManager()

	switch {
	case errors.Is(err, auth.ErrMissingClientID):
		// No manager without a client id; the cache file is all there is to clear.
		if err := tokenfile.Remove(cc.Cfg.TokenFile); err != nil {
			return err
		}

		cc.Logger.Info("token cache removed", slog.String("path", cc.Cfg.TokenFile))
	case err != nil:
		return err
	default:
		if err := mgr.Logout(); err != nil {
			return err
		}
	}

	cc.Statusf("Logged out.\n")

	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	mgr, err := cc.newManager()
	if err != nil {
		return err
	}

	tok, err := mgr.Token(cmd.Context())
	if tok == "" {
		return err
	}

	if err != nil {
		if failErr := warnOrFail(cc, err); failErr != nil {
			return failErr
		}
	}

	fmt.Fprintln(cc.Stdout, tok)

	return nil
}

// warnOrFail decides what to do with an error that came back alongside a
// usable token. A failed persist or refresh is logged; anything else fails.
func warnOrFail(cc *CLIContext, err error) error {
	var fileErr *tokenfile.FileAccessError
	if errors.As(err, &fileErr) {
		cc.Logger.Warn("token obtained but not saved", slog.String("error", err.Error()))
		return nil
	}

	var exchErr *auth.TokenExchangeError
	if errors.As(err, &exchErr) {
		cc.Logger.Warn("token refresh failed, using cached token", slog.String("error", err.Error()))
		return nil
	}

	return err
}

// statusOutput is the JSON schema for `status --json`. It never carries
// token values.
type statusOutput struct {
	ConfigPath      string     `json:"config_path"`
	TokenFile       string     `json:"token_file"`
	State           string     `json:"state"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
	HasRefreshToken bool       `json:"has_refresh_token"`
	Scopes          string     `json:"scopes"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	mgr, err := cc.newManager()
	if err != nil {
		return err
	}

	st := mgr.Status()

	out := statusOutput{
		ConfigPath:      cc.Cfg.ConfigPath,
		TokenFile:       cc.Cfg.TokenFile,
		State:           st.State.String(),
		HasRefreshToken: st.HasRefreshToken,
		Scopes:          cc.Cfg.Scope.String(),
	}

	if !st.ValidUntil.IsZero() {
		vu := st.ValidUntil
		out.ValidUntil = &vu
	}

	if cc.JSON {
		return writeJSON(cc.Stdout, out)
	}

	fmt.Fprintf(cc.Stdout, "Config:        %s\n", out.ConfigPath)
	fmt.Fprintf(cc.Stdout, "Token file:    %s\n", out.TokenFile)
	fmt.Fprintf(cc.Stdout, "State:         %s\n", out.State)
	fmt.Fprintf(cc.Stdout, "Valid until:   %s\n", formatExpiry(st.ValidUntil, time.Now()))
	fmt.Fprintf(cc.Stdout, "Refresh token: %t\n", out.HasRefreshToken)
	fmt.Fprintf(cc.Stdout, "Scopes:        %s\n", out.Scopes)

	return nil
}
