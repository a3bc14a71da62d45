package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/netatmo-go/internal/auth"
	"github.com/tonimelisma/netatmo-go/internal/config"
	"github.com/tonimelisma/netatmo-go/internal/netatmo"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagTokenFile  string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
	flagNoBrowser  bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
var resolvedCfg *config.Resolved

// CLIContext carries per-invocation state to subcommands through the
// command's context.
type CLIContext struct {
	Cfg       *config.Resolved
	Logger    *slog.Logger
	Quiet     bool
	JSON      bool
	NoBrowser bool
	Stdout    io.Writer
	Stderr    io.Writer
}

type cliContextKey struct{}

// mustCLIContext returns the CLIContext installed by the root pre-run. It
// panics when called outside a command, which is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("CLIContext missing from command context")
	}

	return cc
}

// Statusf prints a status message to stderr unless quiet mode is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Stderr, cc.Quiet, format, args...)
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "netatmo-go",
		Short:   "Netatmo CLI client",
		Long:    "A command-line client for Netatmo homes and heating schedules.",
		Version: version,
		// Errors and usage are printed by main.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(); err != nil {
				return err
			}

			cc := &CLIContext{
				Cfg:       resolvedCfg,
				Logger:    buildLogger(cmd.ErrOrStderr()),
				Quiet:     flagQuiet,
				JSON:      flagJSON,
				NoBrowser: flagNoBrowser,
				Stdout:    cmd.OutOrStdout(),
				Stderr:    cmd.ErrOrStderr(),
			}

			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagTokenFile, "token-file", "", "token cache path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.PersistentFlags().BoolVar(&flagNoBrowser, "no-browser", false, "print the authorization URL instead of opening a browser")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newHomesCmd())
	cmd.AddCommand(newSchedulesCmd())
	cmd.AddCommand(newScheduleCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the override chain
// and stores the result in resolvedCfg.
func loadConfig() error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
		TokenFile:  flagTokenFile,
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved

	return nil
}

// buildLogger creates an slog.Logger writing to w. The config-file log level
// is the baseline; --verbose and --quiet override it.
func buildLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo

	if resolvedCfg != nil {
		switch resolvedCfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// httpClient returns an HTTP client with the configured timeout.
func (cc *CLIContext) httpClient() *http.Client {
	return &http.Client{Timeout: cc.Cfg.NetworkTimeout}
}

// newManager builds the token manager from the resolved configuration.
func (cc *CLIContext) newManager() (*auth.Manager, error) {
	var opener auth.URLOpener
	if !cc.NoBrowser && stdinIsTerminal() {
		opener = openBrowser
	}

	mgr, err := auth.NewManager(auth.ManagerOptions{
		TokenPath:    cc.Cfg.TokenFile,
		BaseURL:      cc.Cfg.BaseURL,
		ClientID:     cc.Cfg.ClientID,
		ClientSecret: cc.Cfg.ClientSecret,
		Scope:        cc.Cfg.Scope,
		Callback: auth.CallbackConfig{
			ListenAddr:   cc.Cfg.ListenAddr(),
			RedirectHost: cc.Cfg.RedirectHost,
			Timeout:      cc.Cfg.AuthTimeout,
			Prompt:       cc.Stderr,
		},
		Opener:     opener,
		HTTPClient: cc.httpClient(),
		Logger:     cc.Logger,
	})
	if errors.Is(err, auth.ErrMissingClientID) {
		return nil, fmt.Errorf("%w: set client_id in the config file or %s", err, config.EnvClientID)
	}

	return mgr, err
}

// newAPIClient builds a Netatmo API client authorized by mgr.
func (cc *CLIContext) newAPIClient(mgr *auth.Manager) *netatmo.Client {
	return netatmo.NewClient(cc.Cfg.BaseURL, cc.httpClient(), mgr, cc.Logger, cc.Cfg.Network.UserAgent)
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
