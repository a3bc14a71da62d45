package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Provider paths, relative to the API base URL.
const (
	authorizePath = "/oauth2/authorize"
	tokenPath     = "/oauth2/token"
)

// DefaultAuthTimeout bounds how long the callback server waits for the
// browser to come back.
const DefaultAuthTimeout = 3 * time.Minute

// Callback server defaults.
const (
	defaultListenAddr   = "127.0.0.1:0"
	defaultRedirectHost = "localhost"
	callbackPath        = "/callback"
	shutdownTimeout     = 5 * time.Second
)

// stateTokenBytes is the number of random bytes for the state parameter.
const stateTokenBytes = 16

// URLOpener presents the authorization URL to the user, typically by
// launching a browser. Tests substitute a function that performs the
// redirect programmatically.
type URLOpener func(authURL string) error

// Grant is the outcome of a successful interactive authorization.
type Grant struct {
	Code        string
	RedirectURI string // must be echoed in the code exchange
}

// AuthorizationRequest holds the query parameters of one authorization
// attempt. It is never persisted.
type AuthorizationRequest struct {
	ClientID    string
	RedirectURI string
	Scope       ScopeSet
	State       string
}

// BuildAuthorizationURL returns <base>/oauth2/authorize with client_id,
// redirect_uri, scope, and state, in that order.
func BuildAuthorizationURL(base string, req AuthorizationRequest) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + authorizePath)
	if err != nil {
		return "", fmt.Errorf("auth: invalid base URL %q: %w", base, err)
	}

	params := [][2]string{
		{"client_id", req.ClientID},
		{"redirect_uri", req.RedirectURI},
		{"scope", req.Scope.String()},
		{"state", req.State},
	}

	// url.Values.Encode sorts keys; the order here is fixed instead.
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}

		b.WriteString(url.QueryEscape(p[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[1]))
	}

	u.RawQuery = b.String()

	return u.String(), nil
}

// Authorizer obtains an authorization code interactively.
type Authorizer interface {
	Authorize(ctx context.Context, open URLOpener) (Grant, error)
}

// CallbackConfig configures a CallbackAuthorizer. Zero values select defaults.
type CallbackConfig struct {
	BaseURL  string
	ClientID string
	Scope    ScopeSet

	// ListenAddr is the address the callback server binds. Use a fixed port
	// when the provider only accepts a pre-registered redirect URI.
	ListenAddr   string
	RedirectHost string
	Timeout      time.Duration

	// Prompt receives the authorization URL when the opener fails.
	Prompt io.Writer
}

// CallbackAuthorizer runs the authorization code flow against a one-shot
// HTTP server on the loopback interface.
type CallbackAuthorizer struct {
	cfg      CallbackConfig
	logger   *slog.Logger
	newState func() (string, error)
}

// NewCallbackAuthorizer fills defaults into cfg and returns an authorizer.
func NewCallbackAuthorizer(cfg CallbackConfig, logger *slog.Logger) *CallbackAuthorizer {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}

	if cfg.RedirectHost == "" {
		cfg.RedirectHost = defaultRedirectHost
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultAuthTimeout
	}

	if cfg.Prompt == nil {
		cfg.Prompt = os.Stderr
	}

	return &CallbackAuthorizer{cfg: cfg, logger: logger, newState: generateState}
}

// callbackResult carries the authorization code or error from the handler.
type callbackResult struct {
	code string
	err  error
}

// Authorize starts the callback server, hands the authorization URL to open,
// and blocks until the first redirect arrives, the timeout elapses, or ctx is
// canceled. The server is shut down before returning on every path.
func (a *CallbackAuthorizer) Authorize(ctx context.Context, open URLOpener) (Grant, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()

	srv, port, err := startCallbackServer(ctx, a.cfg.ListenAddr, mux, resultCh, a.logger)
	if err != nil {
		return Grant{}, &AuthorizationError{Reason: ReasonListener, Err: err}
	}

	defer shutdownCallbackServer(srv, a.logger)

	redirectURI := "http://" + net.JoinHostPort(a.cfg.RedirectHost, strconv.Itoa(port)) + callbackPath

	state, err := a.newState()
	if err != nil {
		return Grant{}, &AuthorizationError{Reason: ReasonSetup, Err: fmt.Errorf("generating state token: %w", err)}
	}

	registerCallbackHandler(mux, state, resultCh)

	authURL, err := BuildAuthorizationURL(a.cfg.BaseURL, AuthorizationRequest{
		ClientID:    a.cfg.ClientID,
		RedirectURI: redirectURI,
		Scope:       a.cfg.Scope,
		State:       state,
	})
	if err != nil {
		return Grant{}, &AuthorizationError{Reason: ReasonSetup, Err: err}
	}

	a.launchBrowser(authURL, open)

	code, err := waitForCallback(ctx, resultCh)
	if err != nil {
		return Grant{}, err
	}

	a.logger.Info("received authorization code")

	return Grant{Code: code, RedirectURI: redirectURI}, nil
}

// startCallbackServer binds addr and serves mux. Returns the server and the
// bound port.
func startCallbackServer(
	ctx context.Context,
	addr string,
	mux *http.ServeMux,
	resultCh chan<- callbackResult,
	logger *slog.Logger,
) (*http.Server, int, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, 0, fmt.Errorf("binding callback listener on %s: %w", addr, err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, 0, errors.New("listener address is not TCP")
	}

	logger.Info("callback server listening", slog.Int("port", tcpAddr.Port))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			deliver(resultCh, callbackResult{
				err: &AuthorizationError{Reason: ReasonListener, Err: serveErr},
			})
		}
	}()

	return srv, tcpAddr.Port, nil
}

// registerCallbackHandler adds the callback route. Only the first request is
// consumed; later ones are answered with 409.
func registerCallbackHandler(mux *http.ServeMux, state string, resultCh chan<- callbackResult) {
	var handled atomic.Bool

	mux.HandleFunc("GET "+callbackPath, func(w http.ResponseWriter, r *http.Request) {
		if !handled.CompareAndSwap(false, true) {
			http.Error(w, "Authorization already completed", http.StatusConflict)
			return
		}

		deliver(resultCh, handleOAuthCallback(w, r, state))
	})
}

// handleOAuthCallback validates state, then the provider error, then the code.
func handleOAuthCallback(w http.ResponseWriter, r *http.Request, state string) callbackResult {
	q := r.URL.Query()

	if subtle.ConstantTimeCompare([]byte(q.Get("state")), []byte(state)) != 1 {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)

		return callbackResult{err: &AuthorizationError{
			Reason: ReasonStateMismatch,
			Err:    errors.New("state parameter mismatch (possible CSRF)"),
		}}
	}

	if errParam := q.Get("error"); errParam != "" {
		http.Error(w, "Authorization failed: "+errParam, http.StatusBadRequest)

		return callbackResult{err: &AuthorizationError{
			Reason: ReasonProviderError,
			Err:    fmt.Errorf("provider returned %s: %s", errParam, q.Get("error_description")),
		}}
	}

	code := q.Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)

		return callbackResult{err: &AuthorizationError{
			Reason: ReasonMissingCode,
			Err:    errors.New("callback missing authorization code"),
		}}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Authentication successful</h1>"+
		"<p>You can close this window and return to the terminal.</p></body></html>")

	return callbackResult{code: code}
}

// deliver sends r unless a result is already pending.
func deliver(resultCh chan<- callbackResult, r callbackResult) {
	select {
	case resultCh <- r:
	default:
	}
}

// shutdownCallbackServer stops the server and releases its port.
func shutdownCallbackServer(srv *http.Server, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("callback server shutdown error", slog.String("error", err.Error()))
		_ = srv.Close()
	}
}

// launchBrowser calls open. On failure the URL is written to the prompt so
// the user can copy it; the flow keeps waiting either way.
func (a *CallbackAuthorizer) launchBrowser(authURL string, open URLOpener) {
	a.logger.Info("opening browser for authorization")

	if open == nil {
		fmt.Fprintf(a.cfg.Prompt, "Open this URL in your browser:\n%s\n", authURL)
		return
	}

	if openErr := open(authURL); openErr != nil {
		a.logger.Warn("failed to open browser, printing URL",
			slog.String("error", openErr.Error()),
		)

		fmt.Fprintf(a.cfg.Prompt, "Open this URL in your browser:\n%s\n", authURL)
	}
}

// waitForCallback blocks until the callback fires or ctx is done.
func waitForCallback(ctx context.Context, resultCh <-chan callbackResult) (string, error) {
	select {
	case result := <-resultCh:
		if result.err != nil {
			return "", result.err
		}

		return result.code, nil
	case <-ctx.Done():
		reason := ReasonCanceled
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = ReasonTimeout
		}

		return "", &AuthorizationError{Reason: reason, Err: ctx.Err()}
	}
}

// generateState returns a random hex string for the state parameter.
func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
