// Package auth manages the Netatmo OAuth2 credential lifecycle: interactive
// authorization through a loopback redirect, refresh-token renewal, and
// reuse of a cached token. Every successful exchange is persisted through
// the tokenfile package.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tonimelisma/netatmo-go/internal/tokenfile"
)

// ExpiryGrace is the lead time before valid_until at which a token is
// refreshed instead of reused.
const ExpiryGrace = time.Minute

// flightKey is the single singleflight key: one credential per manager.
const flightKey = "credential"

// State is the credential lifecycle state.
type State int

// Lifecycle states. Refreshing and Authorizing are only observed while an
// exchange is in flight.
const (
	StateNoToken State = iota
	StateValid
	StateExpiringSoon
	StateRefreshing
	StateAuthorizing
)

func (s State) String() string {
	switch s {
	case StateNoToken:
		return "no_token"
	case StateValid:
		return "valid"
	case StateExpiringSoon:
		return "expiring_soon"
	case StateRefreshing:
		return "refreshing"
	case StateAuthorizing:
		return "authorizing"
	default:
		return "unknown"
	}
}

// deriveState classifies cred at time now.
func deriveState(cred tokenfile.Credential, now time.Time) State {
	if !cred.HasToken() {
		return StateNoToken
	}

	if cred.ValidUntil.Sub(now) > ExpiryGrace {
		return StateValid
	}

	return StateExpiringSoon
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	TokenPath    string
	BaseURL      string
	ClientID     string // falls back to the cached value when empty
	ClientSecret string // falls back to the cached value when empty
	Scope        ScopeSet

	// Callback configures the default CallbackAuthorizer. BaseURL, ClientID,
	// and Scope are filled in by the manager.
	Callback CallbackConfig

	// Authorizer replaces the default CallbackAuthorizer.
	Authorizer Authorizer
	Opener     URLOpener
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Status is a snapshot of the credential state without any secrets.
type Status struct {
	State           State
	ValidUntil      time.Time
	HasRefreshToken bool
}

// Manager owns a single credential and hands out valid access tokens.
// Safe for concurrent use: exchanges are serialized so a refresh token is
// never spent twice.
type Manager struct {
	mu    sync.Mutex
	cred  tokenfile.Credential // replaced wholesale, never mutated in place
	phase State                // StateRefreshing/StateAuthorizing while in flight, else StateNoToken

	flight singleflight.Group

	tokenPath    string
	baseURL      string
	clientID     string
	clientSecret string
	scope        ScopeSet
	authorizer   Authorizer
	opener       URLOpener
	httpClient   *http.Client
	logger       *slog.Logger
	now          func() time.Time
}

// NewManager loads the token cache and returns a Manager. An unreadable cache
// is logged and treated as empty.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.TokenPath == "" {
		return nil, errors.New("auth: token path is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cached, err := tokenfile.Load(opts.TokenPath)
	if err != nil {
		logger.Warn("ignoring unreadable token cache",
			slog.String("path", opts.TokenPath),
			slog.String("error", err.Error()),
		)

		cached = nil
	}

	clientID, clientSecret := opts.ClientID, opts.ClientSecret
	if cached != nil {
		if clientID == "" {
			clientID = cached.ClientID
		}

		if clientSecret == "" {
			clientSecret = cached.ClientSecret
		}
	}

	if clientID == "" {
		return nil, ErrMissingClientID
	}

	scope := opts.Scope
	if scope.Len() == 0 {
		scope = NewScopeSet(DefaultScope)
	}

	m := &Manager{
		cred:         tokenfile.Credential{ClientID: clientID, ClientSecret: clientSecret},
		tokenPath:    opts.TokenPath,
		baseURL:      opts.BaseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        scope,
		authorizer:   opts.Authorizer,
		opener:       opts.Opener,
		httpClient:   opts.HTTPClient,
		logger:       logger,
		now:          time.Now,
	}

	if cached.HasToken() {
		m.cred.AccessToken = cached.AccessToken
		m.cred.RefreshToken = cached.RefreshToken
		m.cred.ValidUntil = cached.ValidUntil
	}

	if m.authorizer == nil {
		cb := opts.Callback
		cb.BaseURL = opts.BaseURL
		cb.ClientID = clientID
		cb.Scope = scope
		m.authorizer = NewCallbackAuthorizer(cb, logger)
	}

	logger.Info("token cache loaded",
		slog.String("path", opts.TokenPath),
		slog.String("state", deriveState(m.cred, m.now()).String()),
		slog.Time("valid_until", m.cred.ValidUntil),
	)

	return m, nil
}

// snapshot returns the current credential and its derived state.
func (m *Manager) snapshot() (tokenfile.Credential, State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cred, deriveState(m.cred, m.now())
}

// Status reports the current lifecycle state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := deriveState(m.cred, m.now())
	if m.phase != StateNoToken {
		st = m.phase
	}

	return Status{
		State:           st,
		ValidUntil:      m.cred.ValidUntil,
		HasRefreshToken: m.cred.RefreshToken != "",
	}
}

// Token returns a valid access token, authorizing or refreshing as needed.
//
// A non-empty token is returned together with a non-nil error in two cases:
// the refresh failed (*TokenExchangeError, the token is the stale one) or the
// new credential could not be persisted (*tokenfile.FileAccessError, the
// token is fresh). The caller decides whether to proceed.
func (m *Manager) Token(ctx context.Context) (string, error) {
	cred, state := m.snapshot()
	if state == StateValid {
		return cred.AccessToken, nil
	}

	return m.do(ctx, m.transition)
}

// Login runs interactive authorization regardless of the cached state.
func (m *Manager) Login(ctx context.Context) (string, error) {
	return m.do(ctx, m.authorize)
}

// Logout removes the token cache and forgets the in-memory tokens.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.cred = tokenfile.Credential{ClientID: m.clientID, ClientSecret: m.clientSecret}
	m.mu.Unlock()

	if err := tokenfile.Remove(m.tokenPath); err != nil {
		return err
	}

	m.logger.Info("token cache removed", slog.String("path", m.tokenPath))

	return nil
}

// do runs fn through the singleflight group. Concurrent callers share one
// exchange; the first caller's ctx governs it.
func (m *Manager) do(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	v, err, shared := m.flight.Do(flightKey, func() (any, error) {
		tok, err := fn(ctx)
		return tok, err
	})

	if shared {
		m.logger.Debug("shared in-flight token exchange")
	}

	tok, _ := v.(string)

	return tok, err
}

// transition re-evaluates the state inside the flight, since another caller
// may have finished an exchange since the snapshot in Token.
func (m *Manager) transition(ctx context.Context) (string, error) {
	cred, state := m.snapshot()

	switch state {
	case StateValid:
		return cred.AccessToken, nil
	case StateNoToken:
		return m.authorize(ctx)
	default:
		return m.refresh(ctx, cred)
	}
}

// authorize drives the interactive flow and the code exchange. Nothing is
// mutated on failure.
func (m *Manager) authorize(ctx context.Context) (string, error) {
	m.setPhase(StateAuthorizing)
	defer m.setPhase(StateNoToken)

	m.logger.Info("starting interactive authorization")

	grant, err := m.authorizer.Authorize(ctx, m.opener)
	if err != nil {
		return "", err
	}

	next, err := m.exchangeCode(ctx, grant)
	if err != nil {
		return "", err
	}

	return next.AccessToken, m.commit(next)
}

// refresh exchanges the refresh token. On failure the stale access token is
// returned with the error.
func (m *Manager) refresh(ctx context.Context, cred tokenfile.Credential) (string, error) {
	m.setPhase(StateRefreshing)
	defer m.setPhase(StateNoToken)

	if cred.RefreshToken == "" {
		return cred.AccessToken, &TokenExchangeError{
			GrantType: grantRefreshToken,
			Err:       errors.New("no refresh token cached"),
		}
	}

	next, err := m.exchangeRefresh(ctx, cred.RefreshToken)
	if err != nil {
		m.logger.Warn("token refresh failed, returning cached token",
			slog.Time("valid_until", cred.ValidUntil),
			slog.String("error", err.Error()),
		)

		return cred.AccessToken, err
	}

	return next.AccessToken, m.commit(next)
}

// commit installs next and persists it. A persistence failure leaves the
// in-memory credential updated.
func (m *Manager) commit(next tokenfile.Credential) error {
	m.mu.Lock()
	m.cred = next
	m.mu.Unlock()

	if err := tokenfile.Save(m.tokenPath, next); err != nil {
		m.logger.Warn("failed to persist token",
			slog.String("path", m.tokenPath),
			slog.String("error", err.Error()),
		)

		return err
	}

	m.logger.Info("token persisted",
		slog.String("path", m.tokenPath),
		slog.Time("valid_until", next.ValidUntil),
	)

	return nil
}

func (m *Manager) setPhase(s State) {
	m.mu.Lock()
	m.phase = s
	m.mu.Unlock()
}
