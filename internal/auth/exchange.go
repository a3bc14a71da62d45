package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/netatmo-go/internal/tokenfile"
)

// Grant types sent to the token endpoint.
const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
)

// maxExpiresIn caps expires_in. Larger values overflow time.Duration or
// point at a provider bug.
const maxExpiresIn = 10 * 365 * 24 * 60 * 60

// errMalformedResponse marks a token response that lacks required fields.
var errMalformedResponse = errors.New("malformed token response")

// oauthConfig builds the oauth2 configuration for the token endpoint. Client
// credentials travel in the form body, as the provider expects.
func (m *Manager) oauthConfig(redirectURI string) *oauth2.Config {
	base := strings.TrimRight(m.baseURL, "/")

	return &oauth2.Config{
		ClientID:     m.clientID,
		ClientSecret: m.clientSecret,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + authorizePath,
			TokenURL:  base + tokenPath,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// httpContext routes oauth2's requests through the manager's HTTP client.
func (m *Manager) httpContext(ctx context.Context) context.Context {
	if m.httpClient == nil {
		return ctx
	}

	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// exchangeCode trades an authorization code for tokens:
// grant_type=authorization_code&client_id&client_secret&code&redirect_uri&scope.
func (m *Manager) exchangeCode(ctx context.Context, grant Grant) (tokenfile.Credential, error) {
	cfg := m.oauthConfig(grant.RedirectURI)

	m.logger.Info("exchanging authorization code for token")

	tok, err := cfg.Exchange(m.httpContext(ctx), grant.Code,
		oauth2.SetAuthURLParam("scope", m.scope.String()),
	)
	if err != nil {
		return tokenfile.Credential{}, &TokenExchangeError{GrantType: grantAuthorizationCode, Err: err}
	}

	if tok.RefreshToken == "" {
		return tokenfile.Credential{}, &TokenExchangeError{
			GrantType: grantAuthorizationCode,
			Err:       fmt.Errorf("%w: missing refresh_token", errMalformedResponse),
		}
	}

	return m.credentialFrom(tok, grantAuthorizationCode)
}

// exchangeRefresh trades a refresh token for new tokens:
// grant_type=refresh_token&client_id&client_secret&refresh_token.
// A response without refresh_token keeps the old one (oauth2 behavior).
func (m *Manager) exchangeRefresh(ctx context.Context, refreshToken string) (tokenfile.Credential, error) {
	cfg := m.oauthConfig("")

	m.logger.Info("refreshing access token")

	// An empty access token forces the refresher to hit the endpoint.
	src := cfg.TokenSource(m.httpContext(ctx), &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		return tokenfile.Credential{}, &TokenExchangeError{GrantType: grantRefreshToken, Err: err}
	}

	return m.credentialFrom(tok, grantRefreshToken)
}

// credentialFrom converts a token response into a Credential. The expiry is
// anchored to now, which is after the response arrived.
func (m *Manager) credentialFrom(tok *oauth2.Token, grantType string) (tokenfile.Credential, error) {
	if tok.AccessToken == "" {
		return tokenfile.Credential{}, &TokenExchangeError{
			GrantType: grantType,
			Err:       fmt.Errorf("%w: missing access_token", errMalformedResponse),
		}
	}

	secs, ok := expiresIn(tok)
	if !ok || secs <= 0 || secs > maxExpiresIn {
		return tokenfile.Credential{}, &TokenExchangeError{
			GrantType: grantType,
			Err:       fmt.Errorf("%w: missing or invalid expires_in", errMalformedResponse),
		}
	}

	return tokenfile.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ValidUntil:   m.now().Add(time.Duration(secs) * time.Second).Truncate(time.Second),
		ClientID:     m.clientID,
		ClientSecret: m.clientSecret,
	}, nil
}

// expiresIn reads the raw expires_in field of the token response.
func expiresIn(tok *oauth2.Token) (int64, bool) {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		// Out-of-range float conversions are implementation-defined.
		if !(v > 0 && v <= maxExpiresIn) {
			return 0, false
		}

		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
