package auth

import (
	"errors"
	"fmt"
)

// ErrMissingClientID is returned by NewManager when neither the caller nor
// the token cache supplies a client id.
var ErrMissingClientID = errors.New("auth: client id is required")

// Reasons carried by AuthorizationError.
const (
	ReasonStateMismatch = "state_mismatch"
	ReasonTimeout       = "timeout"
	ReasonCanceled      = "canceled"
	ReasonProviderError = "provider_error"
	ReasonMissingCode   = "missing_code"
	ReasonListener      = "listener"
	ReasonSetup         = "setup"
)

// AuthorizationError reports a failed interactive authorization. Nothing is
// persisted when it occurs; the caller may retry.
type AuthorizationError struct {
	Reason string
	Err    error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("auth: authorization failed (%s): %v", e.Reason, e.Err)
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// TokenExchangeError reports a failed call to the token endpoint, either at
// the transport level or because the provider rejected the grant or returned
// a malformed response. Err wraps *oauth2.RetrieveError for provider rejections.
type TokenExchangeError struct {
	GrantType string
	Err       error
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("auth: token exchange (%s) failed: %v", e.GrantType, e.Err)
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}
