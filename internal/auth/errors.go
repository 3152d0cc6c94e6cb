package auth

import (
	"errors"
	"fmt"
)

var (
	// CSRF state errors
	ErrMissingState         = errors.New("missing state parameter")
	ErrStateNotFound        = errors.New("state token not found")
	ErrStateExpired         = errors.New("state token expired")
	ErrStateAlreadyConsumed = errors.New("state token already consumed")

	// Callback errors
	ErrMissingCode = errors.New("missing authorization code")
)

// IsCSRFError reports whether err belongs to the state-token taxonomy.
func IsCSRFError(err error) bool {
	return errors.Is(err, ErrMissingState) ||
		errors.Is(err, ErrStateNotFound) ||
		errors.Is(err, ErrStateExpired) ||
		errors.Is(err, ErrStateAlreadyConsumed)
}

// TokenExchangeError describes a failed code-for-token exchange. Exactly one
// of the condition fields applies; the zero struct is never returned.
type TokenExchangeError struct {
	Timeout            bool
	Status             int // non-zero when the endpoint answered with a non-200
	MissingAccessToken bool
	Err                error
}

func (e *TokenExchangeError) Error() string {
	switch {
	case e.Timeout:
		return "token exchange timed out"
	case e.Status != 0:
		return fmt.Sprintf("token exchange failed with HTTP %d", e.Status)
	case e.MissingAccessToken:
		return "token response missing access_token"
	}
	return fmt.Sprintf("token exchange failed: %v", e.Err)
}

func (e *TokenExchangeError) Unwrap() error { return e.Err }

// UserInfoError describes a failed userinfo retrieval or a response missing
// the configured username claim.
type UserInfoError struct {
	Timeout      bool
	Status       int
	MissingClaim string
	Err          error
}

func (e *UserInfoError) Error() string {
	switch {
	case e.Timeout:
		return "userinfo request timed out"
	case e.Status != 0:
		return fmt.Sprintf("userinfo request failed with HTTP %d", e.Status)
	case e.MissingClaim != "":
		return fmt.Sprintf("userinfo response missing claim %q", e.MissingClaim)
	}
	return fmt.Sprintf("userinfo request failed: %v", e.Err)
}

func (e *UserInfoError) Unwrap() error { return e.Err }
