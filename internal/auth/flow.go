package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
)

// Flow is the host-facing facade over the login flow. Begin produces the
// authorization redirect for a fresh attempt; Complete turns the callback
// query parameters into an identity assertion or a terminal error. Each
// attempt ends in exactly one of those two outcomes.
type Flow struct {
	states *StateRegistry
	client *Client
}

// NewFlow wires the state registry and IdP client into a flow.
func NewFlow(states *StateRegistry, client *Client) *Flow {
	return &Flow{states: states, client: client}
}

// Begin issues a state token and returns the authorization URL to redirect
// the browser to.
func (f *Flow) Begin() (string, error) {
	state, err := f.states.Issue()
	if err != nil {
		return "", err
	}
	return f.client.AuthCodeURL(state), nil
}

// Complete validates the callback and runs the exchange pipeline: state
// check, code extraction, code-for-token exchange, userinfo retrieval,
// identity assembly. Any failure terminates the attempt; no token exchange
// happens unless the state token validated first.
func (f *Flow) Complete(ctx context.Context, params url.Values) (*IdentityAssertion, error) {
	state := params.Get("state")
	if state == "" {
		return nil, ErrMissingState
	}
	if err := f.states.Validate(state); err != nil {
		return nil, err
	}

	// An error parameter means the IdP refused the authorization. The
	// description may carry user input, so only the code is logged.
	if idpErr := params.Get("error"); idpErr != "" {
		slog.Warn("identity provider returned error on callback", "error", idpErr)
		return nil, fmt.Errorf("identity provider error: %s", idpErr)
	}

	code := params.Get("code")
	if code == "" {
		return nil, ErrMissingCode
	}

	accessToken, err := f.client.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	info, err := f.client.UserInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	return NewIdentityAssertion(info), nil
}
