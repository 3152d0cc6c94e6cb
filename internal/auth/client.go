package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gerry9000/guacamole-auth-sso-oauth2/internal/conf"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// httpTimeout bounds both connecting to and reading from the IdP. A timeout
// is terminal for the login attempt; there are no retries.
const httpTimeout = 10 * time.Second

// Client talks to the identity provider: it builds the authorization
// redirect, exchanges authorization codes for access tokens, and fetches
// identity claims from the userinfo endpoint.
type Client struct {
	oauth2Config oauth2.Config

	userInfoEndpoint string
	usernameClaim    string
	groupsClaim      string

	httpClient *http.Client
}

// NewClient creates a client from the resolved configuration. When the
// config names an issuer instead of explicit endpoints, the endpoints are
// discovered from the issuer's .well-known/openid-configuration document.
func NewClient(ctx context.Context, cfg *conf.OAuth2, redirectURI string) (*Client, error) {
	authURL := cfg.AuthorizationEndpoint
	tokenURL := cfg.TokenEndpoint
	userInfoURL := cfg.UserInfoEndpoint

	if cfg.Issuer != "" && (authURL == "" || tokenURL == "" || userInfoURL == "") {
		provider, err := oidc.NewProvider(ctx, cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("discovering provider endpoints: %w", err)
		}

		endpoint := provider.Endpoint()
		if authURL == "" {
			authURL = endpoint.AuthURL
		}
		if tokenURL == "" {
			tokenURL = endpoint.TokenURL
		}
		if userInfoURL == "" {
			var metadata struct {
				UserInfoEndpoint string `json:"userinfo_endpoint"`
			}
			if err := provider.Claims(&metadata); err != nil {
				return nil, fmt.Errorf("reading provider metadata: %w", err)
			}
			userInfoURL = metadata.UserInfoEndpoint
		}
	}

	if authURL == "" || tokenURL == "" || userInfoURL == "" {
		return nil, fmt.Errorf("%w: provider endpoints unresolved", conf.ErrMissingConfig)
	}

	return &Client{
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
			Scopes: strings.Fields(cfg.Scope),
		},
		userInfoEndpoint: userInfoURL,
		usernameClaim:    cfg.UsernameClaim,
		groupsClaim:      cfg.GroupsClaim,
		httpClient:       &http.Client{Timeout: httpTimeout},
	}, nil
}

// AuthCodeURL returns the authorization URL the browser is redirected to:
// response_type=code plus client_id, redirect_uri, scope, and the issued
// state value. Pure computation, no network call.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth2Config.AuthCodeURL(state)
}
