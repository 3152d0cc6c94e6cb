package conf

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingConfig indicates a required OAuth2 setting is absent. It is
// raised once at startup and prevents the extension from becoming active.
var ErrMissingConfig = errors.New("missing required configuration")

// Config is the config structure.
type Config struct {
	Server Server `yaml:"server"`
	OAuth2 OAuth2 `yaml:"oauth2"`
}

// Server is the server config.
type Server struct {
	Addr          string `yaml:"addr"`
	BaseURL       string `yaml:"base_url"`
	SessionDBPath string `yaml:"session_db_path"`
	// SessionTTLMinutes bounds how long a login session stays valid.
	SessionTTLMinutes int `yaml:"session_ttl_minutes"`
}

// OAuth2 is the identity provider config.
type OAuth2 struct {
	// Issuer enables OIDC discovery. When set, the three endpoints below
	// may be left blank and are filled from the provider metadata.
	Issuer string `yaml:"issuer"`

	AuthorizationEndpoint string `yaml:"authorization_endpoint"`
	TokenEndpoint         string `yaml:"token_endpoint"`
	UserInfoEndpoint      string `yaml:"userinfo_endpoint"`

	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`

	Scope         string `yaml:"scope"`
	UsernameClaim string `yaml:"username_claim"`
	GroupsClaim   string `yaml:"groups_claim"`

	MaxStateValidityMinutes int `yaml:"max_state_validity_minutes"`
}

// GetRedirectURI returns the configured callback URL.
// If RedirectURI is explicitly configured, use it.
// Otherwise, construct from server base_url + hardcoded callback path.
func (o *OAuth2) GetRedirectURI(serverBaseURL string) string {
	if o.RedirectURI != "" {
		return o.RedirectURI
	}
	return serverBaseURL + "/auth/callback"
}

// MaxStateValidity returns the CSRF state validity window.
func (o *OAuth2) MaxStateValidity() time.Duration {
	return time.Duration(o.MaxStateValidityMinutes) * time.Minute
}

// SessionTTL returns the login session lifetime.
func (s *Server) SessionTTL() time.Duration {
	return time.Duration(s.SessionTTLMinutes) * time.Minute
}

// Load loads config from file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8080"
	}
	if c.Server.SessionDBPath == "" {
		c.Server.SessionDBPath = "data/sessions.db"
	}
	if c.Server.SessionTTLMinutes <= 0 {
		c.Server.SessionTTLMinutes = 8 * 60
	}
	if c.OAuth2.Scope == "" {
		c.OAuth2.Scope = "email profile"
	}
	if c.OAuth2.UsernameClaim == "" {
		c.OAuth2.UsernameClaim = "username"
	}
	if c.OAuth2.GroupsClaim == "" {
		c.OAuth2.GroupsClaim = "groups"
	}
	if c.OAuth2.MaxStateValidityMinutes <= 0 {
		c.OAuth2.MaxStateValidityMinutes = 10
	}
}

// applyEnv overrides config from env vars if present. The client secret in
// particular is expected to arrive via environment in most deployments.
func (c *Config) applyEnv() {
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if baseURL := os.Getenv("SERVER_BASE_URL"); baseURL != "" {
		c.Server.BaseURL = baseURL
	}
	if issuer := os.Getenv("OAUTH2_ISSUER"); issuer != "" {
		c.OAuth2.Issuer = issuer
	}
	if clientID := os.Getenv("OAUTH2_CLIENT_ID"); clientID != "" {
		c.OAuth2.ClientID = clientID
	}
	if secret := os.Getenv("OAUTH2_CLIENT_SECRET"); secret != "" {
		c.OAuth2.ClientSecret = secret
	}
	if redirectURI := os.Getenv("OAUTH2_REDIRECT_URI"); redirectURI != "" {
		c.OAuth2.RedirectURI = redirectURI
	}
}

// Validate checks that every setting the login flow depends on is present.
// Endpoint checks are skipped when an issuer is configured, since discovery
// fills them in before the flow starts.
func (c *Config) Validate() error {
	if c.OAuth2.ClientID == "" {
		return fmt.Errorf("%w: oauth2.client_id", ErrMissingConfig)
	}
	if c.OAuth2.ClientSecret == "" {
		return fmt.Errorf("%w: oauth2.client_secret", ErrMissingConfig)
	}
	if c.OAuth2.Issuer == "" {
		if c.OAuth2.AuthorizationEndpoint == "" {
			return fmt.Errorf("%w: oauth2.authorization_endpoint", ErrMissingConfig)
		}
		if c.OAuth2.TokenEndpoint == "" {
			return fmt.Errorf("%w: oauth2.token_endpoint", ErrMissingConfig)
		}
		if c.OAuth2.UserInfoEndpoint == "" {
			return fmt.Errorf("%w: oauth2.userinfo_endpoint", ErrMissingConfig)
		}
	}
	return nil
}
