package conf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
oauth2:
  authorization_endpoint: https://idp.example.com/authorize
  token_endpoint: https://idp.example.com/token
  userinfo_endpoint: https://idp.example.com/userinfo
  client_id: guac
  client_secret: hunter2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.OAuth2.Scope != "email profile" {
		t.Errorf("expected default scope, got %q", cfg.OAuth2.Scope)
	}
	if cfg.OAuth2.UsernameClaim != "username" {
		t.Errorf("expected default username claim, got %q", cfg.OAuth2.UsernameClaim)
	}
	if cfg.OAuth2.GroupsClaim != "groups" {
		t.Errorf("expected default groups claim, got %q", cfg.OAuth2.GroupsClaim)
	}
	if cfg.OAuth2.MaxStateValidity() != 10*time.Minute {
		t.Errorf("expected default 10m state validity, got %v", cfg.OAuth2.MaxStateValidity())
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate error: %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("OAUTH2_CLIENT_SECRET", "from-env")

	path := writeConfig(t, `
oauth2:
  authorization_endpoint: https://idp.example.com/authorize
  token_endpoint: https://idp.example.com/token
  userinfo_endpoint: https://idp.example.com/userinfo
  client_id: guac
  client_secret: from-file
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.OAuth2.ClientSecret != "from-env" {
		t.Errorf("expected env override, got %q", cfg.OAuth2.ClientSecret)
	}
}

func TestValidateMissingCredentials(t *testing.T) {
	path := writeConfig(t, `
oauth2:
  authorization_endpoint: https://idp.example.com/authorize
  token_endpoint: https://idp.example.com/token
  userinfo_endpoint: https://idp.example.com/userinfo
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrMissingConfig) {
		t.Errorf("expected ErrMissingConfig, got %v", err)
	}
}

func TestValidateMissingEndpointWithoutIssuer(t *testing.T) {
	path := writeConfig(t, `
oauth2:
  client_id: guac
  client_secret: hunter2
  token_endpoint: https://idp.example.com/token
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrMissingConfig) {
		t.Errorf("expected ErrMissingConfig, got %v", err)
	}
}

func TestValidateIssuerAllowsBlankEndpoints(t *testing.T) {
	path := writeConfig(t, `
oauth2:
  issuer: https://idp.example.com
  client_id: guac
  client_secret: hunter2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected issuer config to validate, got %v", err)
	}
}

func TestGetRedirectURI(t *testing.T) {
	o := OAuth2{}
	if got := o.GetRedirectURI("https://guac.example.com"); got != "https://guac.example.com/auth/callback" {
		t.Errorf("unexpected constructed redirect URI %q", got)
	}

	o.RedirectURI = "https://other.example.com/cb"
	if got := o.GetRedirectURI("https://guac.example.com"); got != "https://other.example.com/cb" {
		t.Errorf("expected explicit redirect URI, got %q", got)
	}
}
