package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gerry9000/guacamole-auth-sso-oauth2/internal/conf"
)

// fakeIdP serves token and userinfo endpoints and counts exchange calls.
type fakeIdP struct {
	srv       *httptest.Server
	exchanges int64
}

func newFakeIdP(t *testing.T, userInfoBody string) *fakeIdP {
	t.Helper()
	idp := &fakeIdP{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&idp.exchanges, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"abc123"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(userInfoBody))
	})
	idp.srv = httptest.NewServer(mux)
	t.Cleanup(idp.srv.Close)
	return idp
}

func newTestFlow(t *testing.T, idp *fakeIdP) (*Flow, *StateRegistry) {
	t.Helper()
	client := newTestClient(t, conf.OAuth2{
		AuthorizationEndpoint: idp.srv.URL + "/authorize",
		TokenEndpoint:         idp.srv.URL + "/token",
		UserInfoEndpoint:      idp.srv.URL + "/userinfo",
	})
	states := newTestRegistry(10 * time.Minute)
	return NewFlow(states, client), states
}

func TestFlowCompleteSuccess(t *testing.T) {
	idp := newFakeIdP(t, `{"username":"alice","groups":["g1","g2"]}`)
	flow, states := newTestFlow(t, idp)

	state, err := states.Issue()
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	params := url.Values{"state": {state}, "code": {"auth-code"}}
	assertion, err := flow.Complete(context.Background(), params)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}

	if assertion.Username != "alice" {
		t.Errorf("expected username alice, got %q", assertion.Username)
	}
	if len(assertion.Groups) != 2 {
		t.Errorf("expected 2 groups, got %v", assertion.Groups)
	}
}

func TestFlowBeginEmbedsIssuedState(t *testing.T) {
	idp := newFakeIdP(t, `{}`)
	flow, states := newTestFlow(t, idp)

	authURL, err := flow.Begin()
	if err != nil {
		t.Fatalf("Begin error: %v", err)
	}

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parsing auth URL: %v", err)
	}
	state := parsed.Query().Get("state")
	if state == "" {
		t.Fatal("expected state parameter in auth URL")
	}

	// the embedded state must be the one the registry tracks
	if err := states.Validate(state); err != nil {
		t.Errorf("embedded state failed validation: %v", err)
	}
}

func TestFlowCompleteMissingState(t *testing.T) {
	idp := newFakeIdP(t, `{"username":"alice"}`)
	flow, _ := newTestFlow(t, idp)

	params := url.Values{"code": {"auth-code"}}
	_, err := flow.Complete(context.Background(), params)
	if !errors.Is(err, ErrMissingState) {
		t.Fatalf("expected ErrMissingState, got %v", err)
	}
	if n := atomic.LoadInt64(&idp.exchanges); n != 0 {
		t.Errorf("token exchange must not run without state, ran %d times", n)
	}
}

func TestFlowCompleteUnknownState(t *testing.T) {
	idp := newFakeIdP(t, `{"username":"alice"}`)
	flow, _ := newTestFlow(t, idp)

	params := url.Values{"state": {"forged"}, "code": {"auth-code"}}
	_, err := flow.Complete(context.Background(), params)
	if !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}
	if n := atomic.LoadInt64(&idp.exchanges); n != 0 {
		t.Errorf("token exchange must not run on CSRF failure, ran %d times", n)
	}
}

func TestFlowCompleteReplayedState(t *testing.T) {
	idp := newFakeIdP(t, `{"username":"alice"}`)
	flow, states := newTestFlow(t, idp)

	state, _ := states.Issue()
	params := url.Values{"state": {state}, "code": {"auth-code"}}

	if _, err := flow.Complete(context.Background(), params); err != nil {
		t.Fatalf("first Complete error: %v", err)
	}
	_, err := flow.Complete(context.Background(), params)
	if !errors.Is(err, ErrStateAlreadyConsumed) {
		t.Fatalf("expected ErrStateAlreadyConsumed on replay, got %v", err)
	}
	if n := atomic.LoadInt64(&idp.exchanges); n != 1 {
		t.Errorf("expected exactly 1 exchange, got %d", n)
	}
}

func TestFlowCompleteMissingCode(t *testing.T) {
	idp := newFakeIdP(t, `{"username":"alice"}`)
	flow, states := newTestFlow(t, idp)

	state, _ := states.Issue()
	params := url.Values{"state": {state}}
	_, err := flow.Complete(context.Background(), params)
	if !errors.Is(err, ErrMissingCode) {
		t.Fatalf("expected ErrMissingCode, got %v", err)
	}
}

func TestFlowCompleteIdPError(t *testing.T) {
	idp := newFakeIdP(t, `{"username":"alice"}`)
	flow, states := newTestFlow(t, idp)

	state, _ := states.Issue()
	params := url.Values{
		"state": {state},
		"error": {"access_denied"},
		"code":  {"auth-code"},
	}
	_, err := flow.Complete(context.Background(), params)
	if err == nil {
		t.Fatal("expected error for IdP error parameter")
	}
	if n := atomic.LoadInt64(&idp.exchanges); n != 0 {
		t.Errorf("token exchange must not run on IdP error, ran %d times", n)
	}
}
