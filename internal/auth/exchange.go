package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// ExchangeCode trades an authorization code for an access token with a
// single form-encoded POST to the token endpoint. Any failure is terminal
// for the login attempt; the user must restart from the redirect step.
//
// The request body carries the client secret and is never logged. Error
// response bodies are logged only as their parsed error/error_description
// fields, never verbatim.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {c.oauth2Config.RedirectURL},
		"client_id":     {c.oauth2Config.ClientID},
		"client_secret": {c.oauth2Config.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.oauth2Config.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &TokenExchangeError{Err: fmt.Errorf("creating token request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			slog.Error("token exchange timed out")
			return "", &TokenExchangeError{Timeout: true, Err: err}
		}
		return "", &TokenExchangeError{Err: fmt.Errorf("token request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			slog.Error("token exchange timed out reading response")
			return "", &TokenExchangeError{Timeout: true, Err: err}
		}
		return "", &TokenExchangeError{Err: fmt.Errorf("reading token response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		logTokenError(resp.StatusCode, body)
		return "", &TokenExchangeError{Status: resp.StatusCode}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", &TokenExchangeError{Err: fmt.Errorf("parsing token response: %w", err)}
	}

	if tokenResp.AccessToken == "" {
		slog.Error("token response missing access_token field")
		return "", &TokenExchangeError{MissingAccessToken: true}
	}

	return tokenResp.AccessToken, nil
}

// logTokenError reports a failed exchange using only the status code and
// the standard OAuth2 error fields, if the body parses as JSON.
func logTokenError(status int, body []byte) {
	var errResp struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		slog.Error("token exchange failed",
			"status", status,
			"error", errResp.Error,
			"error_description", errResp.ErrorDescription)
		return
	}
	slog.Error("token exchange failed", "status", status)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
