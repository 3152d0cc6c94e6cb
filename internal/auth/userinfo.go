package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

// UserInfo fetches identity claims with a single authenticated GET to the
// userinfo endpoint and resolves the configured username and groups claims.
// The access token and the response body never reach the logs; at most a
// field count and claim names are recorded.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoEndpoint, nil)
	if err != nil {
		return nil, &UserInfoError{Err: fmt.Errorf("creating userinfo request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			slog.Error("userinfo request timed out")
			return nil, &UserInfoError{Timeout: true, Err: err}
		}
		return nil, &UserInfoError{Err: fmt.Errorf("userinfo request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, &UserInfoError{Timeout: true, Err: err}
		}
		return nil, &UserInfoError{Err: fmt.Errorf("reading userinfo response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("userinfo endpoint returned error", "status", resp.StatusCode)
		return nil, &UserInfoError{Status: resp.StatusCode}
	}

	var claims map[string]any
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, &UserInfoError{Err: fmt.Errorf("parsing userinfo response: %w", err)}
	}

	slog.Debug("userinfo response received", "fields", len(claims))

	username, ok := claimAsString(claims, c.usernameClaim)
	if !ok {
		slog.Error("userinfo response missing username claim", "claim", c.usernameClaim)
		return nil, &UserInfoError{MissingClaim: c.usernameClaim}
	}

	// Groups are optional: a missing, null, or non-array claim yields an
	// empty set rather than an error.
	groups := claimAsStringSet(claims, c.groupsClaim)

	return &UserInfo{Username: username, Groups: groups}, nil
}

// claimAsString looks up a claim and coerces it to its string
// representation. Missing keys and JSON null report false.
func claimAsString(claims map[string]any, name string) (string, bool) {
	value, ok := claims[name]
	if !ok || value == nil {
		return "", false
	}
	return stringify(value), true
}

// claimAsStringSet collects an array claim into a set of strings.
// Anything that is not an array yields the empty set.
func claimAsStringSet(claims map[string]any, name string) map[string]struct{} {
	set := make(map[string]struct{})
	arr, ok := claims[name].([]any)
	if !ok {
		return set
	}
	for _, elem := range arr {
		if elem == nil {
			continue
		}
		set[stringify(elem)] = struct{}{}
	}
	return set
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
