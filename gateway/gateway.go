// Package gateway is the single HTTP chokepoint for frontend services
// talking to the Influenza API. It attaches the stored access token to every
// request, intercepts 401/403 responses, silently refreshes the access token
// through the refresh cookie, and replays the original request exactly once.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	refreshPath    = "/api/auth/refresh-token"
	refreshTimeout = 30 * time.Second
)

// ErrSessionExpired means the refresh token itself was rejected; the local
// session has been cleared and the user must sign in again.
var ErrSessionExpired = errors.New("session expired, sign in required")

type Gateway struct {
	baseURL    string
	httpClient *http.Client
	store      SessionStore

	// Coalesces concurrent refreshes: N simultaneous expiries cause one
	// round-trip to the refresh endpoint.
	refreshGroup singleflight.Group
}

// New builds a gateway for the given API base URL. The underlying client
// keeps a cookie jar so the httpOnly refresh cookie set at sign-in is sent
// automatically on refresh calls.
func New(baseURL string, store SessionStore) (*Gateway, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		store: store,
	}, nil
}

// Do executes the request. If the caller did not set Authorization, the
// stored access token is attached. A 401/403 response triggers one refresh
// and one replay; a second failure propagates as-is.
func (g *Gateway) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") == "" {
		if token, err := g.store.AccessToken(); err == nil && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}
	if strings.HasSuffix(req.URL.Path, refreshPath) {
		return resp, nil
	}

	token, refreshErr := g.refreshAccessToken(req.Context())
	if refreshErr != nil {
		// Cleanup already happened for a rejected refresh token; the
		// caller still sees the original failure response.
		return resp, nil
	}

	retry, err := cloneRequest(req)
	if err != nil {
		return resp, nil
	}
	_ = resp.Body.Close()

	retry.Header.Set("Authorization", "Bearer "+token)
	return g.httpClient.Do(retry)
}

// refreshAccessToken calls the refresh endpoint once regardless of how many
// requests raced into it, persists the new token, and hands it to every
// waiter. A 401 from the refresh endpoint clears the local session.
func (g *Gateway) refreshAccessToken(ctx context.Context) (string, error) {
	value, err, _ := g.refreshGroup.Do("refresh", func() (any, error) {
		// The refresh outcome is shared by every coalesced waiter, so the
		// call must not die with whichever caller happened to start it.
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(refreshCtx, http.MethodPost, g.baseURL+refreshPath, nil)
		if err != nil {
			return "", err
		}

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			_ = g.store.Clear()
			return "", ErrSessionExpired
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("refresh failed with status %d", resp.StatusCode)
		}

		var out struct {
			AccessToken string `json:"accessToken"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", err
		}
		if err := g.store.SaveAccessToken(out.AccessToken); err != nil {
			return "", err
		}
		return out.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// doJSON issues a JSON request through Do and decodes the response into out.
func (g *Gateway) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// APIError carries the status code and server message of a failed call.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func decodeAPIError(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: body.Message}
}

// cloneRequest rebuilds the request with a fresh body so it can be replayed.
// A body without GetBody is already consumed and cannot be replayed.
func cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}
