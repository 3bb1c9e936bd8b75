package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, serverURL string) (*Gateway, *FileStore) {
	t.Helper()
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	gw, err := New(serverURL, store)
	require.NoError(t, err)
	return gw, store
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// apiStub is a minimal server: /api/protected accepts exactly one bearer
// token, /api/auth/refresh-token mints it and counts how often it is called.
type apiStub struct {
	goodToken string

	refreshStatus  int
	refreshCalls   atomic.Int64
	protectedCalls atomic.Int64
}

func (s *apiStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/protected", func(w http.ResponseWriter, r *http.Request) {
		s.protectedCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+s.goodToken {
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "Access token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	mux.HandleFunc("/api/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		s.refreshCalls.Add(1)
		if s.refreshStatus != 0 && s.refreshStatus != http.StatusOK {
			writeJSON(w, s.refreshStatus, map[string]string{"message": "Invalid credentials!"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": s.goodToken})
	})
	return mux
}

func TestDoRefreshesAndReplaysOnce(t *testing.T) {
	stub := &apiStub{goodToken: "fresh-token"}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	gw, store := newTestGateway(t, server.URL)
	require.NoError(t, store.SaveAccessToken("stale-token"))

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/protected", nil)
	require.NoError(t, err)

	resp, err := gw.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int64(2), stub.protectedCalls.Load())
	require.Equal(t, int64(1), stub.refreshCalls.Load())

	// The refreshed token was persisted for later requests.
	token, err := store.AccessToken()
	require.NoError(t, err)
	require.Equal(t, "fresh-token", token)
}

func TestDoReplaysAtMostOnce(t *testing.T) {
	// The server refreshes fine but keeps rejecting the protected call; the
	// gateway must not loop.
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/protected", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid access token"})
	})
	mux.HandleFunc("/api/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "whatever"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	gw, _ := newTestGateway(t, server.URL)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/protected", nil)
	require.NoError(t, err)

	resp, err := gw.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, int64(2), calls.Load())
}

func TestDoSkipsReplayForUnreplayableBody(t *testing.T) {
	stub := &apiStub{goodToken: "fresh-token"}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	gw, store := newTestGateway(t, server.URL)
	require.NoError(t, store.SaveAccessToken("stale-token"))

	// A wrapped reader leaves GetBody unset, so the body cannot be rebuilt
	// after the first send.
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/protected",
		io.MultiReader(strings.NewReader(`{"q":1}`)))
	require.NoError(t, err)

	resp, err := gw.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// The caller gets the original failure rather than a replay carrying an
	// empty payload.
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, int64(1), stub.protectedCalls.Load())
}

// TestRefreshSurvivesInitiatorCancellation cancels the context of the caller
// that started the refresh while the server still holds the request open;
// the coalesced waiters must still receive the token.
func TestRefreshSurvivesInitiatorCancellation(t *testing.T) {
	refreshStarted := make(chan struct{})
	proceed := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		close(refreshStarted)
		<-proceed
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "fresh-token"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	gw, _ := newTestGateway(t, server.URL)

	initiatorCtx, cancelInitiator := context.WithCancel(context.Background())
	initiatorErr := make(chan error, 1)
	go func() {
		_, err := gw.refreshAccessToken(initiatorCtx)
		initiatorErr <- err
	}()

	<-refreshStarted

	type result struct {
		token string
		err   error
	}
	joined := make(chan result, 1)
	go func() {
		token, err := gw.refreshAccessToken(context.Background())
		joined <- result{token, err}
	}()

	// Let the second caller join the in-flight refresh, then cancel the
	// initiator before the server responds.
	time.Sleep(50 * time.Millisecond)
	cancelInitiator()
	time.Sleep(50 * time.Millisecond)
	close(proceed)

	got := <-joined
	require.NoError(t, got.err)
	require.Equal(t, "fresh-token", got.token)
	require.NoError(t, <-initiatorErr)
}

func TestDoPreservesCallerAuthorization(t *testing.T) {
	var seen string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	}))
	defer server.Close()

	gw, store := newTestGateway(t, server.URL)
	require.NoError(t, store.SaveAccessToken("stored-token"))

	req, err := http.NewRequest(http.MethodGet, server.URL+"/whoami", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer caller-token")

	resp, err := gw.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, "Bearer caller-token", seen)
}

func TestRefreshRejectionClearsSession(t *testing.T) {
	stub := &apiStub{goodToken: "fresh-token", refreshStatus: http.StatusUnauthorized}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	gw, store := newTestGateway(t, server.URL)
	require.NoError(t, store.SaveAccessToken("stale-token"))
	require.NoError(t, store.SaveProfile(&Profile{ID: "u1", Name: "alice", Email: "alice@example.com"}))

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/protected", nil)
	require.NoError(t, err)

	// The caller still receives the original failure response.
	resp, err := gw.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	token, err := store.AccessToken()
	require.NoError(t, err)
	require.Empty(t, token)
	profile, err := store.Profile()
	require.NoError(t, err)
	require.Nil(t, profile)

	// An explicit refresh reports the expired session.
	_, err = gw.Refresh(context.Background())
	require.ErrorIs(t, err, ErrSessionExpired)
}

// TestConcurrentRefreshCoalesces drives five stale requests in parallel and
// holds the refresh endpoint open until every one of them has failed auth.
// Exactly one refresh round-trip must happen.
func TestConcurrentRefreshCoalesces(t *testing.T) {
	const workers = 5

	var (
		failures     atomic.Int64
		refreshCalls atomic.Int64
	)
	allFailed := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/protected", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			if failures.Add(1) == workers {
				close(allFailed)
			}
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "Access token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	mux.HandleFunc("/api/auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		select {
		case <-allFailed:
			// Give the last stragglers time to join the in-flight refresh.
			time.Sleep(50 * time.Millisecond)
		case <-time.After(5 * time.Second):
			t.Error("refresh served before every worker failed auth")
		}
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "fresh-token"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	gw, store := newTestGateway(t, server.URL)
	require.NoError(t, store.SaveAccessToken("stale-token"))

	var wg sync.WaitGroup
	statuses := make([]int, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodGet, server.URL+"/api/protected", nil)
			if err != nil {
				errs[i] = err
				return
			}
			resp, err := gw.Do(req)
			if err != nil {
				errs[i] = err
				return
			}
			defer resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, http.StatusOK, statuses[i])
	}
	require.Equal(t, int64(1), refreshCalls.Load())
}

func TestSignInSignOutFlow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		var req signInRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "secret123" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials!"})
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     "refreshToken",
			Value:    "refresh-cookie",
			Path:     "/api/auth/refresh-token",
			HttpOnly: true,
		})
		writeJSON(w, http.StatusOK, signInResponse{
			ID: "u1", Name: "alice", Email: req.Email, AccessToken: "access-token",
		})
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully!"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	gw, store := newTestGateway(t, server.URL)
	require.False(t, gw.IsAuthenticated())

	profile, err := gw.SignIn(context.Background(), "alice@example.com", "secret123")
	require.NoError(t, err)
	require.Equal(t, "alice", profile.Name)
	require.True(t, gw.IsAuthenticated())

	token, err := store.AccessToken()
	require.NoError(t, err)
	require.Equal(t, "access-token", token)

	cached, err := gw.CurrentProfile()
	require.NoError(t, err)
	require.Equal(t, profile, cached)

	require.NoError(t, gw.SignOut(context.Background()))
	require.False(t, gw.IsAuthenticated())
}

func TestSignInBadCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials!"})
	}))
	defer server.Close()

	gw, _ := newTestGateway(t, server.URL)

	_, err := gw.SignIn(context.Background(), "alice@example.com", "wrong")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "Invalid credentials!", apiErr.Message)
	require.False(t, gw.IsAuthenticated())
}

func TestAPIErrorFallbackMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	gw, _ := newTestGateway(t, server.URL)

	err := gw.ForgotPassword(context.Background(), "alice@example.com")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Equal(t, http.StatusText(http.StatusBadGateway), apiErr.Message)
}
