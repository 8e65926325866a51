package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pavithrahatharasinghe/MediaMaestro/internal/errs"

	"golang.org/x/oauth2"
)

// newTokenTestServer fakes the token endpoint. Every refresh increments
// hits and mints access-token-N.
func newTokenTestServer(t *testing.T, hits *int32, fail bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(hits, 1)
		if fail {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"access-token-%d","token_type":"Bearer","refresh_token":"refresh-token","expires_in":3600}`, n)
	}))
}

func newTestStore(serverURL string) *TokenStore {
	return NewTokenStore(&oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:  serverURL + "/authorize",
			TokenURL: serverURL + "/token",
		},
	})
}

func TestValidTokenNoCredential(t *testing.T) {
	store := newTestStore("http://localhost:0")
	if _, err := store.ValidToken(context.Background()); !errs.Is(err, errs.KindUnauthenticated) {
		t.Errorf("ValidToken without credential = %v, want unauthenticated", err)
	}
}

func TestValidTokenFreshTokenSkipsRefresh(t *testing.T) {
	var hits int32
	server := newTokenTestServer(t, &hits, false)
	defer server.Close()

	store := newTestStore(server.URL)
	store.SetToken(&oauth2.Token{
		AccessToken:  "still-good",
		RefreshToken: "refresh-token",
		Expiry:       time.Now().Add(time.Hour),
	})

	token, err := store.ValidToken(context.Background())
	if err != nil {
		t.Fatalf("ValidToken failed: %v", err)
	}
	if token.AccessToken != "still-good" {
		t.Errorf("Fresh token replaced: %s", token.AccessToken)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("Refresh endpoint hit %d times for a fresh token", hits)
	}
}

func TestValidTokenRefreshesNearExpiry(t *testing.T) {
	var hits int32
	server := newTokenTestServer(t, &hits, false)
	defer server.Close()

	store := newTestStore(server.URL)
	store.SetToken(&oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh-token",
		Expiry:       time.Now().Add(-time.Minute),
	})

	token, err := store.ValidToken(context.Background())
	if err != nil {
		t.Fatalf("ValidToken failed: %v", err)
	}
	if token.AccessToken != "access-token-1" {
		t.Errorf("Expected refreshed token, got %s", token.AccessToken)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("Refresh endpoint hit %d times, want 1", hits)
	}

	// the refreshed token is cached: the next call takes the fast path
	again, err := store.ValidToken(context.Background())
	if err != nil {
		t.Fatalf("Second ValidToken failed: %v", err)
	}
	if again.AccessToken != "access-token-1" {
		t.Errorf("Cached token changed: %s", again.AccessToken)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("Refresh endpoint hit %d times after cache, want 1", hits)
	}
}

func TestValidTokenConcurrentSingleRefresh(t *testing.T) {
	var hits int32
	server := newTokenTestServer(t, &hits, false)
	defer server.Close()

	store := newTestStore(server.URL)
	store.SetToken(&oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh-token",
		Expiry:       time.Now().Add(-time.Minute),
	})

	const callers = 16
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errors := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := store.ValidToken(context.Background())
			if err != nil {
				errors[i] = err
				return
			}
			tokens[i] = token.AccessToken
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errors[i] != nil {
			t.Fatalf("Caller %d failed: %v", i, errors[i])
		}
		if tokens[i] != "access-token-1" {
			t.Errorf("Caller %d got %s, want access-token-1", i, tokens[i])
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("Refresh endpoint hit %d times for concurrent callers, want 1", got)
	}
}

func TestValidTokenFailedRefreshClearsCache(t *testing.T) {
	var hits int32
	server := newTokenTestServer(t, &hits, true)
	defer server.Close()

	store := newTestStore(server.URL)
	store.SetToken(&oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh-token",
		Expiry:       time.Now().Add(-time.Minute),
	})

	if _, err := store.ValidToken(context.Background()); !errs.Is(err, errs.KindAuthExpired) {
		t.Fatalf("Failed refresh error = %v, want auth_expired", err)
	}
	if store.HasToken() {
		t.Error("Failed refresh must clear the cached credential")
	}

	// subsequent calls demand re-authorization rather than retrying
	if _, err := store.ValidToken(context.Background()); !errs.Is(err, errs.KindUnauthenticated) {
		t.Errorf("Post-failure error = %v, want unauthenticated", err)
	}
}
