package oauth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brideal/dealsync/internal/tokencache"
)

func newTestStore(t *testing.T) *tokencache.Store {
	t.Helper()

	return tokencache.New(filepath.Join(t.TempDir(), "token_cache.json"), nil)
}

func newTestClient(t *testing.T, tokenURL string, store *tokencache.Store) *Client {
	t.Helper()

	creds := Credentials{ClientID: "test-id", ClientSecret: "test-secret"}

	return NewClient(tokenURL, creds, "offline_access axiom", store, http.DefaultClient, nil)
}

// tokenEndpoint is a minimal fake token endpoint. The handler receives the
// parsed form and grant type and returns the JSON body and status to send.
func tokenEndpoint(t *testing.T, handler func(grantType string, r *http.Request) (int, string)) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		status, body := handler(r.PostFormValue("grant_type"), r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestBearerToken_AcquiresNewToken(t *testing.T) {
	srv := tokenEndpoint(t, func(grantType string, r *http.Request) (int, string) {
		assert.Equal(t, "client_credentials", grantType)
		assert.Equal(t, "offline_access axiom", r.PostFormValue("scope"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("test-id:test-secret"))
		assert.Equal(t, wantAuth, r.Header.Get("Authorization"))

		return http.StatusOK, `{"access_token":"new-token","expires_in":3600,"scope":"axiom"}`
	})
	defer srv.Close()

	store := newTestStore(t)
	client := newTestClient(t, srv.URL, store)

	tok, err := client.BearerToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-token", tok)

	// The record must be persisted with an absolute expiry in the future.
	rec := store.Load()
	require.NotNil(t, rec)
	assert.Equal(t, "new-token", rec.AccessToken)
	assert.Greater(t, rec.ExpiresAt, float64(time.Now().Unix()))
}

func TestBearerToken_UsesValidCachedToken(t *testing.T) {
	var calls atomic.Int32

	srv := tokenEndpoint(t, func(_ string, _ *http.Request) (int, string) {
		calls.Add(1)
		return http.StatusOK, `{"access_token":"fresh","expires_in":3600}`
	})
	defer srv.Close()

	store := newTestStore(t)
	require.NoError(t, store.Save(&tokencache.Record{
		AccessToken: "cached",
		ExpiresAt:   float64(time.Now().Unix()) + 3600,
	}))

	client := newTestClient(t, srv.URL, store)

	tok, err := client.BearerToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached", tok)
	assert.Equal(t, int32(0), calls.Load(), "no endpoint call for a valid cached token")
}

func TestBearerToken_RefreshesExpiredToken(t *testing.T) {
	srv := tokenEndpoint(t, func(grantType string, r *http.Request) (int, string) {
		assert.Equal(t, "refresh_token", grantType)
		assert.Equal(t, "old-refresh", r.PostFormValue("refresh_token"))

		return http.StatusOK, `{"access_token":"refreshed","refresh_token":"new-refresh","expires_in":3600}`
	})
	defer srv.Close()

	store := newTestStore(t)
	require.NoError(t, store.Save(&tokencache.Record{
		AccessToken:  "expired",
		RefreshToken: "old-refresh",
		ExpiresAt:    float64(time.Now().Unix()) - 10,
	}))

	client := newTestClient(t, srv.URL, store)

	tok, err := client.BearerToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed", tok)

	rec := store.Load()
	require.NotNil(t, rec)
	assert.Equal(t, "new-refresh", rec.RefreshToken)
}

func TestBearerToken_RefreshFailureFallsBackToClientCredentials(t *testing.T) {
	var refreshCalls, acquireCalls atomic.Int32

	srv := tokenEndpoint(t, func(grantType string, _ *http.Request) (int, string) {
		if grantType == "refresh_token" {
			refreshCalls.Add(1)
			return http.StatusBadRequest, `{"error":"invalid_grant"}`
		}

		acquireCalls.Add(1)

		return http.StatusOK, `{"access_token":"fallback-token","expires_in":3600}`
	})
	defer srv.Close()

	store := newTestStore(t)
	require.NoError(t, store.Save(&tokencache.Record{
		AccessToken:  "expired",
		RefreshToken: "stale-refresh",
		ExpiresAt:    float64(time.Now().Unix()) - 10,
	}))

	client := newTestClient(t, srv.URL, store)

	tok, err := client.BearerToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fallback-token", tok)
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, int32(1), acquireCalls.Load())
}

func TestBearerToken_ExpiredNoRefreshTokenAcquiresNew(t *testing.T) {
	srv := tokenEndpoint(t, func(grantType string, _ *http.Request) (int, string) {
		assert.Equal(t, "client_credentials", grantType)
		return http.StatusOK, `{"access_token":"brand-new","expires_in":3600}`
	})
	defer srv.Close()

	store := newTestStore(t)
	require.NoError(t, store.Save(&tokencache.Record{
		AccessToken: "expired",
		ExpiresAt:   float64(time.Now().Unix()) - 10,
	}))

	client := newTestClient(t, srv.URL, store)

	tok, err := client.BearerToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "brand-new", tok)

	// The cache must be overwritten with a record expiring in the future.
	rec := store.Load()
	require.NotNil(t, rec)
	assert.Equal(t, "brand-new", rec.AccessToken)
	assert.Greater(t, rec.ExpiresAt, float64(time.Now().Unix()))
}

func TestBearerToken_AcquireFailureIsAuthError(t *testing.T) {
	srv := tokenEndpoint(t, func(_ string, _ *http.Request) (int, string) {
		return http.StatusUnauthorized, `{"error":"invalid_client"}`
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL, newTestStore(t))

	_, err := client.BearerToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)

	var tokenErr *TokenError
	require.ErrorAs(t, err, &tokenErr)
	assert.Equal(t, http.StatusUnauthorized, tokenErr.StatusCode)
	assert.Contains(t, tokenErr.Body, "invalid_client")
}

func TestBearerToken_MissingAccessTokenInResponse(t *testing.T) {
	srv := tokenEndpoint(t, func(_ string, _ *http.Request) (int, string) {
		return http.StatusOK, `{"expires_in":3600}`
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL, newTestStore(t))

	_, err := client.BearerToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
}

func TestBearerToken_SingleFlight(t *testing.T) {
	var calls atomic.Int32

	release := make(chan struct{})

	srv := tokenEndpoint(t, func(_ string, _ *http.Request) (int, string) {
		calls.Add(1)
		<-release

		return http.StatusOK, `{"access_token":"shared","expires_in":3600}`
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL, newTestStore(t))

	const concurrency = 10

	var wg sync.WaitGroup

	tokens := make([]string, concurrency)
	errs := make([]error, concurrency)

	for i := range concurrency {
		wg.Add(1)

		go func() {
			defer wg.Done()
			tokens[i], errs[i] = client.BearerToken(context.Background())
		}()
	}

	// Let the goroutines pile up behind the in-flight request, then release.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range concurrency {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", tokens[i])
	}

	assert.Equal(t, int32(1), calls.Load(), "concurrent callers must share one endpoint request")
}

func TestBearerToken_DefaultExpiresIn(t *testing.T) {
	srv := tokenEndpoint(t, func(_ string, _ *http.Request) (int, string) {
		return http.StatusOK, `{"access_token":"no-expiry"}`
	})
	defer srv.Close()

	store := newTestStore(t)
	client := newTestClient(t, srv.URL, store)

	_, err := client.BearerToken(context.Background())
	require.NoError(t, err)

	rec := store.Load()
	require.NotNil(t, rec)
	assert.Equal(t, int64(defaultExpiresIn), rec.ExpiresIn)
}

func TestForceNew_IgnoresValidCache(t *testing.T) {
	var calls atomic.Int32

	srv := tokenEndpoint(t, func(grantType string, _ *http.Request) (int, string) {
		calls.Add(1)
		assert.Equal(t, "client_credentials", grantType)

		return http.StatusOK, `{"access_token":"forced","expires_in":3600}`
	})
	defer srv.Close()

	store := newTestStore(t)
	require.NoError(t, store.Save(&tokencache.Record{
		AccessToken: "still-valid",
		ExpiresAt:   float64(time.Now().Unix()) + 3600,
	}))

	client := newTestClient(t, srv.URL, store)

	rec, err := client.ForceNew(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "forced", rec.AccessToken)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSource_Token(t *testing.T) {
	srv := tokenEndpoint(t, func(_ string, _ *http.Request) (int, string) {
		return http.StatusOK, `{"access_token":"via-source","expires_in":3600}`
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL, newTestStore(t))

	tok, err := client.Source(context.Background()).Token()
	require.NoError(t, err)
	assert.Equal(t, "via-source", tok)
}

func TestBearerToken_NetworkError(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:1", newTestStore(t))

	_, err := client.BearerToken(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAuth), "network errors are not auth errors")
}
