// Package oauth implements the client-credentials token lifecycle against the
// John Deere OAuth2 token endpoint: cache-aware acquisition, expiry-aware
// refresh with fallback to re-acquisition, and single-flight collapsing of
// concurrent token requests.
//
// The flow shape (HTTP Basic auth, form-encoded grants, a cache file whose
// JSON field names are an external contract) is mandated by the upstream
// platform, so the client is built directly on net/http rather than an
// oauth2 helper library.
package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/brideal/dealsync/internal/tokencache"
)

// ErrAuth indicates the token endpoint rejected the request (bad credentials
// or malformed grant). Callers check with errors.Is to trigger
// re-authentication instead of reporting a generic failure.
var ErrAuth = errors.New("oauth: token endpoint rejected request")

// TokenError wraps ErrAuth with the endpoint's status code and response body.
type TokenError struct {
	StatusCode int
	Body       string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("oauth: token request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *TokenError) Unwrap() error {
	return ErrAuth
}

// Credentials identifies the OAuth2 client. Immutable for the client's
// lifetime.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// tokenResponse mirrors the token endpoint's JSON response.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

// defaultExpiresIn is assumed when the endpoint omits expires_in.
const defaultExpiresIn = 3600

// Client owns the process's single "current token" slot, persisted through a
// tokencache.Store. Concurrent BearerToken calls while no valid token exists
// collapse into one endpoint round-trip whose result all callers share.
type Client struct {
	tokenURL   string
	creds      Credentials
	scope      string
	store      *tokencache.Store
	httpClient *http.Client
	logger     *slog.Logger

	group singleflight.Group

	// now is the clock used for expiry stamping. Tests override this.
	now func() time.Time
}

// NewClient creates an OAuth client. The store must not be nil; the caller
// applies any overall request timeout through httpClient.
func NewClient(
	tokenURL string,
	creds Credentials,
	scope string,
	store *tokencache.Store,
	httpClient *http.Client,
	logger *slog.Logger,
) *Client {
	if store == nil {
		panic("oauth: NewClient requires a token store")
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		tokenURL:   tokenURL,
		creds:      creds,
		scope:      scope,
		store:      store,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

// BearerToken returns a valid access token, acquiring or refreshing as
// needed. Refresh failures are never fatal on their own: the client falls
// back to a fresh client-credentials grant, and only a failure of that
// grant propagates.
func (c *Client) BearerToken(ctx context.Context) (string, error) {
	// Fast path outside the single-flight group: a valid cached token needs
	// no coordination.
	if rec := c.store.Load(); c.store.IsValid(rec) {
		c.logger.Debug("using cached token")
		return rec.AccessToken, nil
	}

	v, err, shared := c.group.Do("token", func() (any, error) {
		rec, acqErr := c.acquire(ctx)
		if acqErr != nil {
			return nil, acqErr
		}

		return rec.AccessToken, nil
	})
	if err != nil {
		return "", err
	}

	if shared {
		c.logger.Debug("reused in-flight token acquisition")
	}

	tok, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("oauth: unexpected single-flight result type %T", v)
	}

	return tok, nil
}

// acquire runs inside the single-flight group. It re-checks the cache first
// so waiters that piled up behind a completed acquisition reuse its result.
func (c *Client) acquire(ctx context.Context) (*tokencache.Record, error) {
	rec := c.store.Load()
	if c.store.IsValid(rec) {
		return rec, nil
	}

	if rec != nil && rec.RefreshToken != "" {
		refreshed, err := c.refresh(ctx, rec.RefreshToken)
		if err == nil {
			return refreshed, nil
		}

		c.logger.Warn("token refresh failed, acquiring new token",
			slog.String("error", err.Error()),
		)
	}

	return c.acquireNew(ctx)
}

// acquireNew performs a client-credentials grant. A non-200 response is
// fatal for this call since there is no further fallback beneath it.
func (c *Client) acquireNew(ctx context.Context) (*tokencache.Record, error) {
	c.logger.Info("acquiring new token",
		slog.String("grant_type", "client_credentials"),
	)

	form := url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {c.scope},
	}

	return c.requestToken(ctx, form)
}

// refresh performs a refresh-token grant. Any failure is reported to the
// caller, which falls back to acquireNew.
func (c *Client) refresh(ctx context.Context, refreshToken string) (*tokencache.Record, error) {
	c.logger.Info("refreshing token",
		slog.String("grant_type", "refresh_token"),
	)

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	return c.requestToken(ctx, form)
}

// requestToken POSTs a form-encoded grant with HTTP Basic auth, stamps the
// absolute expiry, and persists the resulting record wholesale.
func (c *Client) requestToken(ctx context.Context, form url.Values) (*tokencache.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("oauth: creating token request: %w", err)
	}

	req.Header.Set("Authorization", "Basic "+basicAuth(c.creds))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth: token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("oauth: reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &TokenError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("oauth: decoding token response: %w", err)
	}

	if tr.AccessToken == "" {
		return nil, &TokenError{StatusCode: resp.StatusCode, Body: "response missing access_token"}
	}

	expiresIn := tr.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}

	// The endpoint only reports a relative lifetime; stamp the absolute
	// expiry before storage.
	rec := &tokencache.Record{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    expiresIn,
		ExpiresAt:    float64(c.now().UnixNano())/float64(time.Second) + float64(expiresIn),
		Scope:        tr.Scope,
	}

	if saveErr := c.store.Save(rec); saveErr != nil {
		// The token is usable even if the cache write failed; the next call
		// simply pays for another round-trip.
		c.logger.Warn("failed to persist token cache",
			slog.String("error", saveErr.Error()),
		)
	}

	c.logger.Info("token acquired",
		slog.Int64("expires_in", expiresIn),
		slog.Bool("has_refresh_token", tr.RefreshToken != ""),
	)

	return rec, nil
}

// ForceNew discards any cached token and performs a fresh client-credentials
// grant. Used by diagnostic tooling to regenerate the cache on demand.
func (c *Client) ForceNew(ctx context.Context) (*tokencache.Record, error) {
	v, err, _ := c.group.Do("token", func() (any, error) {
		return c.acquireNew(ctx)
	})
	if err != nil {
		return nil, err
	}

	rec, ok := v.(*tokencache.Record)
	if !ok {
		return nil, fmt.Errorf("oauth: unexpected single-flight result type %T", v)
	}

	return rec, nil
}

// Source adapts the client to the graph package's TokenSource interface,
// binding ctx to each acquisition. ctx must outlive the source; callers pass
// context.Background() for long-lived sessions.
func (c *Client) Source(ctx context.Context) *TokenSource {
	return &TokenSource{client: c, ctx: ctx}
}

// TokenSource is a ctx-bound adapter returned by Client.Source.
type TokenSource struct {
	client *Client
	ctx    context.Context
}

// Token returns a valid bearer token.
func (s *TokenSource) Token() (string, error) {
	return s.client.BearerToken(s.ctx)
}

// basicAuth builds the base64(client_id:client_secret) credential.
func basicAuth(creds Credentials) string {
	return base64.StdEncoding.EncodeToString([]byte(creds.ClientID + ":" + creds.ClientSecret))
}
