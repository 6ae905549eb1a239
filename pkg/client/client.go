// Package client is a small API client for the auth endpoints that manages
// the token pair the way the first-party apps do: it refreshes the access
// token proactively before expiry, retries once when the server answers with
// a "token refreshed, retry request" short-circuit, and drops all credentials
// on a 401.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// refreshSkew is how long before expiry the access token is refreshed.
const refreshSkew = 30 * time.Second

// ErrNotAuthenticated is returned when no refresh token is held (never logged
// in, or credentials were cleared after a 401).
var ErrNotAuthenticated = errors.New("not authenticated")

// Client calls the API with automatic token handling. Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time // zero means unknown
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New returns a Client for the API at baseURL (e.g. "https://api.example.com").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTokens installs a token pair, typically from a login response.
// expiresAt may be zero when the access token expiry is unknown.
func (c *Client) SetTokens(access, refresh string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = access
	c.refreshToken = refresh
	c.expiresAt = expiresAt
}

// Tokens returns the currently held pair.
func (c *Client) Tokens() (access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

// clear drops all credentials. Called on 401.
func (c *Client) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
	c.refreshToken = ""
	c.expiresAt = time.Time{}
}

// Do sends an authenticated request. The request must have GetBody set when
// it carries a body (http.NewRequest does this for common body types) so a
// retry after a mid-request refresh can replay it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.ensureFresh(req.Context()); err != nil && !errors.Is(err, ErrNotAuthenticated) {
		return nil, err
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.clear()
		return resp, nil
	}

	// The middleware short-circuit: a refreshed access token in the
	// Authorization response header plus a token marker in the body. Capture
	// the token and retry the original request once.
	newAccess := bearerFrom(resp.Header.Get("Authorization"))
	if resp.StatusCode == http.StatusOK && newAccess != "" {
		refreshed, replayable := isTokenRefreshReply(resp)
		if refreshed {
			c.mu.Lock()
			c.accessToken = newAccess
			c.expiresAt = time.Time{} // unknown; next refresh is reactive
			c.mu.Unlock()
			retry, err := cloneRequest(req)
			if err != nil {
				return nil, err
			}
			return c.send(retry)
		}
		if !replayable {
			return nil, errors.New("unreadable response body")
		}
	}
	return resp, nil
}

// Refresh exchanges the held refresh token for a new pair via POST /user/refresh.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refreshToken
	c.mu.Unlock()
	if refresh == "" {
		return ErrNotAuthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/user/refresh", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+refresh)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Rotation failure means the session is gone; full local logout.
		c.clear()
		return ErrNotAuthenticated
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refresh failed: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}
	if body.AccessToken == "" || body.RefreshToken == "" {
		return errors.New("refresh reply missing tokens")
	}

	c.mu.Lock()
	c.accessToken = body.AccessToken
	c.refreshToken = body.RefreshToken
	c.expiresAt = time.Time{}
	c.mu.Unlock()
	return nil
}

// ensureFresh refreshes proactively when the access token is missing or
// within refreshSkew of its known expiry.
func (c *Client) ensureFresh(ctx context.Context) error {
	c.mu.Lock()
	needs := c.accessToken == "" ||
		(!c.expiresAt.IsZero() && time.Until(c.expiresAt) < refreshSkew)
	hasRefresh := c.refreshToken != ""
	c.mu.Unlock()

	if !needs {
		return nil
	}
	if !hasRefresh {
		return ErrNotAuthenticated
	}
	return c.Refresh(ctx)
}

// send attaches the current access token and performs the request.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	access := c.accessToken
	c.mu.Unlock()
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	return c.httpClient.Do(req)
}

// isTokenRefreshReply reads the body looking for the {token:true} marker and
// restores the body for the caller when it is a normal reply. The second
// return is false when the body could not be restored.
func isTokenRefreshReply(resp *http.Response) (refreshed, replayable bool) {
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return false, false
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))

	var marker struct {
		Token bool `json:"token"`
	}
	if err := json.Unmarshal(raw, &marker); err != nil {
		return false, true
	}
	return marker.Token, true
}

func cloneRequest(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.Body == nil || req.GetBody == nil {
		return retry, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	retry.Body = body
	return retry, nil
}

func bearerFrom(header string) string {
	const prefix = "bearer "
	v := strings.TrimSpace(header)
	if len(v) < len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(v[len(prefix):])
}
