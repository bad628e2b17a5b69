// Package client is the Go client for the session auth server. It keeps the
// access token in process memory, lets the cookie jar carry the HTTP-only
// refresh cookie, and transparently retries a request once after refreshing
// an expired access token.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
)

// ErrUnauthorized is returned when the server rejects credentials or tokens
// and no silent refresh could recover the session.
var ErrUnauthorized = errors.New("unauthorized")

// APIError carries a non-success server response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// ProtectedResponse is the payload of the example protected resource.
type ProtectedResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// Client maintains a session against the auth server.
//
// The refresh token never surfaces to calling code: the server sets it as an
// HTTP-only cookie and the jar sends it back on /refresh and /logout. Only
// the short-lived access token is held here, in memory, lost on restart and
// recovered via Resume.
type Client struct {
	baseURL    string
	httpClient *http.Client

	tokenMu     sync.RWMutex
	accessToken string
	loggedIn    bool

	// refreshMu makes the refresh-and-retry sequence a critical section:
	// concurrent 401s share one in-flight refresh instead of issuing N
	// redundant refresh calls.
	refreshMu sync.Mutex
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. A cookie jar is
// installed if the given client has none, since the refresh flow depends
// on it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(baseURL string, options ...Option) (*Client, error) {
	c := &Client{baseURL: baseURL}

	for _, opt := range options {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("[client.New] cookiejar: %w", err)
		}
		c.httpClient.Jar = jar
	}
	return c, nil
}

// LoggedIn reports the session state derived from the last successful
// login/refresh.
func (c *Client) LoggedIn() bool {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.loggedIn
}

// Register creates a new account. It does not log in.
func (c *Client) Register(ctx context.Context, email, password string) error {
	body, err := json.Marshal(credentialsRequest{Email: email, Password: password})
	if err != nil {
		return err
	}
	status, respBody, err := c.send(ctx, http.MethodPost, "/register", body, "")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return apiError(status, respBody)
	}
	return nil
}

// Login authenticates and stores the returned access token. The refresh
// cookie lands in the jar as a side effect of the response.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(credentialsRequest{Email: email, Password: password})
	if err != nil {
		return err
	}
	status, respBody, err := c.send(ctx, http.MethodPost, "/login", body, "")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return apiError(status, respBody)
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return fmt.Errorf("[client.Login] decode response: %w", err)
	}
	c.setAccessToken(tr.AccessToken)
	return nil
}

// Logout ends the session on the server and forgets the local access token.
func (c *Client) Logout(ctx context.Context) error {
	status, respBody, err := c.send(ctx, http.MethodPost, "/logout", nil, "")
	c.setLoggedOut()
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return apiError(status, respBody)
	}
	return nil
}

// Resume tries to recover a session from the refresh cookie, e.g. after the
// in-memory access token was lost. Returns the resulting session state.
func (c *Client) Resume(ctx context.Context) bool {
	if err := c.refresh(ctx); err != nil {
		return false
	}
	return c.LoggedIn()
}

// Protected calls the example protected resource with the bearer access
// token, refreshing and retrying once on 401.
func (c *Client) Protected(ctx context.Context) (*ProtectedResponse, error) {
	var out ProtectedResponse
	if err := c.doAuthorized(ctx, http.MethodGet, "/protected", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// doAuthorized performs an authenticated request. On a 401 it attempts
// exactly one refresh and replays the request exactly once with the new
// token; a failed replay never triggers another refresh, so an invalid
// refresh token cannot loop.
func (c *Client) doAuthorized(ctx context.Context, method, path string, body []byte, out any) error {
	staleToken := c.currentAccessToken()

	status, respBody, err := c.send(ctx, method, path, body, staleToken)
	if err != nil {
		return err
	}
	if status != http.StatusUnauthorized {
		return decodeOrError(status, respBody, out)
	}

	if err := c.refreshOnce(ctx, staleToken); err != nil {
		c.setLoggedOut()
		return fmt.Errorf("%w: %s", ErrUnauthorized, string(respBody))
	}

	status, respBody, err = c.send(ctx, method, path, body, c.currentAccessToken())
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		c.setLoggedOut()
		return fmt.Errorf("%w: %s", ErrUnauthorized, string(respBody))
	}
	return decodeOrError(status, respBody, out)
}

// refreshOnce coalesces concurrent refresh attempts: the first caller in
// performs the exchange, later callers observe the already-rotated access
// token and skip their own call.
func (c *Client) refreshOnce(ctx context.Context, staleToken string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if current := c.currentAccessToken(); current != "" && current != staleToken {
		return nil // someone else already refreshed
	}
	return c.refresh(ctx)
}

func (c *Client) refresh(ctx context.Context) error {
	status, respBody, err := c.send(ctx, http.MethodPost, "/refresh", nil, "")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		c.setLoggedOut()
		return apiError(status, respBody)
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return fmt.Errorf("[client.refresh] decode response: %w", err)
	}
	c.setAccessToken(tr.AccessToken)
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, accessToken string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) currentAccessToken() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.accessToken
}

func (c *Client) setAccessToken(token string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	c.accessToken = token
	c.loggedIn = token != ""
}

func (c *Client) setLoggedOut() {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	c.accessToken = ""
	c.loggedIn = false
}

func decodeOrError(status int, respBody []byte, out any) error {
	if status != http.StatusOK {
		return apiError(status, respBody)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func apiError(status int, respBody []byte) error {
	var msg messageResponse
	_ = json.Unmarshal(respBody, &msg)
	if status == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg.Message)
	}
	return &APIError{Status: status, Message: msg.Message}
}
