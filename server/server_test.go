package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/authflow/go-session-auth/auth"
	"github.com/authflow/go-session-auth/internal/config"
	"github.com/authflow/go-session-auth/server"
	"github.com/authflow/go-session-auth/sessions"
	"github.com/authflow/go-session-auth/token"
	"github.com/authflow/go-session-auth/users/memrepo"
)

const (
	secretStr        = "test-signing-secret"
	testUserEmail    = "a@x.com"
	testUserPassword = "Abc12345!"
	refreshCookie    = "refreshToken"
)

type testFixture struct {
	ts      *httptest.Server
	client  *http.Client
	service *auth.Service
	tokens  *token.Manager
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	t.Setenv("JWT_SECRET", secretStr)
	cfg, err := config.New()
	require.NoError(t, err)

	tm := token.New(
		token.NewHMACSigner(cfg.GetSigningSecret()),
		token.WithTokenExpiry(cfg.GetAccessTokenExpiry(), cfg.GetRefreshTokenExpiry()),
	)
	service, err := auth.NewService(
		auth.Repos{Users: memrepo.New(), Sessions: sessions.NewInMemoryStore()},
		tm,
		auth.WithBcryptCost(bcrypt.MinCost),
	)
	require.NoError(t, err)

	srv, err := server.New(cfg, service)
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	require.NoError(t, service.Register(testUserEmail, testUserPassword))

	return &testFixture{ts: ts, client: ts.Client(), service: service, tokens: tm}
}

func (f *testFixture) postJSON(t *testing.T, path string, body any, cookies ...*http.Cookie) (*http.Response, map[string]string) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(http.MethodPost, f.ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload := map[string]string{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp, payload
}

func credentials(email, password string) map[string]string {
	return map[string]string{"email": email, "password": password}
}

func refreshCookieFrom(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == refreshCookie {
			return c
		}
	}
	t.Fatal("no refresh cookie in response")
	return nil
}

func TestRegisterEndpoint(t *testing.T) {
	f := setupTestFixture(t)

	resp, payload := f.postJSON(t, "/register", credentials("b@x.com", testUserPassword))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "User registered successfully", payload["message"])

	resp, payload = f.postJSON(t, "/register", credentials("b@x.com", testUserPassword))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "User already exists", payload["message"])

	resp, _ = f.postJSON(t, "/register", credentials("", ""))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.postJSON(t, "/register", credentials("c@x.com", "weak"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginEndpoint(t *testing.T) {
	f := setupTestFixture(t)

	resp, payload := f.postJSON(t, "/login", credentials(testUserEmail, testUserPassword))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, payload["accessToken"])

	cookie := refreshCookieFrom(t, resp)
	require.NotEmpty(t, cookie.Value)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	require.Equal(t, "/", cookie.Path)
	require.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookie.MaxAge)

	// The refresh token never appears in the response body
	require.Empty(t, payload["refreshToken"])
}

func TestLoginFailuresShareOneShape(t *testing.T) {
	f := setupTestFixture(t)

	resp, wrongPassword := f.postJSON(t, "/login", credentials(testUserEmail, "wrong"))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, unknownUser := f.postJSON(t, "/login", credentials("nobody@x.com", testUserPassword))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	require.Equal(t, wrongPassword, unknownUser)
}

func TestProtectedEndpoint(t *testing.T) {
	f := setupTestFixture(t)

	_, loginPayload := f.postJSON(t, "/login", credentials(testUserEmail, testUserPassword))
	accessToken := loginPayload["accessToken"]

	// Without a token
	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/protected", nil)
	require.NoError(t, err)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// With a bad token
	req.Header.Set("Authorization", "Bearer nonsense")
	resp, err = f.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// With the real token
	req, err = http.NewRequest(http.MethodGet, f.ts.URL+"/protected", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err = f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload := map[string]string{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, testUserEmail, payload["email"])
}

func TestRefreshRotationOverHTTP(t *testing.T) {
	f := setupTestFixture(t)

	loginResp, _ := f.postJSON(t, "/login", credentials(testUserEmail, testUserPassword))
	r1 := refreshCookieFrom(t, loginResp)

	// First exchange succeeds and rotates the cookie
	resp, payload := f.postJSON(t, "/refresh", nil, r1)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, payload["accessToken"])
	r2 := refreshCookieFrom(t, resp)
	require.NotEqual(t, r1.Value, r2.Value)

	// Reusing the superseded token fails
	resp, _ = f.postJSON(t, "/refresh", nil, r1)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// The rotated token still works
	resp, _ = f.postJSON(t, "/refresh", nil, r2)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRefreshWithoutCookie(t *testing.T) {
	f := setupTestFixture(t)

	resp, payload := f.postJSON(t, "/refresh", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Refresh token required", payload["message"])
}

func TestRefreshWithForgedToken(t *testing.T) {
	f := setupTestFixture(t)

	forged := token.New(token.NewHMACSigner("attacker-secret"))
	pair, err := forged.Issue(testUserEmail)
	require.NoError(t, err)

	resp, _ := f.postJSON(t, "/refresh", nil, &http.Cookie{Name: refreshCookie, Value: pair.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutEndpoint(t *testing.T) {
	f := setupTestFixture(t)

	loginResp, _ := f.postJSON(t, "/login", credentials(testUserEmail, testUserPassword))
	r1 := refreshCookieFrom(t, loginResp)

	resp, payload := f.postJSON(t, "/logout", nil, r1)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Logged out successfully", payload["message"])

	// Cookie is expired by the response
	cleared := refreshCookieFrom(t, resp)
	require.Empty(t, cleared.Value)
	require.Less(t, cleared.MaxAge, 0)

	// The just-cleared token can no longer refresh
	resp, _ = f.postJSON(t, "/refresh", nil, r1)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Logout is idempotent: no cookie, stale cookie, repeated calls all succeed
	resp, _ = f.postJSON(t, "/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.postJSON(t, "/logout", nil, r1)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCorsPreflight(t *testing.T) {
	f := setupTestFixture(t)

	origin := "http://localhost:3000" // the configured client origin default

	req, err := http.NewRequest(http.MethodOptions, f.ts.URL+"/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, origin, resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestCorsRejectsUnknownOrigin(t *testing.T) {
	f := setupTestFixture(t)

	req, err := http.NewRequest(http.MethodPost, f.ts.URL+"/login", bytes.NewReader([]byte("{}")))
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example.com")

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := config.New()
	require.ErrorIs(t, err, config.ErrMissingSecret)
}

func TestScenarioRegisterLoginRefresh(t *testing.T) {
	f := setupTestFixture(t)

	// register("a2@x.com","Abc12345!") -> login -> token pair
	resp, _ := f.postJSON(t, "/register", credentials("a2@x.com", testUserPassword))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload := f.postJSON(t, "/login", credentials("a2@x.com", testUserPassword))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, payload["accessToken"])
	r1 := refreshCookieFrom(t, resp)

	// login with the wrong password -> 401
	resp, _ = f.postJSON(t, "/login", credentials("a2@x.com", "wrong"))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// refresh(R1) -> new pair with R2 != R1, refresh(R1) again -> 401
	resp, _ = f.postJSON(t, "/refresh", nil, r1)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	r2 := refreshCookieFrom(t, resp)
	require.NotEqual(t, r1.Value, r2.Value)

	resp, _ = f.postJSON(t, "/refresh", nil, r1)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
