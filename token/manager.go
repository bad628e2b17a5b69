package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/authflow/go-session-auth/internal/errors"
)

// Pair is the result of a single issuance: a short-lived access token and a
// longer-lived refresh token, both asserting the same identity.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Manager issues and verifies signed identity tokens. It holds no server-side
// state; callers are responsible for persisting refresh tokens.
type Manager struct {
	signer             Signer
	issuer             string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	nowFunc            func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func New(signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer: signer,
		issuer: "go-session-auth",
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = 15 * time.Minute
	}
	if m.refreshTokenExpiry == 0 {
		m.refreshTokenExpiry = 7 * 24 * time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// Issue mints a new (access, refresh) pair for the given identity. Each token
// carries the identity as the subject claim and its own expiry.
func (m *Manager) Issue(email string) (Pair, error) {
	accessToken, err := m.signToken(email, m.accessTokenExpiry)
	if err != nil {
		return Pair{}, apperrors.Wrapf(err, "[Manager.Issue] access token")
	}
	refreshToken, err := m.signToken(email, m.refreshTokenExpiry)
	if err != nil {
		return Pair{}, apperrors.Wrapf(err, "[Manager.Issue] refresh token")
	}
	return Pair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Verify parses a raw token and returns the asserted identity. A token is
// accepted if and only if its signature is valid and its expiry has not
// elapsed. Expired tokens map to ErrTokenExpired, everything else invalid to
// ErrInvalidToken.
func (m *Manager) Verify(rawToken string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(rawToken, claims, m.signer.GetVerificationKey,
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperrors.ErrTokenExpired
		}
		return "", apperrors.ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", apperrors.ErrInvalidToken
	}
	return claims.Subject, nil
}

func (m *Manager) signToken(email string, expiry time.Duration) (string, error) {
	now := m.nowFunc()
	claims := jwt.MapClaims{
		"iss": m.issuer,
		"sub": email,
		"iat": now.Unix(),
		"exp": now.Add(expiry).Unix(),
		"jti": uuid.New().String(),
	}
	return m.signer.Sign(claims)
}
