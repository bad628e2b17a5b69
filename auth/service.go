// Package auth implements the credential and token lifecycle behind the HTTP
// surface: login, refresh-token rotation, logout, and registration.
package auth

import (
	"sync"
	"time"

	apperrors "github.com/authflow/go-session-auth/internal/errors"
	"github.com/authflow/go-session-auth/sessions"
	"github.com/authflow/go-session-auth/token"
	"github.com/authflow/go-session-auth/users"
)

// Repos holds all repository dependencies for the Service
type Repos struct {
	Users    users.Repo     // Repository for identity records
	Sessions sessions.Store // Authoritative refresh-token slot per identity
}

// Service provides the auth operations. Refresh-token rotation is serialized
// per identity: two concurrent refresh calls for the same identity cannot
// both succeed with the same prior token.
type Service struct {
	repos      Repos
	tokens     *token.Manager
	bcryptCost int

	lock       sync.Mutex
	identityMu map[string]*sync.Mutex
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithBcryptCost overrides the hashing work factor (primarily for tests,
// where the default cost makes suites slow).
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// NewService initializes a Service with required dependencies.
func NewService(repos Repos, tokens *token.Manager, options ...ServiceOption) (*Service, error) {
	if repos.Users == nil {
		return nil, apperrors.Wrapf(apperrors.ErrInternal, "[NewService] Users repo is required")
	}
	if repos.Sessions == nil {
		return nil, apperrors.Wrapf(apperrors.ErrInternal, "[NewService] Sessions store is required")
	}
	if tokens == nil {
		return nil, apperrors.Wrapf(apperrors.ErrInternal, "[NewService] token manager is required")
	}

	s := &Service{
		repos:      repos,
		tokens:     tokens,
		bcryptCost: 10,
		identityMu: make(map[string]*sync.Mutex),
	}

	for _, opt := range options {
		opt(s)
	}

	return s, nil
}

// Login verifies the submitted credentials and issues a fresh token pair,
// overwriting the identity's stored refresh token. Unknown identity and
// password mismatch return the same error so responses cannot be used to
// enumerate users.
func (s *Service) Login(email, password string) (token.Pair, error) {
	user, err := s.repos.Users.GetByEmail(email)
	if err != nil {
		return token.Pair{}, apperrors.ErrInvalidCredentials
	}

	if !users.CheckPasswordHash(password, user.PasswordHash) {
		return token.Pair{}, apperrors.ErrInvalidCredentials
	}

	mu := s.lockIdentity(email)
	mu.Lock()
	defer mu.Unlock()

	return s.issueAndRecord(email)
}

// Refresh exchanges a live refresh token for a new (access, refresh) pair.
// The presented token must be cryptographically valid AND equal to the
// identity's stored current value; a token superseded by rotation fails even
// though its signature still verifies. This is the only path that extends a
// session past the access token lifetime.
func (s *Service) Refresh(refreshToken string) (token.Pair, error) {
	if refreshToken == "" {
		return token.Pair{}, apperrors.ErrMissingToken
	}

	email, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return token.Pair{}, apperrors.Wrapf(apperrors.ErrInvalidRefreshToken, "[Service.Refresh] %v", err)
	}

	if _, err := s.repos.Users.GetByEmail(email); err != nil {
		return token.Pair{}, apperrors.ErrInvalidRefreshToken
	}

	mu := s.lockIdentity(email)
	mu.Lock()
	defer mu.Unlock()

	if !s.repos.Sessions.IsCurrent(email, refreshToken) {
		return token.Pair{}, apperrors.ErrStaleRefreshToken
	}

	return s.issueAndRecord(email)
}

// Logout clears the identity's refresh-token slot. Logging out an identity
// with no live session is not an error.
func (s *Service) Logout(email string) {
	if email == "" {
		return
	}
	mu := s.lockIdentity(email)
	mu.Lock()
	defer mu.Unlock()

	s.repos.Sessions.Clear(email)
}

// LogoutToken clears the session belonging to the identity asserted by the
// given refresh token. A token that no longer verifies identifies no session
// to clear, which is fine: logout is idempotent.
func (s *Service) LogoutToken(refreshToken string) {
	email, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return
	}
	s.Logout(email)
}

// Register creates a new identity with a hashed password and no live session.
func (s *Service) Register(email, password string) error {
	if email == "" || password == "" {
		return apperrors.ErrMissingFields
	}
	if err := users.ValidateEmail(email); err != nil {
		return &apperrors.BadRequestError{Reason: err.Error()}
	}
	if err := users.ValidatePasswordStrength(password); err != nil {
		return &apperrors.BadRequestError{Reason: err.Error()}
	}

	if _, err := s.repos.Users.GetByEmail(email); err == nil {
		return apperrors.ErrUserExists
	}

	hash, err := users.HashPassword(password, s.bcryptCost)
	if err != nil {
		return apperrors.Wrapf(err, "[Service.Register] HashPassword")
	}

	return s.repos.Users.Upsert(&users.User{
		Email:        email,
		PasswordHash: hash,
		DateJoined:   time.Now(),
	})
}

// VerifyAccess validates an access token and returns the identity it asserts.
func (s *Service) VerifyAccess(accessToken string) (string, error) {
	return s.tokens.Verify(accessToken)
}

func (s *Service) issueAndRecord(email string) (token.Pair, error) {
	pair, err := s.tokens.Issue(email)
	if err != nil {
		return token.Pair{}, apperrors.Wrapf(err, "[Service] tokens.Issue")
	}
	s.repos.Sessions.Record(email, pair.RefreshToken)
	return pair, nil
}

func (s *Service) lockIdentity(email string) *sync.Mutex {
	s.lock.Lock()
	defer s.lock.Unlock()
	mu, ok := s.identityMu[email]
	if !ok {
		mu = &sync.Mutex{}
		s.identityMu[email] = mu
	}
	return mu
}
