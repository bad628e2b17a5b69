package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/authflow/go-session-auth/internal/errors"
)

const contentTypeJSON = "application/json; charset=utf-8"

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

type protectedResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// RegisterHandler creates a new identity. The password never leaves this
// handler unhashed.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := readJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Email and password are required"})
			return
		}

		if err := s.auth.Register(req.Email, req.Password); err != nil {
			s.writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, messageResponse{Message: "User registered successfully"})
	}
}

// LoginHandler verifies credentials and starts a session. The access token
// goes back in the body; the refresh token travels only as an HTTP-only
// cookie so client script can never touch it.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := readJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Email and password are required"})
			return
		}

		pair, err := s.auth.Login(req.Email, req.Password)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.setRefreshCookie(w, r, pair.RefreshToken)
		writeJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken})
	}
}

// RefreshHandler exchanges the refresh cookie for a fresh token pair,
// rotating the cookie in the process.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refreshToken, ok := refreshTokenFromCookie(r)
		if !ok {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Refresh token required"})
			return
		}

		pair, err := s.auth.Refresh(refreshToken)
		if err != nil {
			s.writeError(w, err)
			return
		}

		s.setRefreshCookie(w, r, pair.RefreshToken)
		writeJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken})
	}
}

// LogoutHandler clears the identity's refresh-token slot and expires the
// cookie. Idempotent: logging out without a live session still succeeds.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if refreshToken, ok := refreshTokenFromCookie(r); ok {
			s.auth.LogoutToken(refreshToken)
		}

		s.clearRefreshCookie(w, r)
		writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
	}
}

// ProtectedHandler is an example resource behind RequireAuth.
func (s *Server) ProtectedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, protectedResponse{
			Message: "This is a protected resource",
			Email:   EmailFromContext(r.Context()),
		})
	}
}

// writeError maps service errors to the HTTP taxonomy. Signature and
// verification failures all collapse into Unauthorized; anything unexpected
// is logged server-side and surfaces as a generic message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var badRequest *apperrors.BadRequestError
	switch {
	case errors.As(err, &badRequest):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: badRequest.Reason})
	case errors.Is(err, apperrors.ErrMissingFields):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Email and password are required"})
	case errors.Is(err, apperrors.ErrMissingToken):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Refresh token required"})
	case errors.Is(err, apperrors.ErrUserExists):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "User already exists"})
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Invalid email or password"})
	case errors.Is(err, apperrors.ErrInvalidRefreshToken),
		errors.Is(err, apperrors.ErrStaleRefreshToken),
		errors.Is(err, apperrors.ErrInvalidToken),
		errors.Is(err, apperrors.ErrTokenExpired),
		errors.Is(err, apperrors.ErrUserNotFound):
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Invalid refresh token"})
	default:
		log.Err(err).Msg("unhandled error in auth handler")
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Something went wrong"})
	}
}

func readJSON(r *http.Request, v *credentialsRequest) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	if v.Email == "" || v.Password == "" {
		return apperrors.ErrMissingFields
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("failed to encode response body")
	}
}
