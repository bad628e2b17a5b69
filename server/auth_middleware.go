package server

import (
	"context"
	"net/http"
	"strings"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyEmail stores the identity asserted by a verified access token
const ContextKeyEmail ContextKey = "email"

// EmailFromContext returns the authenticated identity, if any.
func EmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(ContextKeyEmail).(string)
	return email
}

// RequireAuth is middleware that validates a Bearer access token. Possession
// of a token grants nothing: the signature must verify and the embedded
// expiry must not have elapsed.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rawToken, ok := bearerToken(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Missing or malformed Authorization header"})
				return
			}

			email, err := s.auth.VerifyAccess(rawToken)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Invalid or expired token"})
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyEmail, email)
			next(w, r.WithContext(ctx))
		}
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
