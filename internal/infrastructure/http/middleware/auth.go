package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rezkam/taskflow/internal/application/auth"
	"github.com/rezkam/taskflow/internal/domain"
	"github.com/rezkam/taskflow/internal/infrastructure/http/response"
)

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.Claims, error)
}

// Auth is HTTP middleware for JWT bearer authentication.
type Auth struct {
	validator TokenValidator
}

// NewAuth creates a new auth middleware.
func NewAuth(validator TokenValidator) *Auth {
	return &Auth{
		validator: validator,
	}
}

// Validate is a Chi middleware that validates the token and stores the user
// in the request context.
//
// The token is read from "Authorization: Bearer <token>". Websocket upgrade
// requests may pass it as the "token" query parameter instead, since browsers
// cannot set headers on them.
func (a *Auth) Validate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			slog.WarnContext(r.Context(), "authentication failed: missing or malformed token",
				"path", r.URL.Path,
				"method", r.Method)
			response.Unauthorized(w, "missing or malformed bearer token")
			return
		}

		claims, err := a.validator.ValidateToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				slog.WarnContext(r.Context(), "authentication failed: invalid or expired token",
					"path", r.URL.Path,
					"method", r.Method,
					"error", err)
			} else {
				slog.ErrorContext(r.Context(), "authentication failed: unexpected error",
					"path", r.URL.Path,
					"method", r.Method,
					"error", err)
			}
			response.Unauthorized(w, "invalid or expired token")
			return
		}

		slog.DebugContext(r.Context(), "authentication successful",
			"path", r.URL.Path,
			"method", r.Method,
			"user_id", claims.UserID)

		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), claims.UserID)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		return token, found && token != ""
	}

	if isWebsocketUpgrade(r) {
		token := r.URL.Query().Get("token")
		return token, token != ""
	}
	return "", false
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
