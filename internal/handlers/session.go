package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/trckr/apiserver/internal/apperr"
	"github.com/trckr/apiserver/internal/auth"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "token"

type contextKey string

const contextUserIDKey contextKey = "user_id"

// TokenVerifier resolves a session token to a user id.
type TokenVerifier interface {
	Verify(token string) (userID string, ok bool)
}

// RequireSession rejects requests without a valid session token and stores
// the resolved user id in the request context. The cookie is checked first,
// then an Authorization bearer header.
func RequireSession(tokens TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" {
				writeError(w, r, logger, apperr.Authentication("Authentication required"))
				return
			}
			userID, ok := tokens.Verify(token)
			if !ok {
				writeError(w, r, logger, apperr.Authentication("Invalid or expired session"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a context carrying an authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextUserIDKey, userID)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextUserIDKey).(string)
	return userID, ok && userID != ""
}

func requireUserID(r *http.Request) (string, error) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		return "", apperr.Authentication("")
	}
	return userID, nil
}

func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token
		}
	}
	return bearerToken(r)
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func setSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}
