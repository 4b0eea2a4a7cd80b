package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Middleware wraps an http.Handler, typically for authentication.
type Middleware func(http.Handler) http.Handler

type contextKey string

// UserIDKey carries the authenticated subject through the request context.
const UserIDKey contextKey = "auth_user_id"

// NoAuth is the identity middleware used when auth is disabled.
func NoAuth(next http.Handler) http.Handler { return next }

// JWTAuth returns a middleware that requires a valid HS256 bearer token
// signed with secret. The token subject is stored in the request context.
func JWTAuth(secret string, logger *zap.Logger) Middleware {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return key, nil
			})
			if err != nil || !token.Valid {
				logger.Debug("Token rejected", zap.Error(err))
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			sub, _ := claims.GetSubject()
			ctx := context.WithValue(r.Context(), UserIDKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated subject, if any.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}
