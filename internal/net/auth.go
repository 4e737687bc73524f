package net

import (
	nethttp "net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// RequireToken wraps next with HMAC JWT validation. Tokens arrive in the
// Authorization header or, for WebSocket upgrades, the token query
// parameter. An empty secret disables the check.
func RequireToken(secret string, next nethttp.Handler) nethttp.Handler {
	if secret == "" {
		return next
	}
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		tokenString := extractToken(r)
		if tokenString == "" {
			httpError(w, "missing authorization token", nethttp.StatusUnauthorized)
			return
		}
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			httpError(w, "invalid token", nethttp.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractToken(r *nethttp.Request) string {
	bearer := r.Header.Get("Authorization")
	if strings.HasPrefix(bearer, "Bearer ") {
		return strings.TrimPrefix(bearer, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
