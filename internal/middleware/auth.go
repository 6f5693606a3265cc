package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hfurst/taskpay/internal/auth"
)

// TokenCookieName is the cookie the login endpoint sets.
const TokenCookieName = "access_token"

// RequireAuth validates the JWT from the access_token cookie or the
// Authorization header and puts the caller's identity on the context.
func RequireAuth(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				unauthorized(w, "authentication required")
				return
			}

			id, err := auth.ParseToken(key, token)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			ctx := auth.WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest checks the cookie first, then a Bearer header for
// non-browser clients.
func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
