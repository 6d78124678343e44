package middleware

import (
	"context"
	"net/http"
	"strings"
)

// TokenVerifier validates a session token and returns the wallet address it
// was issued to, lowercased.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type contextKey struct{}

var addressKey contextKey

// WalletAddress returns the authenticated wallet address stored by RequireAuth,
// or "" when the request was not authenticated.
func WalletAddress(ctx context.Context) string {
	addr, _ := ctx.Value(addressKey).(string)
	return addr
}

// RequireAuth wraps a handler so it only runs for requests carrying a valid
// Bearer token. The authenticated wallet address is attached to the request
// context.
func RequireAuth(verifier TokenVerifier, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeUnauthorized(w, "missing authentication token")
			return
		}

		address, err := verifier.Verify(token)
		if err != nil {
			writeUnauthorized(w, "invalid authentication token")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), addressKey, address)))
	}
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
