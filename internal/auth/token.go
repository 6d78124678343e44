package auth

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the session token lifetime.
const TokenTTL = 24 * time.Hour

// TokenService issues and verifies HS256 session tokens whose subject is the
// authenticated wallet address.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. With an empty secret a random one
// is generated, which means issued tokens do not survive a restart.
func NewTokenService(secret string, logger *slog.Logger) *TokenService {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 64)
		_, _ = rand.Read(key)
		logger.Warn("jwt secret not configured, generated a random one; tokens will not survive restarts")
	}
	return &TokenService{secret: key, ttl: TokenTTL}
}

// Issue creates a token for the wallet address and returns it with its
// lifetime in seconds.
func (t *TokenService) Issue(address string) (string, int64, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   address,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", 0, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, int64(t.ttl.Seconds()), nil
}

// Verify validates the token and returns the wallet address, lowercased.
func (t *TokenService) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("auth: token missing subject")
	}
	return strings.ToLower(claims.Subject), nil
}
