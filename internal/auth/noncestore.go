// Package auth implements wallet sign-in: single-use nonces, personal-sign
// verification, and JWT session tokens.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// NonceTTL is how long an issued nonce stays redeemable.
const NonceTTL = 5 * time.Minute

// NonceStore is an in-memory single-use nonce registry. A nonce is valid for
// NonceTTL and consumed on first use, which blocks signature replay.
type NonceStore struct {
	mu     sync.Mutex
	issued map[string]time.Time

	now func() time.Time // test hook
}

// NewNonceStore creates an empty store.
func NewNonceStore() *NonceStore {
	return &NonceStore{
		issued: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Generate mints, records, and returns a fresh nonce. Expired nonces are
// swept opportunistically on each call.
func (s *NonceStore) Generate() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	nonce := hex.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for n, issuedAt := range s.issued {
		if now.Sub(issuedAt) >= NonceTTL {
			delete(s.issued, n)
		}
	}
	s.issued[nonce] = now

	return nonce
}

// Consume removes the nonce and reports whether it was valid and unexpired.
// A second call for the same nonce always returns false.
func (s *NonceStore) Consume(nonce string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	issuedAt, ok := s.issued[nonce]
	if !ok {
		return false
	}
	delete(s.issued, nonce)
	return s.now().Sub(issuedAt) < NonceTTL
}
