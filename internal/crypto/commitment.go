// Package crypto implements the payment commitment hash shared with the
// escrow contract and relayer key handling.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeAccountLinesHash computes the commitment over plaintext payment
// details: SHA256(len(accountName) || accountName || len(accountID) || accountID).
// Each field is prefixed with its byte length (single byte), so the field
// boundary is unambiguous and swapping the fields yields a different hash.
// The encoding must match the contract's hashing of the seller's commitment.
func ComputeAccountLinesHash(accountName, accountID string) [32]byte {
	name := []byte(accountName)
	id := []byte(accountID)

	buf := make([]byte, 0, 2+len(name)+len(id))
	buf = append(buf, byte(len(name)))
	buf = append(buf, name...)
	buf = append(buf, byte(len(id)))
	buf = append(buf, id...)

	return sha256.Sum256(buf)
}

// HashHex renders a 32-byte hash as 0x-prefixed lowercase hex.
func HashHex(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}

// ParseHash32 decodes a 0x-prefixed (or bare) 64-char hex string into 32 bytes.
// Used for trade ids and transaction hashes.
func ParseHash32(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, fmt.Errorf("crypto: invalid hex %q: %w", s, err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("crypto: expected 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// IsZeroHash reports whether the hash is all zeroes (the contract's sentinel
// for "order not found").
func IsZeroHash(h [32]byte) bool {
	return h == [32]byte{}
}
