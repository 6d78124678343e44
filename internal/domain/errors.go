package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("invalid input")
	ErrAlreadySet          = errors.New("payment info already set")
	ErrMissingChainContext = errors.New("no chain id available for verification")
	ErrChainUnavailable    = errors.New("no client registered for chain")
	ErrInvalidTransition   = errors.New("invalid trade status transition")
	ErrProofInProgress     = errors.New("proof generation already in progress")
	ErrLockHeld            = errors.New("lock already held")
)

// HashMismatchError is returned when the computed payment commitment does not
// match the on-chain value after all retries and fallbacks. Both hashes are
// carried for diagnosis; neither reveals the plaintext.
type HashMismatchError struct {
	OrderID  string
	Computed string // 0x-prefixed hex
	OnChain  string // last observed on-chain value, 0x-prefixed hex
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("hash mismatch for order %s: computed %s != on-chain %s",
		e.OrderID, e.Computed, e.OnChain)
}
