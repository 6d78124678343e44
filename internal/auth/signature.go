package auth

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignInMessage builds the exact text a wallet signs to authenticate. The
// nonce binds the signature to one login attempt.
func SignInMessage(address, nonce string) string {
	return fmt.Sprintf("Sign in to the relay\nAddress: %s\nNonce: %s", address, nonce)
}

// RecoverSigner recovers the wallet address that personal-signed the message.
// The signature is the 65-byte r||s||v hex string wallets produce, with v as
// either 0/1 or the legacy 27/28.
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("auth: invalid signature hex: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("auth: signature must be 65 bytes, got %d", len(sig))
	}

	// Wallets emit v as 27/28; go-ethereum wants 0/1.
	if sig[64] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("auth: recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature checks that the claimed address personal-signed the
// message.
func VerifySignature(address, message, signature string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("auth: invalid address %q", address)
	}
	signer, err := RecoverSigner(message, signature)
	if err != nil {
		return err
	}
	if signer != common.HexToAddress(address) {
		return fmt.Errorf("auth: signature from %s, expected %s", signer.Hex(), address)
	}
	return nil
}
