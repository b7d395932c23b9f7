package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NonceBytes is the entropy of a nonce before hex encoding.
const NonceBytes = 32

// NewNonceValue returns NonceBytes random bytes, hex encoded.
func NewNonceValue() (string, error) {
	b := make([]byte, NonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}
