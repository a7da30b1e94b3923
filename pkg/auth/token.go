// Package auth implements credential generation, hashing, and the
// request authenticators guarding the registry and web surfaces.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
)

// TokenLength is the length of generated plaintext tokens.
const TokenLength = 32

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateToken returns a fresh alphanumeric credential. The plaintext
// is shown to the user exactly once; only its hash is ever stored.
func GenerateToken() (string, error) {
	out := make([]byte, TokenLength)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random token: %w", err)
		}
		out[i] = tokenAlphabet[n.Int64()]
	}
	return string(out), nil
}

// Hash returns the SHA-256 digest of a raw credential. Token records
// are keyed by this value.
func Hash(token []byte) []byte {
	sum := sha256.Sum256(token)
	return sum[:]
}
