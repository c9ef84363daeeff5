package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateToken produces a cryptographically random opaque session token:
// 32 random bytes, hex encoded. The raw token travels to the client once
// and is never persisted.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken derives the storable SHA-256 digest of a raw session token.
// Lookups compare digests, so a database leak does not leak usable tokens.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
