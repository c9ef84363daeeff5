// Package auth implements authentication and session management for the
// SprinklerOps backend: password hashing, opaque session tokens, and the
// login/logout/registration flows.
package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	"sprinklerops/internal/types"
)

// bcryptCost is the work factor for password hashes. The library default
// balances login latency against brute-force cost.
const bcryptCost = bcrypt.DefaultCost

// HashPassword derives a bcrypt hash from a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash password", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
// bcrypt's comparison is constant-time with respect to the hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CanonicalizeEmail normalizes email addresses for consistent lookups.
func CanonicalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
