package utils

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plain password using bcrypt at the given cost.
func HashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

// CheckPassword compares plain password with hashed password.
func CheckPassword(plain, hashed string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	return err == nil
}

// HashToken hashes an opaque token value (refresh tokens) using bcrypt.
// Tokens are already high-entropy, so a lower cost than passwords is fine.
// bcrypt only reads the first 72 bytes, so tokens are pre-hashed with
// SHA-256 to keep every byte of long JWTs significant.
func HashToken(token string, cost int) (string, error) {
	sum := sha256.Sum256([]byte(token))
	bytes, err := bcrypt.GenerateFromPassword(sum[:], cost)
	return string(bytes), err
}

// CheckToken compares an opaque token with its stored bcrypt hash. Hashes
// are never compared by equality, only through this verify path.
func CheckToken(token, hashed string) bool {
	sum := sha256.Sum256([]byte(token))
	err := bcrypt.CompareHashAndPassword([]byte(hashed), sum[:])
	return err == nil
}
