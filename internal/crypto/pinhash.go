// Package crypto implements PIN hashing and record sealing for data at rest.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (tuned for interactive signing flows).
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// HashPIN returns the Argon2id hash of a self-select PIN using the provided
// salt. Raw PINs are never persisted; only this hash is.
func HashPIN(pin, salt []byte) []byte {
	return argon2.IDKey(pin, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// VerifyPIN verifies a PIN against its expected Argon2id hash and salt.
func VerifyPIN(pin, salt, expected []byte) bool {
	got := HashPIN(pin, salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}
