package crypto

import (
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeyLen is the sealing key length in bytes.
const KeyLen = chacha20poly1305.KeySize

// Seal encrypts a serialized submission record with XChaCha20-Poly1305.
// The random nonce is prepended to the ciphertext. The key identifier used
// to persist the record is passed as additional data so a sealed value
// cannot be replayed under a different key.
func Seal(key, aad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce, err := RandBytes(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, aad)...)
	return out, nil
}

// Open decrypts a value produced by Seal using the same key and AAD.
func Open(key, aad, sealed []byte) ([]byte, error) {
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("sealed value too short")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := sealed[:chacha20poly1305.NonceSizeX]
	ct := sealed[chacha20poly1305.NonceSizeX:]
	return aead.Open(nil, nonce, ct, aad)
}
