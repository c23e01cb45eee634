package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/tashiscool/UsTaxes-sub000/internal/crypto"
)

// Sealed wraps another Store and encrypts values at rest with
// XChaCha20-Poly1305. The record key is bound in as additional data so a
// sealed value cannot be served under a different key.
type Sealed struct {
	inner Store
	key   []byte
}

var _ Store = (*Sealed)(nil)

// NewSealed wraps inner with an encrypting layer. The key must be
// crypto.KeyLen bytes.
func NewSealed(inner Store, key []byte) (*Sealed, error) {
	if len(key) != crypto.KeyLen {
		return nil, errors.New("storage: sealing key must be 32 bytes")
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Sealed{inner: inner, key: k}, nil
}

func (s *Sealed) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	plain, err := crypto.Open(s.key, []byte(key), sealed)
	if err != nil {
		return nil, fmt.Errorf("storage: unseal %q: %w", key, err)
	}
	return plain, nil
}

func (s *Sealed) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := crypto.Seal(s.key, []byte(key), value)
	if err != nil {
		return fmt.Errorf("storage: seal %q: %w", key, err)
	}
	return s.inner.Set(ctx, key, sealed)
}

func (s *Sealed) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

func (s *Sealed) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.Keys(ctx, prefix)
}
