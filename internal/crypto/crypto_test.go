package crypto

import (
	"bytes"
	"testing"
)

func TestRandBytes(t *testing.T) {
	a, err := RandBytes(32)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	b, err := RandBytes(32)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("want 32 bytes, got %d/%d", len(a), len(b))
	}
	if bytes.Equal(a, b) {
		t.Fatal("two random draws are identical")
	}
}

func TestHashAndVerifyPIN(t *testing.T) {
	salt, err := RandBytes(16)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	pin := []byte("12345")

	h := HashPIN(pin, salt)
	if len(h) != 32 {
		t.Fatalf("want 32-byte hash, got %d", len(h))
	}
	if bytes.Equal(h, pin) {
		t.Fatal("hash equals raw PIN")
	}
	if !VerifyPIN(pin, salt, h) {
		t.Fatal("correct PIN rejected")
	}
	if VerifyPIN([]byte("54321"), salt, h) {
		t.Fatal("wrong PIN accepted")
	}

	otherSalt, _ := RandBytes(16)
	if VerifyPIN(pin, otherSalt, h) {
		t.Fatal("wrong salt accepted")
	}
}

func TestSealOpen(t *testing.T) {
	key, err := RandBytes(KeyLen)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	aad := []byte("submission_98765ABCDEF0123456789")
	plain := []byte("serialized submission record")

	sealed, err := Seal(key, aad, plain)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, plain) {
		t.Fatal("sealed value contains plaintext")
	}

	got, err := Open(key, aad, sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch: %q", got)
	}

	if _, err := Open(key, []byte("submission_other"), sealed); err == nil {
		t.Fatal("opened with wrong additional data")
	}

	wrongKey, _ := RandBytes(KeyLen)
	if _, err := Open(wrongKey, aad, sealed); err == nil {
		t.Fatal("opened with wrong key")
	}

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0x01
	if _, err := Open(key, aad, tampered); err == nil {
		t.Fatal("opened tampered ciphertext")
	}

	if _, err := Open(key, aad, []byte("short")); err == nil {
		t.Fatal("opened truncated value")
	}
}

func TestSeal_BadKey(t *testing.T) {
	if _, err := Seal([]byte("short"), nil, []byte("x")); err == nil {
		t.Fatal("want error for short key")
	}
}
