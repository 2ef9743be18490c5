package crypt

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	k1 := DeriveKey([]byte("pass"), []byte("salt"))
	k2 := DeriveKey([]byte("pass"), []byte("salt"))

	if len(k1) != KeySize {
		t.Fatalf("derived key is %d bytes, want %d", len(k1), KeySize)
	}
	if !bytes.Equal(k1, k2) {
		t.Error("same passphrase and salt produced different keys")
	}

	k3 := DeriveKey([]byte("pass"), []byte("other-salt"))
	if bytes.Equal(k1, k3) {
		t.Error("different salts produced the same key")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := DeriveKey([]byte("pass"), []byte("salt"))

	payloads := [][]byte{
		[]byte("hello"),
		{},
		bytes.Repeat([]byte{0x42}, 1<<16),
	}

	for _, plaintext := range payloads {
		blob, err := Encrypt(plaintext, key)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}

		got, err := Decrypt(blob, key)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Errorf("round trip mismatch: got %d bytes, want %d bytes", len(got), len(plaintext))
		}
	}
}

func TestEncryptNonceVaries(t *testing.T) {
	key := DefaultKey()

	b1, err := Encrypt([]byte("same input"), key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	b2, err := Encrypt([]byte("same input"), key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if bytes.Equal(b1, b2) {
		t.Error("two encryptions of the same plaintext produced identical blobs")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	key := DeriveKey([]byte("pass"), []byte("salt"))
	other := DeriveKey([]byte("pass2"), []byte("salt"))

	blob, err := Encrypt([]byte("secret"), key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := Decrypt(blob, other); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Decrypt with wrong key returned %v, want ErrAuthentication", err)
	}
}

func TestDecryptTampered(t *testing.T) {
	key := DefaultKey()

	blob, err := Encrypt([]byte("secret payload"), key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// Flip one ciphertext byte.
	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)-1] ^= 0x01

	if _, err := Decrypt(tampered, key); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Decrypt of tampered blob returned %v, want ErrAuthentication", err)
	}
}

func TestDecryptTruncated(t *testing.T) {
	key := DefaultKey()

	if _, err := Decrypt([]byte("short"), key); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Decrypt of truncated blob returned %v, want ErrAuthentication", err)
	}
}
