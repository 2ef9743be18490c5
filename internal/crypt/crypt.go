// Package crypt provides the symmetric encryption used for artifacts
// at rest: a PBKDF2-derived key and an XChaCha20-Poly1305 codec.
//
// The key is derived fresh on every use from a passphrase and salt
// that are compiled into the binary and shared by every installation.
// Anyone with a copy of the binary can derive the same key, so this
// protects artifacts against casual inspection only, not against a
// motivated client-side attacker.
package crypt

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

// ErrAuthentication is returned by Decrypt when the ciphertext has
// been tampered with or the key is wrong.
var ErrAuthentication = errors.New("ciphertext authentication failed")

// KeySize is the size in bytes of the derived symmetric key.
const KeySize = 32

// kdfIterations is the PBKDF2 iteration count. High enough that
// deriving a key costs real CPU time, which only matters against
// brute force of a weaker passphrase than the built-in one.
const kdfIterations = 100000

// Built-in key material. Every installation shares these.
var (
	defaultPassphrase = []byte("appvault-artifact-store-passphrase")
	defaultSalt       = []byte("appvault-artifact-salt")
)

// DeriveKey derives a 32-byte key from a passphrase and salt using
// PBKDF2-HMAC-SHA256. Deterministic: the same inputs always produce
// the same key, so artifacts encrypted before a restart remain
// decryptable without persisting the key anywhere.
func DeriveKey(passphrase, salt []byte) []byte {
	return pbkdf2.Key(passphrase, salt, kdfIterations, KeySize, sha256.New)
}

// DefaultKey derives the built-in shared key.
func DefaultKey() []byte {
	return DeriveKey(defaultPassphrase, defaultSalt)
}

// Encrypt seals plaintext with XChaCha20-Poly1305 and returns a
// self-describing blob:
//
//	[nonce: 24 bytes (random)] [ciphertext+tag: N+16 bytes]
//
// Decrypt needs only the key; the nonce travels with the blob.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	// Seal appends ciphertext+tag after the nonce prefix.
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt. Returns ErrAuthentication
// if the blob was modified or sealed under a different key; it never
// returns unauthenticated plaintext.
func Decrypt(blob, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	if len(blob) < chacha20poly1305.NonceSizeX+aead.Overhead() {
		return nil, fmt.Errorf("%w: blob too short (%d bytes)", ErrAuthentication, len(blob))
	}

	nonce := blob[:chacha20poly1305.NonceSizeX]
	ciphertext := blob[chacha20poly1305.NonceSizeX:]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return plaintext, nil
}
