// Package session issues and validates stateless, encrypted first-party session tokens.
package session

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const keyInfo = "credgate session token v1"

// issuedAtSize is the nonce prefix holding the seal time in big-endian Unix seconds.
const issuedAtSize = 8

// Codec seals short plaintexts into URL and cookie safe tokens.
// Tokens are base64url(nonce || ciphertext) under XChaCha20-Poly1305, so any
// tampering fails authentication. The nonce starts with the seal time followed
// by random bytes; it is authenticated along with the ciphertext. The key is
// derived once from the configured secret; changing the secret invalidates
// every issued token.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives the token key from secret.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret must not be empty")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init session cipher: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh nonce stamped with the current time.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	return c.EncryptAt(plaintext, time.Now())
}

// EncryptAt seals plaintext with a fresh nonce stamped with issuedAt.
func (c *Codec) EncryptAt(plaintext string, issuedAt time.Time) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	binary.BigEndian.PutUint64(nonce[:issuedAtSize], uint64(issuedAt.Unix()))
	if _, err := rand.Read(nonce[issuedAtSize:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt. Every failure wraps ErrDecode.
func (c *Codec) Decrypt(token string) (string, error) {
	plaintext, _, err := c.Open(token)
	return plaintext, err
}

// Open is Decrypt that also returns the time the token was sealed.
func (c *Codec) Open(token string) (string, time.Time, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: invalid encoding", ErrDecode)
	}
	if len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return "", time.Time{}, fmt.Errorf("%w: token too short", ErrDecode)
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: authentication failed", ErrDecode)
	}
	issuedAt := time.Unix(int64(binary.BigEndian.Uint64(nonce[:issuedAtSize])), 0)
	return string(plaintext), issuedAt, nil
}
