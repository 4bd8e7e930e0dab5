// Package vault provides authenticated encryption for third-party credentials
// held at rest. Secrets are sealed with AES-256-GCM under a process-wide master
// key; the ciphertext envelope is a single base64 string safe to store in any
// text column.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	keyBytes   = 32 // AES-256
	nonceBytes = 16
	tagBytes   = 16
)

var (
	// ErrKeyMissing indicates no master key was configured.
	ErrKeyMissing = errors.New("vault: master key not configured")

	// ErrKeyLength indicates the configured key is not 64 hex characters.
	ErrKeyLength = errors.New("vault: master key must be 64 hex characters (256 bits)")

	// ErrDecrypt is returned for every decryption failure. Malformed envelopes,
	// tampered ciphertext and wrong keys are deliberately indistinguishable so
	// callers cannot be used as a padding/format oracle.
	ErrDecrypt = errors.New("vault: decryption failed")
)

// envelope is the wire format of an encrypted value. All three fields are
// base64 (std encoding) of raw bytes.
type envelope struct {
	IV   string `json:"iv"`
	Data string `json:"data"`
	Tag  string `json:"tag"`
}

// Codec seals and opens credential values. It is safe for concurrent use;
// the key is fixed at construction and never mutated.
type Codec struct {
	aead cipher.AEAD
}

// New builds a Codec from a 64-hex-character master key.
func New(masterKeyHex string) (*Codec, error) {
	if masterKeyHex == "" {
		return nil, ErrKeyMissing
	}

	key, err := hex.DecodeString(masterKeyHex)
	if err != nil || len(key) != keyBytes {
		return nil, ErrKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, nonceBytes)
	if err != nil {
		return nil, fmt.Errorf("vault: init gcm: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns the envelope
// as a single base64 string. Empty strings and arbitrary unicode are valid
// plaintexts.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	// Seal appends the tag to the ciphertext; split it out so the envelope
	// carries {iv, data, tag} explicitly.
	data, tag := sealed[:len(sealed)-tagBytes], sealed[len(sealed)-tagBytes:]

	env := envelope{
		IV:   base64.StdEncoding.EncodeToString(nonce),
		Data: base64.StdEncoding.EncodeToString(data),
		Tag:  base64.StdEncoding.EncodeToString(tag),
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("vault: marshal envelope: %w", err)
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decrypt opens an envelope produced by Encrypt. Every failure path returns
// ErrDecrypt; partial or corrupted plaintext is never returned. Base64 fields
// are decoded strictly so non-canonical encodings are rejected rather than
// silently normalized.
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	enc := base64.StdEncoding.Strict()

	raw, err := enc.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecrypt
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", ErrDecrypt
	}

	nonce, err := enc.DecodeString(env.IV)
	if err != nil || len(nonce) != nonceBytes {
		return "", ErrDecrypt
	}
	data, err := enc.DecodeString(env.Data)
	if err != nil {
		return "", ErrDecrypt
	}
	tag, err := enc.DecodeString(env.Tag)
	if err != nil || len(tag) != tagBytes {
		return "", ErrDecrypt
	}

	plaintext, err := c.aead.Open(nil, nonce, append(data, tag...), nil)
	if err != nil {
		return "", ErrDecrypt
	}

	return string(plaintext), nil
}

// GenerateKey produces a cryptographically random 256-bit key encoded as
// 64 hex characters. Used to provision the master key, not at runtime.
func GenerateKey() (string, error) {
	key := make([]byte, keyBytes)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("vault: generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}
