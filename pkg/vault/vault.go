// Package vault seals and opens credential fields with AES-256-GCM.
//
// Every sealed value is stored as a detached triple of ciphertext, IV and
// auth tag so a tampered or rekeyed record fails loudly on open instead of
// decrypting to garbage.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// KeySize is the AES-256 key size in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce size in bytes.
	NonceSize = 12
	// TagSize is the GCM auth tag size in bytes.
	TagSize = 16
)

var (
	ErrInvalidKey     = errors.New("encryption key must be 64 hex characters (32 bytes)")
	ErrMalformedValue = errors.New("malformed encrypted value")
)

// EncryptedValue is one sealed credential field.
type EncryptedValue struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	AuthTag    string `json:"authTag"`
}

// IsWellFormed reports whether every component of the triple is present and
// hex-decodable with the expected sizes. Legacy plaintext values and corrupted
// rows fail this check and are skipped by callers rather than opened.
func (v EncryptedValue) IsWellFormed() bool {
	iv, err := hex.DecodeString(v.IV)
	if err != nil || len(iv) != NonceSize {
		return false
	}
	tag, err := hex.DecodeString(v.AuthTag)
	if err != nil || len(tag) != TagSize {
		return false
	}
	if _, err := hex.DecodeString(v.Ciphertext); err != nil {
		return false
	}
	return true
}

// Sealer encrypts and decrypts credential fields under a process-wide key.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a Sealer from a 64-hex-character key. There is no fallback
// key derivation: a missing or malformed key is a startup failure.
func NewSealer(hexKey string) (*Sealer, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext with a fresh random IV.
func (s *Sealer) Seal(plaintext string) (EncryptedValue, error) {
	iv := make([]byte, NonceSize)
	if _, err := rand.Read(iv); err != nil {
		return EncryptedValue{}, fmt.Errorf("generate iv: %w", err)
	}

	sealed := s.aead.Seal(nil, iv, []byte(plaintext), nil)
	// GCM appends the tag to the ciphertext; store it detached.
	ciphertext, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	return EncryptedValue{
		Ciphertext: hex.EncodeToString(ciphertext),
		IV:         hex.EncodeToString(iv),
		AuthTag:    hex.EncodeToString(tag),
	}, nil
}

// Open decrypts a sealed value. It fails if the value is malformed, the auth
// tag does not verify, or the value was sealed under a different key.
func (s *Sealer) Open(v EncryptedValue) (string, error) {
	if !v.IsWellFormed() {
		return "", ErrMalformedValue
	}

	ciphertext, _ := hex.DecodeString(v.Ciphertext)
	iv, _ := hex.DecodeString(v.IV)
	tag, _ := hex.DecodeString(v.AuthTag)

	plaintext, err := s.aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return string(plaintext), nil
}

// SealMap seals a JSON-encoded map, used for connection token bundles.
func (s *Sealer) SealMap(m map[string]any) (EncryptedValue, error) {
	bytes, err := json.Marshal(m)
	if err != nil {
		return EncryptedValue{}, err
	}
	return s.Seal(string(bytes))
}

// OpenMap opens a sealed JSON map.
func (s *Sealer) OpenMap(v EncryptedValue) (map[string]any, error) {
	plaintext, err := s.Open(v)
	if err != nil {
		return nil, err
	}
	m := make(map[string]any)
	if err := json.Unmarshal([]byte(plaintext), &m); err != nil {
		return nil, err
	}
	return m, nil
}
