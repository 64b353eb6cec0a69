package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// MinKeyLength is the minimum accepted key material length in bytes.
const MinKeyLength = 32

const (
	versionPrefix = "v1."
	hkdfInfo      = "authcore/fieldcrypt/v1"
)

var (
	// ErrKeyTooShort is returned by New when the key material is under MinKeyLength bytes.
	ErrKeyTooShort = errors.New("fieldcrypt: encryption key must be at least 32 bytes")
	// ErrDecryption is returned for malformed ciphertexts, tampered data or a key mismatch.
	ErrDecryption = errors.New("fieldcrypt: decryption failed")
)

// Cipher is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// New derives an AES-256 key from keyMaterial and returns a ready Cipher.
func New(keyMaterial []byte) (*Cipher, error) {
	if len(keyMaterial) < MinKeyLength {
		return nil, ErrKeyTooShort
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, keyMaterial, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("fieldcrypt: derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext. The empty string maps to the empty string.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonceSize := c.aead.NonceSize()
	buf := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("fieldcrypt: nonce: %w", err)
	}

	sealed := c.aead.Seal(buf, buf[:nonceSize], []byte(plaintext), nil)
	return versionPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. The empty string maps to the
// empty string; anything else that does not authenticate is ErrDecryption.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	encoded, ok := strings.CutPrefix(ciphertext, versionPrefix)
	if !ok {
		return "", ErrDecryption
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecryption
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", ErrDecryption
	}

	plain, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plain), nil
}

// IsEncrypted reports whether v carries the ciphertext prefix. It does not
// authenticate the value, so user input may carry the prefix too.
func IsEncrypted(v string) bool {
	return strings.HasPrefix(v, versionPrefix)
}
