package fieldcrypt

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, MinKeyLength)
}

func TestNewRejectsShortKey(t *testing.T) {
	if _, err := New([]byte("too-short")); !errors.Is(err, ErrKeyTooShort) {
		t.Fatalf("expected ErrKeyTooShort, got %v", err)
	}
	if _, err := New(nil); !errors.Is(err, ErrKeyTooShort) {
		t.Fatalf("expected ErrKeyTooShort for nil key, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	c, err := New(testKey(7))
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}

	inputs := []string{
		"a",
		"rider@example.com",
		"Ünïcödé bike shop ✓",
		strings.Repeat("x", 4096),
	}
	for _, in := range inputs {
		enc, err := c.Encrypt(in)
		if err != nil {
			t.Fatalf("encrypt %q: %v", in, err)
		}
		if enc == in {
			t.Fatalf("ciphertext equals plaintext for %q", in)
		}
		if !IsEncrypted(enc) {
			t.Fatalf("expected version prefix on %q", enc)
		}
		dec, err := c.Decrypt(enc)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if dec != in {
			t.Fatalf("round trip mismatch: got %q want %q", dec, in)
		}
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	c, _ := New(testKey(1))
	a, _ := c.Encrypt("same")
	b, _ := c.Encrypt("same")
	if a == b {
		t.Fatal("expected distinct ciphertexts for equal plaintexts")
	}
}

func TestEmptyPassesThrough(t *testing.T) {
	c, _ := New(testKey(2))
	enc, err := c.Encrypt("")
	if err != nil || enc != "" {
		t.Fatalf("expected empty ciphertext, got %q, %v", enc, err)
	}
	dec, err := c.Decrypt("")
	if err != nil || dec != "" {
		t.Fatalf("expected empty plaintext, got %q, %v", dec, err)
	}
}

func TestDecryptFailures(t *testing.T) {
	c1, _ := New(testKey(3))
	c2, _ := New(testKey(4))

	enc, err := c1.Encrypt("secret@example.com")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	cases := map[string]string{
		"wrong key":  enc,
		"no prefix":  "plain-value",
		"bad base64": "v1.***",
		"truncated":  "v1.AAAA",
		"tampered":   flipChar(enc, len(enc)/2),
	}
	for name, in := range cases {
		dec := c1
		if name == "wrong key" {
			dec = c2
		}
		if _, err := dec.Decrypt(in); !errors.Is(err, ErrDecryption) {
			t.Fatalf("%s: expected ErrDecryption, got %v", name, err)
		}
	}
}

func flipChar(s string, i int) string {
	b := []byte(s)
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}
