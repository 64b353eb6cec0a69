package authcore

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/bikebill/authcore/fieldcrypt"
)

func newTestCodec(t *testing.T, key byte) *RecordCodec {
	t.Helper()
	c, err := fieldcrypt.New(bytes.Repeat([]byte{key}, fieldcrypt.MinKeyLength))
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	return NewRecordCodec(c, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRecordCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t, 1)
	rec := CredentialRecord{
		ID:       "u1",
		Identity: "alice",
		Email:    "alice@example.com",
		FullName: "Alice Rider",
	}

	stored, err := codec.Encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if stored.Email == rec.Email || stored.FullName == rec.FullName {
		t.Fatal("expected PII to be encrypted")
	}
	if stored.Identity != rec.Identity {
		t.Fatal("identity must stay searchable")
	}
	if !fieldcrypt.IsEncrypted(stored.Email) {
		t.Fatalf("expected versioned ciphertext, got %q", stored.Email)
	}

	decoded := codec.Decode(stored)
	if decoded.Email != rec.Email || decoded.FullName != rec.FullName {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestRecordCodecPassesThroughUndecryptable(t *testing.T) {
	writer := newTestCodec(t, 1)
	reader := newTestCodec(t, 2)

	stored, err := writer.Encode(CredentialRecord{Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded := reader.Decode(stored)
	if decoded.Email != stored.Email {
		t.Fatal("expected foreign ciphertext to pass through")
	}

	plain := reader.Decode(CredentialRecord{Email: "legacy@example.com"})
	if plain.Email != "legacy@example.com" {
		t.Fatal("expected legacy plaintext to pass through")
	}
}

func TestRecordCodecEncryptsPrefixedInput(t *testing.T) {
	codec := newTestCodec(t, 1)
	rec := CredentialRecord{
		ID:       "u1",
		Email:    "v1.alice@example.com",
		FullName: "v1.Alice Rider",
	}

	stored, err := codec.Encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if stored.Email == rec.Email || stored.FullName == rec.FullName {
		t.Fatalf("prefixed input stored in plaintext: %+v", stored)
	}

	decoded := codec.Decode(stored)
	if decoded.Email != rec.Email || decoded.FullName != rec.FullName {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}

	sealed, err := codec.EncryptValue("v1.bob@example.com")
	if err != nil {
		t.Fatalf("encrypt value: %v", err)
	}
	if sealed == "v1.bob@example.com" || codec.DecryptValue(sealed) != "v1.bob@example.com" {
		t.Fatalf("single value not sealed: %q", sealed)
	}
}
