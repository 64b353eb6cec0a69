package authcore

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bikebill/authcore/fieldcrypt"
)

// RecordCodec encrypts and decrypts the PII fields of a CredentialRecord.
// Store adapters call Encode before every write and Decode after every read.
type RecordCodec struct {
	cipher *fieldcrypt.Cipher
	logger *slog.Logger
}

// NewRecordCodec returns a codec sealing PII with cipher. A nil logger uses
// slog.Default.
func NewRecordCodec(cipher *fieldcrypt.Cipher, logger *slog.Logger) *RecordCodec {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordCodec{cipher: cipher, logger: logger}
}

// Encode returns a copy of rec with Email and FullName encrypted. Every
// non-empty value is encrypted, whatever it looks like.
func (c *RecordCodec) Encode(rec CredentialRecord) (CredentialRecord, error) {
	var err error
	if rec.Email, err = c.encryptField(rec.Email); err != nil {
		return CredentialRecord{}, fmt.Errorf("encode email: %w", err)
	}
	if rec.FullName, err = c.encryptField(rec.FullName); err != nil {
		return CredentialRecord{}, fmt.Errorf("encode full name: %w", err)
	}
	return rec, nil
}

// Decode returns a copy of stored with PII decrypted. A field that fails to
// decrypt is logged and passed through unchanged.
func (c *RecordCodec) Decode(stored CredentialRecord) CredentialRecord {
	stored.Email = c.decryptField(stored.ID, "email", stored.Email)
	stored.FullName = c.decryptField(stored.ID, "full_name", stored.FullName)
	return stored
}

// EncryptValue encrypts a single value with the codec's cipher.
func (c *RecordCodec) EncryptValue(v string) (string, error) {
	return c.encryptField(v)
}

// DecryptValue is the single-value form of Decode.
func (c *RecordCodec) DecryptValue(v string) string {
	return c.decryptField("", "value", v)
}

func (c *RecordCodec) encryptField(v string) (string, error) {
	if v == "" {
		return v, nil
	}
	return c.cipher.Encrypt(v)
}

func (c *RecordCodec) decryptField(id, field, v string) string {
	if v == "" {
		return v
	}
	plain, err := c.cipher.Decrypt(v)
	if err != nil {
		if errors.Is(err, fieldcrypt.ErrDecryption) {
			c.logger.Warn("field decryption failed, passing stored value through",
				slog.String("record_id", id),
				slog.String("field", field),
			)
		}
		return v
	}
	return plain
}
