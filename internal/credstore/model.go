package credstore

import (
	"time"

	"github.com/bikebill/authcore"
)

type credentialRow struct {
	ID       string `gorm:"primaryKey;size:36"`
	Identity string `gorm:"uniqueIndex;size:320;not null"`
	Email    string
	FullName string

	PasswordHash     string
	RefreshTokenHash *string `gorm:"uniqueIndex;size:64"`

	EmailVerified bool `gorm:"not null;default:false"`
	LastLoginAt   *time.Time
	FailedLogins  int        `gorm:"not null;default:0"`
	Locked        bool       `gorm:"not null;default:false"`
	DeletedAt     *time.Time `gorm:"index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName pins the table name for gorm.
func (credentialRow) TableName() string { return "credentials" }

func rowFromRecord(rec authcore.CredentialRecord) credentialRow {
	row := credentialRow{
		ID:            rec.ID,
		Identity:      rec.Identity,
		Email:         rec.Email,
		FullName:      rec.FullName,
		PasswordHash:  rec.PasswordHash,
		EmailVerified: rec.EmailVerified,
		LastLoginAt:   rec.LastLoginAt,
		FailedLogins:  rec.FailedLogins,
		Locked:        rec.Locked,
		DeletedAt:     rec.DeletedAt,
		CreatedAt:     rec.CreatedAt,
	}
	if rec.RefreshTokenHash != "" {
		h := rec.RefreshTokenHash
		row.RefreshTokenHash = &h
	}
	return row
}

func (r credentialRow) record() authcore.CredentialRecord {
	rec := authcore.CredentialRecord{
		ID:            r.ID,
		Identity:      r.Identity,
		Email:         r.Email,
		FullName:      r.FullName,
		PasswordHash:  r.PasswordHash,
		EmailVerified: r.EmailVerified,
		LastLoginAt:   r.LastLoginAt,
		FailedLogins:  r.FailedLogins,
		Locked:        r.Locked,
		DeletedAt:     r.DeletedAt,
		CreatedAt:     r.CreatedAt,
	}
	if r.RefreshTokenHash != nil {
		rec.RefreshTokenHash = *r.RefreshTokenHash
	}
	return rec
}

// nullable maps the empty hash to SQL NULL so the unique index only covers
// live sessions.
func nullable(hash string) any {
	if hash == "" {
		return nil
	}
	return hash
}
