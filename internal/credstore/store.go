package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bikebill/authcore"
)

// Store implements authcore.CredentialStore on top of a *gorm.DB.
type Store struct {
	db    *gorm.DB
	codec *authcore.RecordCodec
}

var _ authcore.CredentialStore = (*Store)(nil)

// New wraps db. codec encrypts PII on write and decrypts it on read; build it
// from the same key as Config.Encryption.Key.
func New(db *gorm.DB, codec *authcore.RecordCodec) (*Store, error) {
	if db == nil {
		return nil, errors.New("credstore: nil db")
	}
	if codec == nil {
		return nil, errors.New("credstore: nil record codec")
	}
	return &Store{db: db, codec: codec}, nil
}

// OpenPostgres opens a PostgreSQL connection for use with New.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("credstore: open postgres: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the credentials table.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&credentialRow{})
}

/*
====================================
LOOKUPS
====================================
*/

// Create inserts rec with its PII encrypted.
func (s *Store) Create(ctx context.Context, rec *authcore.CredentialRecord) error {
	if rec == nil || rec.ID == "" || rec.Identity == "" {
		return errors.New("credstore: record requires id and identity")
	}
	sealed, err := s.codec.Encode(*rec)
	if err != nil {
		return err
	}
	row := rowFromRecord(sealed)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&credentialRow{}).Where("identity = ?", row.Identity).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return authcore.ErrDuplicateIdentity
		}
		return tx.Create(&row).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return authcore.ErrDuplicateIdentity
	}
	return err
}

// FindByIdentity looks up a record by normalized identity.
func (s *Store) FindByIdentity(ctx context.Context, identity string) (*authcore.CredentialRecord, error) {
	return s.first(s.db.WithContext(ctx).Where("identity = ? AND deleted_at IS NULL", identity))
}

// FindByID returns tombstoned records too; callers check Deleted.
func (s *Store) FindByID(ctx context.Context, id string) (*authcore.CredentialRecord, error) {
	return s.first(s.db.WithContext(ctx).Where("id = ?", id))
}

func (s *Store) first(q *gorm.DB) (*authcore.CredentialRecord, error) {
	var row credentialRow
	if err := q.First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	rec := s.codec.Decode(row.record())
	return &rec, nil
}

/*
====================================
REFRESH TOKEN
====================================
*/

// RotateRefreshToken swaps oldHash for newHash. Only one caller wins.
func (s *Store) RotateRefreshToken(ctx context.Context, oldHash, newHash string) (*authcore.CredentialRecord, error) {
	if oldHash == "" || newHash == "" {
		return nil, authcore.ErrRecordNotFound
	}
	var row credentialRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&credentialRow{}).
			Where("refresh_token_hash = ? AND deleted_at IS NULL", oldHash).
			Update("refresh_token_hash", newHash)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return authcore.ErrRecordNotFound
		}
		return tx.Where("refresh_token_hash = ?", newHash).First(&row).Error
	})
	if err != nil {
		return nil, notFound(err)
	}
	rec := s.codec.Decode(row.record())
	return &rec, nil
}

// SetRefreshToken stores hash for id.
func (s *Store) SetRefreshToken(ctx context.Context, id, hash string) error {
	return s.updateLive(ctx, id, map[string]any{"refresh_token_hash": nullable(hash)})
}

// ClearRefreshToken removes hash wherever it is stored.
func (s *Store) ClearRefreshToken(ctx context.Context, hash string) error {
	if hash == "" {
		return authcore.ErrRecordNotFound
	}
	res := s.db.WithContext(ctx).Model(&credentialRow{}).
		Where("refresh_token_hash = ?", hash).
		Update("refresh_token_hash", nil)
	return affected(res)
}

/*
====================================
ACCOUNT STATE
====================================
*/

// RecordLoginSuccess stamps the login time and resets the failure count.
func (s *Store) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	return s.updateLive(ctx, id, map[string]any{
		"last_login_at": at,
		"failed_logins": 0,
	})
}

// RecordLoginFailure increments the failure count and returns it.
func (s *Store) RecordLoginFailure(ctx context.Context, id string) (int, error) {
	var count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&credentialRow{}).
			Where("id = ? AND deleted_at IS NULL", id).
			Update("failed_logins", gorm.Expr("failed_logins + 1"))
		if err := affected(res); err != nil {
			return err
		}
		var row credentialRow
		if err := tx.Select("failed_logins").Where("id = ?", id).First(&row).Error; err != nil {
			return err
		}
		count = row.FailedLogins
		return nil
	})
	if err != nil {
		return 0, notFound(err)
	}
	return count, nil
}

// SetLocked sets or clears the lock flag.
func (s *Store) SetLocked(ctx context.Context, id string, locked bool) error {
	fields := map[string]any{"locked": locked}
	if !locked {
		fields["failed_logins"] = 0
	}
	return s.updateLive(ctx, id, fields)
}

// UpdatePasswordHash replaces the stored hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.updateLive(ctx, id, map[string]any{"password_hash": hash})
}

// MarkEmailVerified flags the email as confirmed.
func (s *Store) MarkEmailVerified(ctx context.Context, id string) error {
	return s.updateLive(ctx, id, map[string]any{"email_verified": true})
}

// Tombstone keeps the row so the ID is never reused, but strips everything
// that identifies the person. The identity is rewritten so it can be
// registered again.
func (s *Store) Tombstone(ctx context.Context, id string, at time.Time) error {
	return s.updateLive(ctx, id, map[string]any{
		"identity":           "deleted:" + id,
		"email":              "",
		"full_name":          "",
		"password_hash":      "",
		"refresh_token_hash": nil,
		"deleted_at":         at,
	})
}

func (s *Store) updateLive(ctx context.Context, id string, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&credentialRow{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(fields)
	return affected(res)
}

func affected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return authcore.ErrRecordNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return authcore.ErrRecordNotFound
	}
	return err
}
