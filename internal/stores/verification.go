package stores

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bikebill/authcore/internal"
)

const (
	// DefaultVerificationTTL is used when VerificationConfig.TTL is zero.
	DefaultVerificationTTL = 30 * time.Minute
	// MinSaltLength is the minimum HMAC salt length in bytes.
	MinSaltLength = 16
)

// consumeVerificationLua returns the record and deletes it in one step.
var consumeVerificationLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return false
end
redis.call('DEL', KEYS[1])
return data
`)

// VerificationPayload is what a verification token resolves to.
type VerificationPayload struct {
	Identity string    `json:"identity"`
	Email    string    `json:"email"`
	IssuedAt time.Time `json:"issued_at"`
}

// VerificationConfig configures token hashing and lifetime.
type VerificationConfig struct {
	Salt   []byte
	TTL    time.Duration
	Prefix string
}

// VerificationStore keeps hashed single-use verification tokens in Redis.
type VerificationStore struct {
	redis  redis.UniversalClient
	salt   []byte
	ttl    time.Duration
	prefix string
	now    func() time.Time
	token  func() (string, error)
}

// NewVerificationStore validates cfg and returns a store.
func NewVerificationStore(client redis.UniversalClient, cfg VerificationConfig) (*VerificationStore, error) {
	if len(cfg.Salt) < MinSaltLength {
		return nil, errors.New("verification salt must be at least 16 bytes")
	}
	if cfg.TTL < 0 {
		return nil, errors.New("verification ttl must be >= 0")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultVerificationTTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "av"
	}

	salt := make([]byte, len(cfg.Salt))
	copy(salt, cfg.Salt)

	return &VerificationStore{
		redis:  client,
		salt:   salt,
		ttl:    cfg.TTL,
		prefix: cfg.Prefix,
		now:    time.Now,
		token:  internal.NewVerificationToken,
	}, nil
}

// TTL returns the lifetime given to new records.
func (s *VerificationStore) TTL() time.Duration {
	return s.ttl
}

func (s *VerificationStore) key(identity, token string) string {
	mac := hmac.New(sha256.New, s.salt)
	mac.Write([]byte(identity))
	mac.Write([]byte{':'})
	mac.Write([]byte(token))
	return s.prefix + ":" + hex.EncodeToString(mac.Sum(nil))
}

// Issue generates a 256-bit token for identity and stores {identity, email}
// under its derived key.
func (s *VerificationStore) Issue(ctx context.Context, identity, email string) (string, time.Duration, error) {
	if identity == "" {
		return "", 0, errors.New("identity is required")
	}
	token, err := s.token()
	if err != nil {
		return "", 0, err
	}
	if err := s.Save(ctx, token, VerificationPayload{Identity: identity, Email: email}); err != nil {
		return "", 0, err
	}
	return token, s.ttl, nil
}

// Save stores payload under the key derived from (payload.Identity, token).
func (s *VerificationStore) Save(ctx context.Context, token string, payload VerificationPayload) error {
	if payload.IssuedAt.IsZero() {
		payload.IssuedAt = s.now().UTC()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(payload.Identity, token), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Consume deletes the record for (identity, token) and returns it. A miss, an
// already consumed token or an identity mismatch all yield ErrVerificationNotFound.
func (s *VerificationStore) Consume(ctx context.Context, identity, token string) (*VerificationPayload, error) {
	if identity == "" || token == "" {
		return nil, ErrVerificationNotFound
	}

	data, err := consumeVerificationLua.Run(ctx, s.redis, []string{s.key(identity, token)}).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrVerificationNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var payload VerificationPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, ErrVerificationNotFound
	}
	if subtle.ConstantTimeCompare([]byte(payload.Identity), []byte(identity)) != 1 {
		return nil, ErrVerificationNotFound
	}
	return &payload, nil
}
