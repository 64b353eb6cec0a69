package authcore

import (
	"context"
	"sync"
	"time"
)

// memoryStore is an in-process CredentialStore with the same conditional
// update semantics as the GORM adapter.
type memoryStore struct {
	mu   sync.Mutex
	byID map[string]*CredentialRecord

	// failWith, when set, is returned by every call.
	failWith error

	rotateCalls int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{byID: make(map[string]*CredentialRecord)}
}

func (m *memoryStore) get(id string) (*CredentialRecord, bool) {
	rec, ok := m.byID[id]
	if !ok || rec.Deleted() {
		return nil, false
	}
	return rec, true
}

func (m *memoryStore) Create(_ context.Context, rec *CredentialRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, r := range m.byID {
		if r.Identity == rec.Identity {
			return ErrDuplicateIdentity
		}
	}
	cp := *rec
	m.byID[rec.ID] = &cp
	return nil
}

func (m *memoryStore) FindByIdentity(_ context.Context, identity string) (*CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, r := range m.byID {
		if r.Identity == identity {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *memoryStore) FindByID(_ context.Context, id string) (*CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	r, ok := m.byID[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memoryStore) RotateRefreshToken(_ context.Context, oldHash, newHash string) (*CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotateCalls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	if oldHash == "" {
		return nil, ErrRecordNotFound
	}
	for _, r := range m.byID {
		if r.RefreshTokenHash == oldHash && !r.Deleted() {
			r.RefreshTokenHash = newHash
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *memoryStore) SetRefreshToken(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	r, ok := m.get(id)
	if !ok {
		return ErrRecordNotFound
	}
	r.RefreshTokenHash = hash
	return nil
}

func (m *memoryStore) ClearRefreshToken(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, r := range m.byID {
		if hash != "" && r.RefreshTokenHash == hash {
			r.RefreshTokenHash = ""
			return nil
		}
	}
	return ErrRecordNotFound
}

func (m *memoryStore) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.get(id)
	if !ok {
		return ErrRecordNotFound
	}
	r.LastLoginAt = &at
	r.FailedLogins = 0
	return nil
}

func (m *memoryStore) RecordLoginFailure(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.get(id)
	if !ok {
		return 0, ErrRecordNotFound
	}
	r.FailedLogins++
	return r.FailedLogins, nil
}

func (m *memoryStore) SetLocked(_ context.Context, id string, locked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.get(id)
	if !ok {
		return ErrRecordNotFound
	}
	r.Locked = locked
	if !locked {
		r.FailedLogins = 0
	}
	return nil
}

func (m *memoryStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.get(id)
	if !ok {
		return ErrRecordNotFound
	}
	r.PasswordHash = hash
	return nil
}

func (m *memoryStore) MarkEmailVerified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.get(id)
	if !ok {
		return ErrRecordNotFound
	}
	r.EmailVerified = true
	return nil
}

func (m *memoryStore) Tombstone(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.get(id)
	if !ok {
		return ErrRecordNotFound
	}
	r.Identity = "deleted:" + id
	r.Email = ""
	r.FullName = ""
	r.PasswordHash = ""
	r.RefreshTokenHash = ""
	r.DeletedAt = &at
	return nil
}

func (m *memoryStore) raw(id string) CredentialRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.byID[id]
}
