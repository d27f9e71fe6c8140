package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"shopdirect.dev/internal/ids"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store in memory. Used by tests and by dev
// deployments that run without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*User
	byEmail map[string]string
	refresh map[string]*RefreshToken
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
		refresh: make(map[string]*RefreshToken),
	}
}

func (m *MemoryStore) Users(context.Context) UserStore                 { return (*memoryUsers)(m) }
func (m *MemoryStore) RefreshTokens(context.Context) RefreshTokenStore { return (*memoryRefresh)(m) }

type memoryUsers MemoryStore

func (s *memoryUsers) Create(_ context.Context, u *User) error {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.TrimSpace(strings.ToLower(u.Email))
	if _, ok := m.byEmail[email]; ok {
		return ErrAlreadyExists
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := time.Now().UTC()
	u.Email = email
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	m.users[u.ID] = &cp
	m.byEmail[email] = u.ID
	return nil
}

func (s *memoryUsers) Find(_ context.Context, id string) (*User, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memoryUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[strings.TrimSpace(strings.ToLower(email))]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (s *memoryUsers) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

type memoryRefresh MemoryStore

func (s *memoryRefresh) Create(_ context.Context, tok *RefreshToken) error {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.refresh[tok.ID]; ok {
		return ErrAlreadyExists
	}
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = time.Now().UTC()
	}
	cp := *tok
	m.refresh[tok.ID] = &cp
	return nil
}

func (s *memoryRefresh) Find(_ context.Context, id string) (*RefreshToken, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	tok, ok := m.refresh[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (s *memoryRefresh) MarkRevoked(_ context.Context, id string) error {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.refresh[id]
	if !ok {
		return ErrNotFound
	}
	tok.Revoked = true
	return nil
}

func (s *memoryRefresh) MarkRevokedByUser(_ context.Context, userID string) error {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tok := range m.refresh {
		if tok.UserID == userID {
			tok.Revoked = true
		}
	}
	return nil
}

func (s *memoryRefresh) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for id, tok := range m.refresh {
		if tok.ExpiresAt.Before(before) {
			delete(m.refresh, id)
			purged++
		}
	}
	return purged, nil
}
