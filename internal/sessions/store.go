package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/kvapi-dev/kvapi/storage/model"
)

// Store keeps session records
type Store interface {
	// Save stores a session that expires after ttl without activity
	Save(ctx context.Context, s model.Session, ttl time.Duration) error
	// Get returns a session or nil if it does not exist
	Get(ctx context.Context, id string) (*model.Session, error)
	// Touch records activity at the passed time; it reports false if the
	// session does not exist
	Touch(ctx context.Context, id string, at time.Time, ttl time.Duration) (bool, error)
	// Delete removes a session; it reports false if the session did not exist
	Delete(ctx context.Context, id string) (bool, error)
	// DeleteForUser removes all sessions of a user
	DeleteForUser(ctx context.Context, userID string) (int, error)
	// Sweep removes sessions that expired at now
	Sweep(ctx context.Context, now time.Time, ttl time.Duration) (int, error)
	// Reset removes all sessions
	Reset(ctx context.Context) error
}

// MemoryStore is an in-memory Store
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]model.Session)}
}

// Save implements the Store interface
func (m *MemoryStore) Save(_ context.Context, s model.Session, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

// Get implements the Store interface
func (m *MemoryStore) Get(_ context.Context, id string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Touch implements the Store interface
func (m *MemoryStore) Touch(_ context.Context, id string, at time.Time, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false, nil
	}
	if at.After(s.LastActivityAt) {
		s.LastActivityAt = at
		m.sessions[id] = s
	}
	return true, nil
}

// Delete implements the Store interface
func (m *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok, nil
}

// DeleteForUser implements the Store interface
func (m *MemoryStore) DeleteForUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Sweep implements the Store interface
func (m *MemoryStore) Sweep(_ context.Context, now time.Time, ttl time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for id, s := range m.sessions {
		if s.Expired(now, ttl) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Reset implements the Store interface
func (m *MemoryStore) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]model.Session)
	return nil
}
