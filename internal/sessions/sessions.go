// Package sessions implements session creation, sliding expiry and teardown.
package sessions

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kvapi-dev/kvapi/storage/model"
)

const sessionIDBytes = 32

// Manager manages the lifecycle of sessions
type Manager struct {
	store         Store
	maxInactivity time.Duration
	now           func() time.Time
}

// NewManager creates a new Manager; sessions expire after maxInactivity
// without activity
func NewManager(store Store, maxInactivity time.Duration) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{
		store:         store,
		maxInactivity: maxInactivity,
		now:           time.Now,
	}
}

func newSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.WithStack(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create starts a new session for a user
func (m *Manager) Create(ctx context.Context, userID string) (*model.Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	now := m.now()
	s := model.Session{
		ID:             id,
		UserID:         userID,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err = m.store.Save(ctx, s, m.maxInactivity); err != nil {
		return nil, err
	}
	log.WithField("user", userID).Debug("created session")
	return &s, nil
}

// Authenticate returns the active session with the passed id and renews it.
// Missing and expired sessions are reported as UnauthorizedError.
func (m *Manager) Authenticate(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, model.UnauthorizedError("no session")
	}
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if s == nil {
		return nil, model.UnauthorizedError("invalid session")
	}
	if s.Expired(now, m.maxInactivity) {
		if _, err = m.store.Delete(ctx, id); err != nil {
			log.WithError(err).Warn("could not delete expired session")
		}
		return nil, model.UnauthorizedError("session expired")
	}
	ok, err := m.store.Touch(ctx, id, now, m.maxInactivity)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.UnauthorizedError("invalid session")
	}
	if now.After(s.LastActivityAt) {
		s.LastActivityAt = now
	}
	return s, nil
}

// Update renews a session
func (m *Manager) Update(ctx context.Context, id string) error {
	_, err := m.Authenticate(ctx, id)
	return err
}

// Delete ends a session
func (m *Manager) Delete(ctx context.Context, id string) error {
	if _, err := m.Authenticate(ctx, id); err != nil {
		return err
	}
	ok, err := m.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return model.UnauthorizedError("invalid session")
	}
	return nil
}

// DeleteForUser ends all sessions of a user
func (m *Manager) DeleteForUser(ctx context.Context, userID string) error {
	n, err := m.store.DeleteForUser(ctx, userID)
	if err != nil {
		return err
	}
	log.WithFields(
		log.Fields{
			"user":     userID,
			"sessions": n,
		},
	).Debug("deleted user sessions")
	return nil
}

// Sweep removes expired sessions from the store
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	return m.store.Sweep(ctx, m.now(), m.maxInactivity)
}

// RunSweeper calls Sweep every interval until ctx is done
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil {
				log.WithError(err).Error("could not sweep sessions")
				continue
			}
			if n > 0 {
				log.WithField("sessions", n).Debug("swept expired sessions")
			}
		}
	}
}

// Reset removes all sessions
func (m *Manager) Reset(ctx context.Context) error {
	return m.store.Reset(ctx)
}

// MaxInactivity returns the inactivity period after which sessions expire
func (m *Manager) MaxInactivity() time.Duration {
	return m.maxInactivity
}
