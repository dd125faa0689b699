package kvapi

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kvapi-dev/kvapi/internal/batch"
	"github.com/kvapi-dev/kvapi/internal/entries"
	"github.com/kvapi-dev/kvapi/internal/router"
	"github.com/kvapi-dev/kvapi/internal/sessions"
	"github.com/kvapi-dev/kvapi/internal/users"
	"github.com/kvapi-dev/kvapi/storage"
	"github.com/kvapi-dev/kvapi/storage/model"
)

// StateConfig configures a State
type StateConfig struct {
	// Backends holds the persister and the password hasher. A nil persister
	// keeps all data in memory only; a nil hasher selects argon2id with
	// default parameters.
	Backends model.Backends
	// SessionStore holds the sessions; defaults to a memory store
	SessionStore sessions.Store
	// Limits are enforced by the state; unset limits use their defaults
	Limits       model.Limits
	// BatchMaxSize is the maximum number of operations per batch
	BatchMaxSize int
}

// State is the complete server state: users, sessions, and entries
type State struct {
	Users    *users.Directory
	Sessions *sessions.Manager
	Entries  *entries.Store
	Router   *router.Router
	Batch    *batch.Executor

	persister   model.Persister
	limits      model.Limits
	sweepCancel context.CancelFunc
	sweepDone   sync.WaitGroup
}

// NewState creates a new State and loads the persisted data
func NewState(conf StateConfig) (*State, error) {
	conf.Limits = conf.Limits.WithDefaults()
	hasher := conf.Backends.Hasher
	if hasher == nil {
		hasher = storage.NewArgon2idHasher(storage.Argon2idParams{})
	}
	store := conf.SessionStore
	if store == nil {
		store = sessions.NewMemoryStore()
	}
	s := &State{
		Users:     users.NewDirectory(conf.Backends.Persister, hasher, conf.Limits.ValueMaxSize),
		Sessions:  sessions.NewManager(store, conf.Limits.SessionMaxInactivity),
		Entries:   entries.NewStore(conf.Backends.Persister, conf.Limits),
		persister: conf.Backends.Persister,
		limits:    conf.Limits,
	}
	s.Router = router.New(s.Users, s.Sessions, s.Entries, s.limits)
	s.Batch = batch.NewExecutor(s.Router, conf.BatchMaxSize)
	if s.persister == nil {
		log.Warn("no persister configured, data is kept in memory only")
		return s, nil
	}
	snapshot, err := s.persister.Load()
	if err != nil {
		return nil, errors.WithMessage(err, "could not load persisted data")
	}
	s.Users.Load(snapshot.Users)
	s.Entries.Load(snapshot.Entries)
	log.WithFields(
		log.Fields{
			"users":   len(snapshot.Users),
			"entries": len(snapshot.Entries),
		},
	).Info("loaded persisted data")
	return s, nil
}

// Limits returns the limits the state enforces
func (s *State) Limits() model.Limits {
	return s.limits
}

// StartSweeper starts removing expired sessions every interval until Close
// is called. A zero interval uses the session max inactivity.
func (s *State) StartSweeper(interval time.Duration) {
	if s.sweepCancel != nil {
		return
	}
	if interval <= 0 {
		interval = s.limits.SessionMaxInactivity
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.sweepCancel = cancel
	s.sweepDone.Add(1)
	go func() {
		defer s.sweepDone.Done()
		s.Sessions.RunSweeper(ctx, interval)
	}()
}

// Reset deletes all users, sessions, and entries
func (s *State) Reset(ctx context.Context) error {
	if s.persister != nil {
		if err := s.persister.Reset(); err != nil {
			return errors.WithMessage(err, "could not reset persisted data")
		}
	}
	s.Users.Reset()
	s.Entries.Reset()
	if err := s.Sessions.Reset(ctx); err != nil {
		return errors.WithMessage(err, "could not reset sessions")
	}
	log.Info("server data was reset")
	return nil
}

// Close stops the sweeper and closes the persister
func (s *State) Close() error {
	if s.sweepCancel != nil {
		s.sweepCancel()
		s.sweepDone.Wait()
		s.sweepCancel = nil
	}
	if s.persister != nil {
		return s.persister.Close()
	}
	return nil
}
