// Package entries implements the public and the private key-value
// namespaces.
package entries

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kvapi-dev/kvapi/storage/model"
)

// Store holds the public namespace and one private namespace per user.
// Mutations are written through to the Persister before they become visible.
type Store struct {
	persister model.Persister
	limits    model.Limits

	mu         sync.RWMutex
	namespaces map[string]*namespace
}

type namespace struct {
	mu      sync.RWMutex
	entries map[string][]byte
	size    int64
	dropped bool
}

func newNamespace() *namespace {
	return &namespace{entries: make(map[string][]byte)}
}

func entrySize(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}

// NewStore creates a new Store; persister may be nil for a memory-only store
func NewStore(persister model.Persister, limits model.Limits) *Store {
	return &Store{
		persister:  persister,
		limits:     limits,
		namespaces: make(map[string]*namespace),
	}
}

// Load fills the Store from persisted entries
func (s *Store) Load(entries []model.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		ns, ok := s.namespaces[e.Scope]
		if !ok {
			ns = newNamespace()
			s.namespaces[e.Scope] = ns
		}
		if old, ok := ns.entries[e.Key]; ok {
			ns.size -= entrySize(e.Key, old)
		}
		ns.entries[e.Key] = append([]byte(nil), e.Value...)
		ns.size += entrySize(e.Key, e.Value)
	}
	log.WithField("entries", len(entries)).Debug("loaded entries")
}

func (s *Store) lookup(scope string) *namespace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.namespaces[scope]
}

func (s *Store) lookupOrCreate(scope string) *namespace {
	if ns := s.lookup(scope); ns != nil {
		return ns
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[scope]
	if !ok {
		ns = newNamespace()
		s.namespaces[scope] = ns
	}
	return ns
}

// lockForWrite returns the write locked namespace of scope. A namespace that
// was dropped while waiting for the lock is replaced by a fresh one.
func (s *Store) lockForWrite(scope string) *namespace {
	for {
		ns := s.lookupOrCreate(scope)
		ns.mu.Lock()
		if !ns.dropped {
			return ns
		}
		ns.mu.Unlock()
	}
}

// GetAll returns a copy of all entries of a scope
func (s *Store) GetAll(scope string) model.KeyValueMap {
	res := model.KeyValueMap{}
	ns := s.lookup(scope)
	if ns == nil {
		return res
	}
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	for k, v := range ns.entries {
		res[k] = append([]byte{}, v...)
	}
	return res
}

// Get returns the value of a key
func (s *Store) Get(scope, key string) ([]byte, error) {
	ns := s.lookup(scope)
	if ns != nil {
		ns.mu.RLock()
		defer ns.mu.RUnlock()
		if v, ok := ns.entries[key]; ok {
			return append([]byte{}, v...), nil
		}
	}
	return nil, model.NotFoundErrorFmt("entry not found: %s", key)
}

// Set upserts the value of a key. In private scopes the entry count and size
// quotas are checked before anything is changed.
func (s *Store) Set(scope, key string, value []byte) error {
	ns := s.lockForWrite(scope)
	defer ns.mu.Unlock()

	old, exists := ns.entries[key]
	newSize := ns.size + entrySize(key, value)
	count := len(ns.entries)
	if exists {
		newSize -= entrySize(key, old)
	} else {
		count++
	}
	if model.IsPrivateScope(scope) {
		if count > s.limits.PrivateDBMaxNumEntries {
			return model.QuotaExceededErrorFmt(
				"private entries must not exceed %d entries", s.limits.PrivateDBMaxNumEntries,
			)
		}
		if newSize > s.limits.PrivateDBMaxSize {
			return model.QuotaExceededErrorFmt(
				"private entries must not exceed %d bytes", s.limits.PrivateDBMaxSize,
			)
		}
	}
	if s.persister != nil {
		if err := s.persister.SetEntry(scope, key, value); err != nil {
			return errors.Wrap(err, "could not persist entry")
		}
	}
	ns.entries[key] = append([]byte{}, value...)
	ns.size = newSize
	return nil
}

// Delete removes a key; deleting a missing key is not an error
func (s *Store) Delete(scope, key string) error {
	ns := s.lookup(scope)
	if ns == nil {
		return nil
	}
	ns.mu.Lock()
	defer ns.mu.Unlock()
	old, ok := ns.entries[key]
	if !ok {
		return nil
	}
	if s.persister != nil {
		if err := s.persister.DeleteEntry(scope, key); err != nil {
			return errors.Wrap(err, "could not delete persisted entry")
		}
	}
	delete(ns.entries, key)
	ns.size -= entrySize(key, old)
	return nil
}

// DropScope removes a whole namespace
func (s *Store) DropScope(scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persister != nil {
		if err := s.persister.DeleteScope(scope); err != nil {
			return errors.Wrap(err, "could not delete persisted scope")
		}
	}
	if ns, ok := s.namespaces[scope]; ok {
		ns.mu.Lock()
		ns.dropped = true
		ns.mu.Unlock()
		delete(s.namespaces, scope)
	}
	return nil
}

// Usage returns the number of entries and their accounted size in a scope
func (s *Store) Usage(scope string) (int, int64) {
	ns := s.lookup(scope)
	if ns == nil {
		return 0, 0
	}
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return len(ns.entries), ns.size
}

// Reset drops every namespace from memory. Persisted data is not touched.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespaces = make(map[string]*namespace)
}
