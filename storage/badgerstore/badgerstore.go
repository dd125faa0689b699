// Package badgerstore implements a model.Persister on an embedded badger
// database. Records are encoded with msgpack.
package badgerstore

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/kvapi-dev/kvapi/storage/model"
)

const (
	usersPrefix   = "users:"
	entriesPrefix = "entries:"
	// scopeSeparator cannot occur in a scope
	scopeSeparator = "\x00"
)

// BadgerStorage is a model.Persister backed by badger
type BadgerStorage struct {
	db       *badger.DB
	stopGC   context.CancelFunc
	gcPeriod time.Duration
}

// Open opens (or creates) the badger database at path
func Open(path string) (*BadgerStorage, error) {
	return open(badger.DefaultOptions(path).WithLogger(nil))
}

// OpenInMemory opens a badger database that lives in memory only
func OpenInMemory() (*BadgerStorage, error) {
	return open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(opts badger.Options) (*BadgerStorage, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "could not open badger database")
	}
	ctx, cancel := context.WithCancel(context.Background())
	store := &BadgerStorage{
		db:       db,
		stopGC:   cancel,
		gcPeriod: 5 * time.Minute,
	}
	if !opts.InMemory {
		go store.runGC(ctx)
	}
	return store, nil
}

func (store *BadgerStorage) runGC(ctx context.Context) {
	ticker := time.NewTicker(store.gcPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for store.db.RunValueLogGC(0.7) == nil {
			}
		}
	}
}

func userKey(id string) []byte {
	return []byte(usersPrefix + id)
}

func scopePrefix(scope string) []byte {
	return []byte(entriesPrefix + scope + scopeSeparator)
}

func entryKey(scope, key string) []byte {
	return append(scopePrefix(scope), key...)
}

// write encodes value and stores it at key
func (store *BadgerStorage) write(key []byte, value any) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return errors.WithStack(err)
	}
	return store.db.Update(
		func(txn *badger.Txn) error {
			return txn.Set(key, data)
		},
	)
}

func (store *BadgerStorage) delete(key []byte) error {
	return store.db.Update(
		func(txn *badger.Txn) error {
			return txn.Delete(key)
		},
	)
}

// readIterator calls do for all key-value-pairs under prefix
func (store *BadgerStorage) readIterator(prefix []byte, do func(k, v []byte) error) error {
	return store.db.View(
		func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				k := item.KeyCopy(nil)
				err := item.Value(
					func(v []byte) error {
						return do(k, v)
					},
				)
				if err != nil {
					return err
				}
			}
			return nil
		},
	)
}

// Load implements the model.Persister interface
func (store *BadgerStorage) Load() (*model.Snapshot, error) {
	var snapshot model.Snapshot
	err := store.readIterator(
		[]byte(usersPrefix), func(_, v []byte) error {
			var u model.User
			if err := msgpack.Unmarshal(v, &u); err != nil {
				return err
			}
			snapshot.Users = append(snapshot.Users, u)
			return nil
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "could not load users")
	}
	err = store.readIterator(
		[]byte(entriesPrefix), func(_, v []byte) error {
			var e model.Entry
			if err := msgpack.Unmarshal(v, &e); err != nil {
				return err
			}
			snapshot.Entries = append(snapshot.Entries, e)
			return nil
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "could not load entries")
	}
	log.WithFields(
		log.Fields{
			"users":   len(snapshot.Users),
			"entries": len(snapshot.Entries),
		},
	).Debug("loaded badger snapshot")
	return &snapshot, nil
}

// SaveUser implements the model.Persister interface
func (store *BadgerStorage) SaveUser(u model.User) error {
	return store.write(userKey(u.ID), u)
}

// DeleteUser implements the model.Persister interface
func (store *BadgerStorage) DeleteUser(id string) error {
	return store.delete(userKey(id))
}

// SetEntry implements the model.Persister interface
func (store *BadgerStorage) SetEntry(scope, key string, value []byte) error {
	return store.write(
		entryKey(scope, key), model.Entry{
			UpdatedAt: time.Now().Unix(),
			Scope:     scope,
			Key:       key,
			Value:     value,
		},
	)
}

// DeleteEntry implements the model.Persister interface
func (store *BadgerStorage) DeleteEntry(scope, key string) error {
	return store.delete(entryKey(scope, key))
}

// DeleteScope implements the model.Persister interface
func (store *BadgerStorage) DeleteScope(scope string) error {
	return store.db.DropPrefix(scopePrefix(scope))
}

// Reset implements the model.Persister interface
func (store *BadgerStorage) Reset() error {
	return store.db.DropAll()
}

// Close implements the model.Persister interface
func (store *BadgerStorage) Close() error {
	store.stopGC()
	return store.db.Close()
}
