package model

// Snapshot is the complete durable state
type Snapshot struct {
	Users   []User
	Entries []Entry
}

// Persister stores the state durably. All in-memory mutations are written
// through a Persister before they are committed.
type Persister interface {
	// Load returns the complete stored state
	Load() (*Snapshot, error)
	// SaveUser creates or replaces a user
	SaveUser(u User) error
	// DeleteUser deletes a user; no error if it is missing
	DeleteUser(id string) error
	// SetEntry creates or replaces the value of a (scope, key)
	SetEntry(scope, key string, value []byte) error
	// DeleteEntry removes a (scope, key); no error if it is missing
	DeleteEntry(scope, key string) error
	// DeleteScope removes all entries of a scope
	DeleteScope(scope string) error
	// Reset removes everything
	Reset() error
	// Close releases the underlying resources
	Close() error
}

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	// Hash returns an encoded hash of password
	Hash(password string) (string, error)
	// Verify checks password against an encoded hash
	Verify(encoded, password string) (bool, error)
	// NeedsRehash reports whether encoded was produced with outdated parameters
	NeedsRehash(encoded string) bool
}
