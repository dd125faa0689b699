package badgerstore

import (
	"testing"

	"github.com/kvapi-dev/kvapi/storage/model"
)

func newStore(t *testing.T) *BadgerStorage {
	t.Helper()
	store, err := OpenInMemory()
	if err != nil {
		t.Fatalf("could not open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUsersRoundTrip(t *testing.T) {
	store := newStore(t)
	ts := int64(99)
	u := model.User{
		ID:                          "id-1",
		CreatedAt:                   7,
		Login:                       "admin",
		PasswordHash:                "hash",
		Role:                        model.RoleAdmin,
		PrivateData:                 []byte{1, 2, 3},
		LastPasswordUpdateTimestamp: &ts,
	}
	if err := store.SaveUser(u); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	snapshot, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(snapshot.Users) != 1 {
		t.Fatalf("expected one user, got %d", len(snapshot.Users))
	}
	got := snapshot.Users[0]
	if got.ID != u.ID || got.Login != u.Login || got.PasswordHash != u.PasswordHash || got.Role != u.Role ||
		string(got.PrivateData) != string(u.PrivateData) || *got.LastPasswordUpdateTimestamp != ts ||
		got.CreatedAt != 7 {
		t.Fatalf("user changed in round trip: %+v", got)
	}
	if err = store.DeleteUser(u.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	snapshot, _ = store.Load()
	if len(snapshot.Users) != 0 {
		t.Fatalf("user not deleted")
	}
}

func TestEntriesAndScopes(t *testing.T) {
	store := newStore(t)
	a, ab := model.PrivateScope("a"), model.PrivateScope("ab")
	for _, e := range []model.Entry{
		{Scope: model.ScopePublic, Key: "pub1k", Value: []byte("pub1v")},
		{Scope: a, Key: "k", Value: []byte("a")},
		{Scope: a, Key: "k2", Value: []byte("a2")},
		{Scope: ab, Key: "k", Value: []byte("ab")},
	} {
		if err := store.SetEntry(e.Scope, e.Key, e.Value); err != nil {
			t.Fatalf("set failed: %v", err)
		}
	}
	if err := store.DeleteEntry(a, "k2"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := store.DeleteEntry(a, "missing"); err != nil {
		t.Fatalf("deleting a missing entry failed: %v", err)
	}
	if err := store.DeleteScope(a); err != nil {
		t.Fatalf("delete scope failed: %v", err)
	}
	snapshot, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(snapshot.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", snapshot.Entries)
	}
	for _, e := range snapshot.Entries {
		if e.Scope == a {
			t.Fatalf("dropped scope still present")
		}
	}

	if err = store.Reset(); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	snapshot, _ = store.Load()
	if len(snapshot.Entries) != 0 {
		t.Fatalf("reset left entries behind")
	}
}
