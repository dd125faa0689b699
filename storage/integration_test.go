package storage

import (
	"os"
	"strings"
	"testing"

	"github.com/kvapi-dev/kvapi/storage/model"
)

// TestSQLiteConnection tests connecting to a SQLite database
func TestSQLiteConnection(t *testing.T) {
	// Skip if not running integration tests
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}

	// Create a temporary directory for the SQLite database
	tempDir, err := os.MkdirTemp("", "kvapi-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	// Create a SQLite configuration
	config := Config{
		Driver:  DriverSQLite,
		DataDir: tempDir,
	}

	// Connect to the database
	db, err := Connect(config)
	if err != nil {
		t.Fatalf("Failed to connect to SQLite database: %v", err)
	}

	// Check if the connection is valid
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get SQL DB: %v", err)
	}

	if err := sqlDB.Ping(); err != nil {
		t.Fatalf("Failed to ping SQLite database: %v", err)
	}
}

// TestMySQLConnection tests connecting to a MySQL database
func TestMySQLConnection(t *testing.T) {
	// Skip if not running integration tests
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}

	// Skip if MySQL DSN is not provided
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		t.Skip("Skipping MySQL test. Set MYSQL_DSN environment variable")
	}

	// Create a MySQL configuration
	config := Config{
		Driver: DriverMySQL,
		DSN:    dsn,
	}

	// Connect to the database
	db, err := Connect(config)
	if err != nil {
		t.Fatalf("Failed to connect to MySQL database: %v", err)
	}

	// Check if the connection is valid
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get SQL DB: %v", err)
	}

	if err := sqlDB.Ping(); err != nil {
		t.Fatalf("Failed to ping MySQL database: %v", err)
	}
}

// TestPostgresConnection tests connecting to a PostgreSQL database
func TestPostgresConnection(t *testing.T) {
	// Skip if not running integration tests
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}

	// Skip if PostgreSQL DSN is not provided
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("Skipping PostgreSQL test. Set POSTGRES_DSN environment variable")
	}

	// Create a PostgreSQL configuration
	config := Config{
		Driver: DriverPostgres,
		DSN:    dsn,
	}

	// Connect to the database
	db, err := Connect(config)
	if err != nil {
		t.Fatalf("Failed to connect to PostgreSQL database: %v", err)
	}

	// Check if the connection is valid
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get SQL DB: %v", err)
	}

	if err := sqlDB.Ping(); err != nil {
		t.Fatalf("Failed to ping PostgreSQL database: %v", err)
	}
}

func newSQLiteStorage(t *testing.T) *Storage {
	t.Helper()
	// Skip if not running integration tests
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}
	s, err := NewStorage(
		Config{
			Driver:  DriverSQLite,
			DataDir: t.TempDir(),
		},
	)
	if err != nil {
		t.Fatalf("Failed to create SQLite storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestStoragePersistsUsersAndEntries tests the persister round trip on SQLite
func TestStoragePersistsUsersAndEntries(t *testing.T) {
	s := newSQLiteStorage(t)

	ts := int64(1234)
	users := []model.User{
		{ID: "b", CreatedAt: 2, Login: "regular1", PasswordHash: "h2", Role: model.RoleAuthorized},
		{ID: "a", CreatedAt: 1, Login: "admin", PasswordHash: "h1", Role: model.RoleAdmin},
	}
	for _, u := range users {
		if err := s.SaveUser(u); err != nil {
			t.Fatalf("Failed to save user: %v", err)
		}
	}
	users[0].PrivateData = []byte("blob")
	users[0].LastPasswordUpdateTimestamp = &ts
	if err := s.SaveUser(users[0]); err != nil {
		t.Fatalf("Failed to update user: %v", err)
	}
	if err := s.SetEntry(model.ScopePublic, "pub1k", []byte("pub1v")); err != nil {
		t.Fatalf("Failed to set entry: %v", err)
	}
	if err := s.SetEntry(model.ScopePublic, "pub1k", []byte("changed")); err != nil {
		t.Fatalf("Failed to upsert entry: %v", err)
	}
	if err := s.SetEntry(model.PrivateScope("b"), "k", []byte("v")); err != nil {
		t.Fatalf("Failed to set private entry: %v", err)
	}

	snapshot, err := s.Load()
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if len(snapshot.Users) != 2 || snapshot.Users[0].ID != "a" {
		t.Fatalf("Unexpected users: %+v", snapshot.Users)
	}
	if u := snapshot.Users[1]; string(u.PrivateData) != "blob" || u.LastPasswordUpdateTimestamp == nil || *u.LastPasswordUpdateTimestamp != ts {
		t.Fatalf("User update not persisted: %+v", u)
	}
	if len(snapshot.Entries) != 2 {
		t.Fatalf("Unexpected entries: %+v", snapshot.Entries)
	}

	if err = s.DeleteScope(model.PrivateScope("b")); err != nil {
		t.Fatalf("Failed to delete scope: %v", err)
	}
	longKey := strings.Repeat("k", 1024)
	if err = s.SetEntry(model.ScopePublic, longKey, []byte("long")); err != nil {
		t.Fatalf("Failed to set entry with a long key: %v", err)
	}
	if err = s.DeleteEntry(model.ScopePublic, longKey); err != nil {
		t.Fatalf("Failed to delete entry with a long key: %v", err)
	}
	if err = s.DeleteEntry(model.ScopePublic, "missing"); err != nil {
		t.Fatalf("Deleting a missing entry must not fail: %v", err)
	}
	if err = s.DeleteUser("b"); err != nil {
		t.Fatalf("Failed to delete user: %v", err)
	}
	snapshot, _ = s.Load()
	if len(snapshot.Users) != 1 || len(snapshot.Entries) != 1 || string(snapshot.Entries[0].Value) != "changed" {
		t.Fatalf("Unexpected state after deletes: %+v", snapshot)
	}

	if err = s.Reset(); err != nil {
		t.Fatalf("Failed to reset: %v", err)
	}
	snapshot, _ = s.Load()
	if len(snapshot.Users) != 0 || len(snapshot.Entries) != 0 {
		t.Fatalf("Reset left data behind: %+v", snapshot)
	}
}
