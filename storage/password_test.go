package storage

import (
	"strings"
	"testing"
)

var testParams = Argon2idParams{Time: 1, MemoryKiB: 1024, Parallelism: 1, KeyLen: 16, SaltLen: 8}

func TestArgon2idHasher(t *testing.T) {
	h := NewArgon2idHasher(testParams)
	encoded, err := h.Hash("admin123")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding %s", encoded)
	}
	ok, err := h.Verify(encoded, "admin123")
	if err != nil || !ok {
		t.Fatalf("verify failed: %v %v", ok, err)
	}
	if ok, _ = h.Verify(encoded, "wrong"); ok {
		t.Fatalf("wrong password verified")
	}
	if h.NeedsRehash(encoded) {
		t.Fatalf("hash with current params must not need a rehash")
	}
	stronger := testParams
	stronger.Time = 2
	if !NewArgon2idHasher(stronger).NeedsRehash(encoded) {
		t.Fatalf("hash with outdated params must need a rehash")
	}
}

func TestArgon2idHasherRejectsGarbage(t *testing.T) {
	h := NewArgon2idHasher(testParams)
	for _, encoded := range []string{"", "plain", "$argon2id$v=18$m=1,t=1,p=1$AA$AA", "$argon2id$v=19$m=x,t=1,p=1$AA$AA"} {
		if ok, err := h.Verify(encoded, "x"); ok || err == nil {
			t.Fatalf("expected error for %q", encoded)
		}
	}
}

func TestDefaultParams(t *testing.T) {
	h := NewArgon2idHasher(Argon2idParams{})
	if h.params != defaultArgon2idParams() {
		t.Fatalf("zero params must select defaults")
	}
}

func TestDSN(t *testing.T) {
	dsn, err := DSN(DriverPostgres, DSNConf{User: "u", Password: "p", Host: "h", DB: "d"})
	if err != nil {
		t.Fatalf("dsn failed: %v", err)
	}
	if dsn != "host=h user=u password=p dbname=d port=5432" {
		t.Fatalf("unexpected dsn %s", dsn)
	}
	dsn, _ = DSN(DriverMySQL, DSNConf{User: "u", Password: "p", Host: "h", DB: "d"})
	if dsn != "u:p@tcp(h:3306)/d?charset=utf8mb4&parseTime=True" {
		t.Fatalf("unexpected dsn %s", dsn)
	}
	if _, err = DSN(DriverSQLite, DSNConf{}); err == nil {
		t.Fatalf("sqlite must not use a dsn")
	}
}

func TestDSNSSLMode(t *testing.T) {
	dsn, err := DSN(DriverPostgres, DSNConf{User: "u", Host: "h", DB: "d", Port: 6543, SSLMode: "disable"})
	if err != nil {
		t.Fatalf("dsn failed: %v", err)
	}
	if dsn != "host=h user=u password= dbname=d port=6543 sslmode=disable" {
		t.Fatalf("unexpected dsn %s", dsn)
	}
}

func TestParseDriver(t *testing.T) {
	d, err := ParseDriver(" Postgres")
	if err != nil || d != DriverPostgres {
		t.Fatalf("unexpected result %q, %v", d, err)
	}
	if _, err = ParseDriver("oracle"); err == nil {
		t.Fatal("expected an error for an unknown driver")
	}
	if _, err = ParseDriver(""); err == nil {
		t.Fatal("expected an error for an empty driver")
	}
}
