package kvapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kvapi-dev/kvapi/api/httpapi"
	"github.com/kvapi-dev/kvapi/storage/badgerstore"
	"github.com/kvapi-dev/kvapi/storage/model"
)

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "plain:" + password, nil
}

func (plainHasher) Verify(encoded, password string) (bool, error) {
	return strings.TrimPrefix(encoded, "plain:") == password, nil
}

func (plainHasher) NeedsRehash(string) bool {
	return false
}

func newTestServer(t *testing.T, persister model.Persister, opts Options) (*State, *httptest.Server) {
	t.Helper()
	state, err := NewState(
		StateConfig{
			Backends: model.Backends{
				Persister: persister,
				Hasher:    plainHasher{},
			},
		},
	)
	if err != nil {
		t.Fatalf("could not create state: %v", err)
	}
	server, err := NewServer(ServerConf{ExternalURL: "http://kv.test/api"}, state, opts)
	if err != nil {
		t.Fatalf("could not create server: %v", err)
	}
	ts := httptest.NewServer(server.HttpHandlerFunc())
	t.Cleanup(ts.Close)
	return state, ts
}

func request(t *testing.T, ts *httptest.Server, method, path, session string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("could not marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("could not create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.Header.Set(httpapi.HeaderSessionID, session)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("could not read body: %v", err)
	}
	return resp.StatusCode, data
}

func TestUnknownRouteReturnsJSONError(t *testing.T) {
	_, ts := newTestServer(t, nil, Options{})
	status, body := request(t, ts, http.MethodGet, "/api/nope", "", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	var errBody model.ErrorResponse
	if err := json.Unmarshal(body, &errBody); err != nil {
		t.Fatalf("body is not an error response: %v (%s)", err, body)
	}
	if errBody.Error != "Not Found" {
		t.Fatalf("unexpected error: %+v", errBody)
	}
}

func TestResetIsOptIn(t *testing.T) {
	_, ts := newTestServer(t, nil, Options{})
	status, _ := request(t, ts, http.MethodPost, "/api/reset-server-data", "", nil)
	if status != http.StatusNotFound {
		t.Fatalf("reset must not be exposed by default, got %d", status)
	}
}

func TestResetClearsState(t *testing.T) {
	state, ts := newTestServer(t, nil, Options{EnableReset: true})
	creds := model.Credentials{
		Login:    "admin",
		Password: "admin123",
		Role:     model.RoleAdmin,
	}
	if status, body := request(t, ts, http.MethodPost, "/api/users", "", creds); status != http.StatusCreated {
		t.Fatalf("could not create first user: %d %s", status, body)
	}
	status, body := request(t, ts, http.MethodPost, "/api/sessions", "", creds)
	if status != http.StatusCreated {
		t.Fatalf("could not log in: %d %s", status, body)
	}
	var info model.SessionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatal(err)
	}
	if status, _ = request(
		t, ts, http.MethodPut, "/api/private-entries/k", info.SessionID, model.ValueBody{Value: []byte("v")},
	); status != http.StatusNoContent {
		t.Fatalf("could not set private entry: %d", status)
	}

	if status, _ = request(t, ts, http.MethodPost, "/api/reset-server-data", "", nil); status != http.StatusOK {
		t.Fatalf("reset failed: %d", status)
	}
	if n := state.Users.Count(); n != 0 {
		t.Fatalf("expected no users after reset, got %d", n)
	}
	if status, _ = request(t, ts, http.MethodGet, "/api/private-entries", info.SessionID, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected session to be gone after reset, got %d", status)
	}
	var appInfo model.AppInfo
	_, body = request(t, ts, http.MethodGet, "/api/app-info", "", nil)
	if err := json.Unmarshal(body, &appInfo); err != nil {
		t.Fatal(err)
	}
	if appInfo.HasAnyUsers {
		t.Fatal("app info still reports users after reset")
	}
}

func TestStateLoadsPersistedData(t *testing.T) {
	store, err := badgerstore.OpenInMemory()
	if err != nil {
		t.Fatalf("could not open badger: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	first, err := NewState(StateConfig{Backends: model.Backends{Persister: store, Hasher: plainHasher{}}})
	if err != nil {
		t.Fatal(err)
	}
	admin, err := first.Users.Create("admin", "admin123", model.RoleAdmin, true)
	if err != nil {
		t.Fatalf("could not create user: %v", err)
	}
	if err = first.Entries.Set(model.PrivateScope(admin.ID), "k", []byte("v")); err != nil {
		t.Fatalf("could not set entry: %v", err)
	}
	if err = first.Entries.Set(model.ScopePublic, "p", []byte("pub")); err != nil {
		t.Fatalf("could not set entry: %v", err)
	}

	second, err := NewState(StateConfig{Backends: model.Backends{Persister: store, Hasher: plainHasher{}}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err = second.Users.Authenticate("admin", "admin123"); err != nil {
		t.Fatalf("persisted user cannot log in: %v", err)
	}
	v, err := second.Entries.Get(model.PrivateScope(admin.ID), "k")
	if err != nil || string(v) != "v" {
		t.Fatalf("private entry not restored: %q %v", v, err)
	}
	v, err = second.Entries.Get(model.ScopePublic, "p")
	if err != nil || string(v) != "pub" {
		t.Fatalf("public entry not restored: %q %v", v, err)
	}

	if err = second.Reset(context.Background()); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	snapshot, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshot.Users) != 0 || len(snapshot.Entries) != 0 {
		t.Fatalf("reset left persisted data: %+v", snapshot)
	}
}

func TestSweeperStops(t *testing.T) {
	state, err := NewState(StateConfig{Backends: model.Backends{Hasher: plainHasher{}}})
	if err != nil {
		t.Fatal(err)
	}
	state.StartSweeper(time.Millisecond)
	state.StartSweeper(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if err = state.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestBodyLimit(t *testing.T) {
	if l := bodyLimit(ServerConf{BodyLimit: 10}, 1<<30); l != 10 {
		t.Fatalf("configured body limit must win, got %d", l)
	}
	if l := bodyLimit(ServerConf{}, 10); l != minBodyLimit {
		t.Fatalf("expected minimum body limit, got %d", l)
	}
	if l := bodyLimit(ServerConf{}, 300<<20); l < 400<<20 {
		t.Fatalf("body limit too small for base64 values: %d", l)
	}
}

func TestStatePartialLimits(t *testing.T) {
	state, err := NewState(
		StateConfig{
			Backends: model.Backends{Hasher: plainHasher{}},
			Limits:   model.Limits{DevMode: true},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()
	limits := state.Limits()
	if !limits.DevMode {
		t.Fatal("dev mode must be kept")
	}
	if limits.SessionMaxInactivity != time.Hour || limits.ValueMaxSize == 0 || limits.PrivateDBMaxNumEntries == 0 {
		t.Fatalf("unset limits must be defaulted: %+v", limits)
	}
	ctx := context.Background()
	admin, err := state.Users.Create("admin", "admin123", model.RoleAdmin, true)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	session, err := state.Sessions.Create(ctx, admin.ID)
	if err != nil {
		t.Fatalf("session create failed: %v", err)
	}
	if _, err = state.Sessions.Authenticate(ctx, session.ID); err != nil {
		t.Fatalf("session must not expire at once: %v", err)
	}
	if err = state.Entries.Set(model.PrivateScope(admin.ID), "k", []byte("v")); err != nil {
		t.Fatalf("private set must succeed: %v", err)
	}
}

func TestTransferTimeouts(t *testing.T) {
	if d := transferTimeout(time.Second, time.Minute, 1<<30); d != time.Second {
		t.Fatalf("configured timeout must win, got %v", d)
	}
	if d := transferTimeout(0, 3*time.Second, 64<<20); d != 3*time.Second+128*time.Second {
		t.Fatalf("unexpected derived timeout %v", d)
	}

	state, err := NewState(StateConfig{Backends: model.Backends{Hasher: plainHasher{}}})
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()
	server, err := NewServer(ServerConf{}, state, Options{})
	if err != nil {
		t.Fatal(err)
	}
	conf := server.server.Config()
	if conf.ReadTimeout <= FiberServerConfig.ReadTimeout || conf.WriteTimeout <= FiberServerConfig.WriteTimeout {
		t.Fatalf("timeouts must grow with the body limit: %v %v", conf.ReadTimeout, conf.WriteTimeout)
	}
}

func TestShutdownCancelsRequestContext(t *testing.T) {
	state, err := NewState(StateConfig{Backends: model.Backends{Hasher: plainHasher{}}})
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()
	server, err := NewServer(ServerConf{}, state, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if server.ctx.Err() != nil {
		t.Fatal("context must be live before shutdown")
	}
	_ = server.Shutdown()
	if server.ctx.Err() == nil {
		t.Fatal("shutdown must cancel the request context")
	}
}
