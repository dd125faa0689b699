package router

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kvapi-dev/kvapi/internal/entries"
	"github.com/kvapi-dev/kvapi/internal/sessions"
	"github.com/kvapi-dev/kvapi/internal/users"
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

type fixture struct {
	router       *Router
	adminID      string
	adminSession string
	regularID    string
	regular      string
}

func newRouter(limits model.Limits) *Router {
	return New(
		users.NewDirectory(nil, plainHasher{}, limits.ValueMaxSize),
		sessions.NewManager(sessions.NewMemoryStore(), limits.SessionMaxInactivity),
		entries.NewStore(nil, limits),
		limits,
	)
}

func dispatch(t *testing.T, r *Router, session string, op model.Operation) any {
	t.Helper()
	res, err := r.Dispatch(context.Background(), session, op)
	if err != nil {
		t.Fatalf("%s failed: %v", op.Op, err)
	}
	return res
}

func expectStatus(t *testing.T, r *Router, session string, op model.Operation, status int) {
	t.Helper()
	_, err := r.Dispatch(context.Background(), session, op)
	got := model.StatusCode(err)
	if err == nil {
		got = op.Op.SuccessStatus()
	}
	if got != status {
		t.Fatalf("%s: expected status %d, got %d (%v)", op.Op, status, got, err)
	}
}

func login(t *testing.T, r *Router, login, password string) *model.SessionInfo {
	t.Helper()
	return dispatch(
		t, r, "", model.Operation{
			Op:       model.OpSessionsCreate,
			Login:    login,
			Password: password,
		},
	).(*model.SessionInfo)
}

func newFixture(t *testing.T) *fixture {
	r := newRouter(model.DefaultLimits())
	admin := dispatch(
		t, r, "", model.Operation{
			Op:       model.OpUsersCreate,
			Login:    "admin",
			Password: "admin123",
			Role:     model.RoleAdmin,
		},
	).(model.UserPublic)
	adminSession := login(t, r, "admin", "admin123").SessionID
	regular := dispatch(
		t, r, adminSession, model.Operation{
			Op:       model.OpUsersCreate,
			Login:    "regular1",
			Password: "test567",
			Role:     model.RoleAuthorized,
		},
	).(model.UserPublic)
	return &fixture{
		router:       r,
		adminID:      admin.ID,
		adminSession: adminSession,
		regularID:    regular.ID,
		regular:      login(t, r, "regular1", "test567").SessionID,
	}
}

func TestAppInfo(t *testing.T) {
	r := newRouter(model.DefaultLimits())
	info := dispatch(t, r, "", model.Operation{Op: model.OpAppInfoGet}).(model.AppInfo)
	want := model.AppInfo{
		SessionMaxInactivityTime: 3600000,
		ValueMaxSize:             10485760,
		PrivateDBMaxNumEntries:   100000,
		PrivateDBMaxSize:         1073741824,
	}
	if info != want {
		t.Fatalf("expected %+v, got %+v", want, info)
	}
}

func TestFirstUserMustBeAdmin(t *testing.T) {
	r := newRouter(model.DefaultLimits())
	expectStatus(
		t, r, "", model.Operation{
			Op:       model.OpUsersCreate,
			Login:    "regular1",
			Password: "test567",
			Role:     model.RoleAuthorized,
		}, 400,
	)
	info := dispatch(t, r, "", model.Operation{Op: model.OpAppInfoGet}).(model.AppInfo)
	if info.HasAnyUsers {
		t.Fatalf("rejected creation left a user behind")
	}
}

func TestUsersCreateRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	op := model.Operation{
		Op:       model.OpUsersCreate,
		Login:    "regular2",
		Password: "x",
		Role:     model.RoleAuthorized,
	}
	expectStatus(t, f.router, "", op, 401)
	expectStatus(t, f.router, f.regular, op, 403)
	expectStatus(t, f.router, f.adminSession, op, 201)
	expectStatus(t, f.router, f.adminSession, op, 409)
	op.Login = strings.Repeat("x", 1000)
	expectStatus(t, f.router, f.adminSession, op, 400)
}

func TestSessions(t *testing.T) {
	f := newFixture(t)
	expectStatus(t, f.router, "", model.Operation{Op: model.OpSessionsCreate, Login: "admin", Password: "bad"}, 404)
	expectStatus(t, f.router, "", model.Operation{Op: model.OpSessionsCreate, Login: "ghost", Password: "x"}, 404)
	expectStatus(t, f.router, f.regular, model.Operation{Op: model.OpSessionsUpdate}, 204)
	expectStatus(t, f.router, f.regular, model.Operation{Op: model.OpSessionsDelete}, 204)
	expectStatus(t, f.router, f.regular, model.Operation{Op: model.OpSessionsUpdate}, 401)
	expectStatus(t, f.router, f.regular, model.Operation{Op: model.OpPrivateEntriesGetAll}, 401)
}

func TestUsersGet(t *testing.T) {
	f := newFixture(t)
	self := dispatch(t, f.router, f.regular, model.Operation{Op: model.OpUsersGet, ID: f.regularID})
	if _, ok := self.(model.UserWithoutPassword); !ok {
		t.Fatalf("self must see the full record, got %T", self)
	}
	other := dispatch(t, f.router, f.adminSession, model.Operation{Op: model.OpUsersGet, ID: f.regularID})
	if _, ok := other.(model.UserPublic); !ok {
		t.Fatalf("admin must see the public record of others, got %T", other)
	}
	expectStatus(t, f.router, f.regular, model.Operation{Op: model.OpUsersGet, ID: f.adminID}, 403)
	expectStatus(t, f.router, f.regular, model.Operation{Op: model.OpUsersGet, ID: "test"}, 403)
	expectStatus(t, f.router, f.adminSession, model.Operation{Op: model.OpUsersGet, ID: "test"}, 404)
	expectStatus(t, f.router, "", model.Operation{Op: model.OpUsersGet, ID: f.adminID}, 401)

	list := dispatch(t, f.router, f.adminSession, model.Operation{Op: model.OpUsersGetAll}).([]model.UserPublic)
	if len(list) != 2 || list[0].Login != "admin" || list[1].Login != "regular1" {
		t.Fatalf("unexpected user list %+v", list)
	}
	expectStatus(t, f.router, f.regular, model.Operation{Op: model.OpUsersGetAll}, 403)
}

func TestUsersUpdate(t *testing.T) {
	f := newFixture(t)
	patch := func(p model.UserPatch) *model.UserPatch {
		return &p
	}
	ownRole := model.Operation{
		Op:    model.OpUsersUpdate,
		ID:    f.regularID,
		Patch: patch(model.UserPatch{Role: model.Some(model.RoleAdmin)}),
	}
	expectStatus(t, f.router, f.regular, ownRole, 403)
	ownLogin := model.Operation{
		Op:    model.OpUsersUpdate,
		ID:    f.regularID,
		Patch: patch(model.UserPatch{Login: model.Some("renamed")}),
	}
	expectStatus(t, f.router, f.regular, ownLogin, 403)
	u := dispatch(t, f.router, f.adminSession, model.Operation{Op: model.OpUsersGet, ID: f.regularID})
	if u.(model.UserPublic).Login != "regular1" || u.(model.UserPublic).Role != model.RoleAuthorized {
		t.Fatalf("forbidden update changed the record: %+v", u)
	}

	expectStatus(t, f.router, f.regular, model.Operation{Op: model.OpUsersUpdate, ID: "test", Patch: patch(model.UserPatch{})}, 403)
	expectStatus(t, f.router, f.adminSession, model.Operation{Op: model.OpUsersUpdate, ID: "test", Patch: patch(model.UserPatch{})}, 404)
	expectStatus(t, f.router, "", model.Operation{Op: model.OpUsersUpdate, ID: f.adminID, Patch: patch(model.UserPatch{})}, 401)
	expectStatus(
		t, f.router, f.adminSession, model.Operation{
			Op:    model.OpUsersUpdate,
			ID:    f.regularID,
			Patch: patch(model.UserPatch{Password: model.Some("hijack")}),
		}, 403,
	)

	promoted := dispatch(
		t, f.router, f.adminSession, model.Operation{
			Op:    model.OpUsersUpdate,
			ID:    f.regularID,
			Patch: patch(model.UserPatch{Role: model.Some(model.RoleAdmin)}),
		},
	)
	if p, ok := promoted.(model.UserPublic); !ok || p.Role != model.RoleAdmin {
		t.Fatalf("unexpected result %+v", promoted)
	}

	own := dispatch(
		t, f.router, f.regular, model.Operation{
			Op: model.OpUsersUpdate,
			ID: f.regularID,
			Patch: patch(
				model.UserPatch{
					Password:    model.Some("newpw"),
					PrivateData: model.Some([]byte("secret")),
				},
			),
		},
	).(model.UserWithoutPassword)
	if string(own.PrivateData) != "secret" || own.LastPasswordUpdateTimestamp == nil {
		t.Fatalf("own update not applied: %+v", own)
	}
	login(t, f.router, "regular1", "newpw")
}

func TestUsersDeleteCascades(t *testing.T) {
	f := newFixture(t)
	dispatch(t, f.router, f.regular, model.Operation{Op: model.OpPrivateEntriesSet, Key: "k", Value: []byte("v")})
	expectStatus(t, f.router, f.regular, model.Operation{Op: model.OpUsersDelete, ID: f.adminID}, 403)
	expectStatus(t, f.router, f.adminSession, model.Operation{Op: model.OpUsersDelete, ID: f.adminID}, 403)
	expectStatus(t, f.router, f.adminSession, model.Operation{Op: model.OpUsersDelete, ID: "test"}, 404)
	expectStatus(t, f.router, f.adminSession, model.Operation{Op: model.OpUsersDelete, ID: f.regularID}, 204)
	expectStatus(t, f.router, f.regular, model.Operation{Op: model.OpSessionsUpdate}, 401)
	if count, _ := f.router.entries.Usage(model.PrivateScope(f.regularID)); count != 0 {
		t.Fatalf("private entries of deleted user remain")
	}
}

func TestEntries(t *testing.T) {
	f := newFixture(t)
	dispatch(t, f.router, "", model.Operation{Op: model.OpPublicEntriesSet, Key: "pub1k", Value: []byte("pub1v")})
	v := dispatch(t, f.router, f.regular, model.Operation{Op: model.OpPublicEntriesGet, Key: "pub1k"}).([]byte)
	if string(v) != "pub1v" {
		t.Fatalf("unexpected value %q", v)
	}
	expectStatus(t, f.router, "", model.Operation{Op: model.OpPublicEntriesGet, Key: "pub3k"}, 404)
	expectStatus(t, f.router, "", model.Operation{Op: model.OpPublicEntriesGet, Key: ""}, 400)
	expectStatus(t, f.router, "", model.Operation{Op: model.OpPublicEntriesSet, Key: "bad@key"}, 400)
	expectStatus(t, f.router, "", model.Operation{Op: model.OpPublicEntriesDelete, Key: "pub3k"}, 204)

	dispatch(t, f.router, f.regular, model.Operation{Op: model.OpPrivateEntriesSet, Key: "k", Value: []byte("mine")})
	expectStatus(t, f.router, f.adminSession, model.Operation{Op: model.OpPrivateEntriesGet, Key: "k"}, 404)
	expectStatus(t, f.router, "", model.Operation{Op: model.OpPrivateEntriesGet, Key: "k"}, 401)
	all := dispatch(t, f.router, f.regular, model.Operation{Op: model.OpPrivateEntriesGetAll}).(model.KeyValueMap)
	if len(all) != 1 || string(all["k"]) != "mine" {
		t.Fatalf("unexpected private entries %v", all)
	}
}

func TestValueAndQuotaLimits(t *testing.T) {
	limits := model.DefaultLimits()
	limits.ValueMaxSize = 8
	limits.PrivateDBMaxNumEntries = 1
	r := newRouter(limits)
	dispatch(
		t, r, "", model.Operation{
			Op:       model.OpUsersCreate,
			Login:    "admin",
			Password: "admin123",
			Role:     model.RoleAdmin,
		},
	)
	s := login(t, r, "admin", "admin123").SessionID
	expectStatus(t, r, s, model.Operation{Op: model.OpPublicEntriesSet, Key: "k", Value: make([]byte, 9)}, 400)
	expectStatus(t, r, s, model.Operation{Op: model.OpPrivateEntriesSet, Key: "a", Value: []byte("v")}, 204)
	expectStatus(t, r, s, model.Operation{Op: model.OpPrivateEntriesSet, Key: "b", Value: []byte("v")}, 400)
}

func TestPublicEntriesDisabled(t *testing.T) {
	limits := model.DefaultLimits()
	limits.DisablePublicEntries = true
	r := newRouter(limits)
	expectStatus(t, r, "", model.Operation{Op: model.OpPublicEntriesGetAll}, 403)
	info := dispatch(t, r, "", model.Operation{Op: model.OpAppInfoGet}).(model.AppInfo)
	if !info.DisablePublicEntries {
		t.Fatalf("app info does not report disabled public entries")
	}
}

func TestExpiredSessionIsAnonymous(t *testing.T) {
	limits := model.DefaultLimits()
	limits.SessionMaxInactivity = time.Millisecond
	r := newRouter(limits)
	dispatch(
		t, r, "", model.Operation{
			Op:       model.OpUsersCreate,
			Login:    "admin",
			Password: "admin123",
			Role:     model.RoleAdmin,
		},
	)
	s := login(t, r, "admin", "admin123").SessionID
	time.Sleep(5 * time.Millisecond)
	expectStatus(t, r, s, model.Operation{Op: model.OpPrivateEntriesGetAll}, 401)
	expectStatus(t, r, s, model.Operation{Op: model.OpPublicEntriesGetAll}, 200)
}

func TestForbiddenSelfUpdatesLeaveRecordUnchanged(t *testing.T) {
	f := newFixture(t)
	dispatch(
		t, f.router, f.regular, model.Operation{
			Op: model.OpUsersUpdate,
			ID: f.regularID,
			Patch: &model.UserPatch{
				Password:    model.Some("regular123"),
				PrivateData: model.Some([]byte("blob")),
			},
		},
	)
	for _, c := range []struct {
		name    string
		session string
		id      string
		patch   model.UserPatch
	}{
		{
			name:    "own role",
			session: f.regular,
			id:      f.regularID,
			patch:   model.UserPatch{Role: model.Some(model.RoleAdmin)},
		},
		{
			name:    "own login",
			session: f.regular,
			id:      f.regularID,
			patch:   model.UserPatch{Login: model.Some("renamed")},
		},
		{
			name:    "own role with password",
			session: f.regular,
			id:      f.regularID,
			patch: model.UserPatch{
				Password:    model.Some("other123"),
				PrivateData: model.Some([]byte("other")),
				Role:        model.Some(model.RoleAdmin),
			},
		},
		{
			name:    "admin own role",
			session: f.adminSession,
			id:      f.adminID,
			patch:   model.UserPatch{Role: model.Some(model.RoleAuthorized)},
		},
	} {
		t.Run(
			c.name, func(t *testing.T) {
				get := model.Operation{Op: model.OpUsersGet, ID: c.id}
				before := dispatch(t, f.router, c.session, get)
				patch := c.patch
				expectStatus(t, f.router, c.session, model.Operation{Op: model.OpUsersUpdate, ID: c.id, Patch: &patch}, 403)
				after := dispatch(t, f.router, c.session, get)
				if _, ok := after.(model.UserWithoutPassword); !ok {
					t.Fatalf("expected the owner projection, got %T", after)
				}
				if !reflect.DeepEqual(before, after) {
					t.Fatalf("record changed:\nbefore %+v\nafter  %+v", before, after)
				}
			},
		)
	}
}
