package client

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/kvapi-dev/kvapi/storage/model"
)

// AppInfo gives access to the app-info of the server
type AppInfo struct {
	api *Api
}

// Get returns the app-info
func (s AppInfo) Get(ctx context.Context) (model.AppInfo, error) {
	return call(ctx, s.api, s.api.appInfoGet(), nil)
}

// Sessions manages the session of the Api
type Sessions struct {
	api *Api
}

// Create logs in. On the first login of a user new private data is
// generated and stored together with the password; on later logins the
// private data is decrypted with the password.
func (s Sessions) Create(ctx context.Context, login, password string) (*model.SessionInfo, error) {
	a := s.api
	raw, err := a.send(
		ctx, http.MethodPost, "/sessions", nil, model.Credentials{
			Login:    login,
			Password: password,
		},
	)
	if err != nil {
		return nil, err
	}
	info, err := decodeJSON[model.SessionInfo](raw)
	if err != nil {
		return nil, err
	}
	a.setSession(info.SessionID, info.User, nil)
	if !a.e2ee {
		return &info, nil
	}
	if len(info.User.PrivateData) > 0 {
		keys, err := unlockKeyring(password, info.User.PrivateData)
		if err != nil {
			return &info, errors.WithMessage(err, "could not decrypt private data")
		}
		a.setSession(info.SessionID, info.User, keys)
		return &info, nil
	}
	keys, blob, err := newKeyring(password)
	if err != nil {
		return &info, err
	}
	a.setSession(info.SessionID, info.User, keys)
	u, err := call(
		ctx, a, a.rawUsersUpdate(
			info.User.ID, model.UserPatch{
				Password:    model.Some(password),
				PrivateData: model.Some(blob),
			}, keys,
		), nil,
	)
	if err != nil {
		a.setSession(info.SessionID, info.User, nil)
		return &info, errors.WithMessage(err, "could not store private data")
	}
	info.User = u
	return &info, nil
}

// Update renews the current session
func (s Sessions) Update(ctx context.Context) error {
	_, err := call(ctx, s.api, s.api.sessionsUpdate(), nil)
	return err
}

// Delete logs out
func (s Sessions) Delete(ctx context.Context) error {
	_, err := call(ctx, s.api, s.api.sessionsDelete(), nil)
	return err
}

// Users manages users
type Users struct {
	api *Api
}

// Create creates a user; the first user of a server must be an admin and
// can be created without a session
func (s Users) Create(ctx context.Context, creds model.Credentials) (model.UserPublic, error) {
	return call(ctx, s.api, s.api.usersCreate(creds), nil)
}

// GetAll lists all users
func (s Users) GetAll(ctx context.Context) ([]model.UserPublic, error) {
	return call(ctx, s.api, s.api.usersGetAll(), nil)
}

// Get returns a user. Only the own user carries the private fields.
func (s Users) Get(ctx context.Context, id string) (model.UserWithoutPassword, error) {
	return call(ctx, s.api, s.api.usersGet(id), nil)
}

// Update patches a user
func (s Users) Update(ctx context.Context, id string, patch model.UserPatch) (model.UserWithoutPassword, error) {
	r, err := s.api.usersUpdate(id, patch)
	return call(ctx, s.api, r, err)
}

// Delete deletes a user
func (s Users) Delete(ctx context.Context, id string) error {
	_, err := call(ctx, s.api, s.api.usersDelete(id), nil)
	return err
}

// Entries are the operations of an entry namespace
type Entries struct {
	api *Api
	ns  namespace
}

// PublicEntries is the shared namespace
type PublicEntries = Entries

// PrivateEntries is the namespace of the logged-in user
type PrivateEntries = Entries

// GetAll returns all entries
func (s Entries) GetAll(ctx context.Context) (model.KeyValueMap, error) {
	return call(ctx, s.api, s.api.entriesGetAll(s.ns), nil)
}

// Get returns the value of key
func (s Entries) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.api.entriesGet(s.ns, key)
	return call(ctx, s.api, r, err)
}

// Set creates or replaces the value of key
func (s Entries) Set(ctx context.Context, key string, value []byte) error {
	r, err := s.api.entriesSet(s.ns, key, value)
	_, err = call(ctx, s.api, r, err)
	return err
}

// Delete deletes key; deleting a missing key succeeds
func (s Entries) Delete(ctx context.Context, key string) error {
	r, err := s.api.entriesDelete(s.ns, key)
	_, err = call(ctx, s.api, r, err)
	return err
}
