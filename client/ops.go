package client

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/kvapi-dev/kvapi/internal/validation"
	"github.com/kvapi-dev/kvapi/storage/model"
)

func (a *Api) appInfoGet() *request[model.AppInfo] {
	return &request[model.AppInfo]{
		method: http.MethodGet,
		path:   "/app-info",
		op:     model.Operation{Op: model.OpAppInfoGet},
		decode: decodeJSON[model.AppInfo],
	}
}

func (a *Api) sessionsUpdate() *request[struct{}] {
	return &request[struct{}]{
		method: http.MethodPut,
		path:   "/sessions/current",
		op:     model.Operation{Op: model.OpSessionsUpdate},
		decode: decodeNothing,
	}
}

func (a *Api) sessionsDelete() *request[struct{}] {
	return &request[struct{}]{
		method: http.MethodDelete,
		path:   "/sessions/current",
		op:     model.Operation{Op: model.OpSessionsDelete},
		decode: decodeNothing,
		after: func(struct{}) {
			a.clearSession()
		},
	}
}

func (a *Api) usersCreate(creds model.Credentials) *request[model.UserPublic] {
	return &request[model.UserPublic]{
		method: http.MethodPost,
		path:   "/users",
		body:   creds,
		op: model.Operation{
			Op:       model.OpUsersCreate,
			Login:    creds.Login,
			Password: creds.Password,
			Role:     creds.Role,
		},
		decode: decodeJSON[model.UserPublic],
	}
}

func (a *Api) usersGetAll() *request[[]model.UserPublic] {
	return &request[[]model.UserPublic]{
		method: http.MethodGet,
		path:   "/users",
		op:     model.Operation{Op: model.OpUsersGetAll},
		decode: decodeJSON[[]model.UserPublic],
	}
}

func (a *Api) usersGet(id string) *request[model.UserWithoutPassword] {
	return &request[model.UserWithoutPassword]{
		method: http.MethodGet,
		path:   "/users/{id}",
		params: map[string]string{"id": id},
		op: model.Operation{
			Op: model.OpUsersGet,
			ID: id,
		},
		decode: decodeJSON[model.UserWithoutPassword],
		after: func(u model.UserWithoutPassword) {
			a.updateUser(u, nil)
		},
	}
}

// usersUpdate builds a users.update. When the logged-in user changes the
// own password, the private data is re-encrypted for the new password.
func (a *Api) usersUpdate(id string, patch model.UserPatch) (*request[model.UserWithoutPassword], error) {
	var next *keyring
	if password, ok := patch.Password.Get(); ok && a.e2ee && a.isSelf(id) {
		keys := a.keyring()
		if keys == nil {
			return nil, model.EncryptionNotInitializedError{}
		}
		blob, given := patch.PrivateData.Get()
		if !given {
			blob = a.User().PrivateData
		}
		plain, err := keys.decryptPrivateData(blob)
		if err != nil {
			return nil, errors.WithMessage(err, "could not re-encrypt private data")
		}
		if next, blob, err = keys.rewrap(password, plain); err != nil {
			return nil, err
		}
		patch.PrivateData = model.Some(blob)
	}
	return a.rawUsersUpdate(id, patch, next), nil
}

func (a *Api) rawUsersUpdate(id string, patch model.UserPatch, next *keyring) *request[model.UserWithoutPassword] {
	return &request[model.UserWithoutPassword]{
		method: http.MethodPatch,
		path:   "/users/{id}",
		params: map[string]string{"id": id},
		body:   patch,
		op: model.Operation{
			Op:    model.OpUsersUpdate,
			ID:    id,
			Patch: &patch,
		},
		decode: decodeJSON[model.UserWithoutPassword],
		after: func(u model.UserWithoutPassword) {
			a.updateUser(u, next)
		},
	}
}

func (a *Api) usersDelete(id string) *request[struct{}] {
	return &request[struct{}]{
		method: http.MethodDelete,
		path:   "/users/{id}",
		params: map[string]string{"id": id},
		op: model.Operation{
			Op: model.OpUsersDelete,
			ID: id,
		},
		decode: decodeNothing,
	}
}

// namespace describes the routes and operations of an entry namespace
type namespace struct {
	path                     string
	getAll, get, set, delete model.OpName
	private                  bool
}

var (
	publicNamespace = namespace{
		path:   "/public-entries",
		getAll: model.OpPublicEntriesGetAll,
		get:    model.OpPublicEntriesGet,
		set:    model.OpPublicEntriesSet,
		delete: model.OpPublicEntriesDelete,
	}
	privateNamespace = namespace{
		path:    "/private-entries",
		getAll:  model.OpPrivateEntriesGetAll,
		get:     model.OpPrivateEntriesGet,
		set:     model.OpPrivateEntriesSet,
		delete:  model.OpPrivateEntriesDelete,
		private: true,
	}
)

func (a *Api) encrypted(ns namespace) bool {
	return ns.private && a.e2ee
}

// openValue decrypts a value received from ns
func (a *Api) openValue(ns namespace, value []byte) ([]byte, error) {
	if !a.encrypted(ns) {
		return value, nil
	}
	keys := a.keyring()
	if keys == nil {
		return nil, model.EncryptionNotInitializedError{}
	}
	return keys.openValue(value)
}

func (a *Api) entriesGetAll(ns namespace) *request[model.KeyValueMap] {
	return &request[model.KeyValueMap]{
		method: http.MethodGet,
		path:   ns.path,
		op:     model.Operation{Op: ns.getAll},
		decode: func(raw []byte) (model.KeyValueMap, error) {
			entries, err := decodeJSON[model.KeyValueMap](raw)
			if err != nil {
				return nil, err
			}
			if entries == nil {
				entries = model.KeyValueMap{}
			}
			for k, v := range entries {
				if entries[k], err = a.openValue(ns, v); err != nil {
					return nil, errors.WithMessagef(err, "entry '%s'", k)
				}
			}
			return entries, nil
		},
	}
}

func (a *Api) entriesGet(ns namespace, key string) (*request[[]byte], error) {
	if err := validation.ClientKey(key); err != nil {
		return nil, err
	}
	return &request[[]byte]{
		method: http.MethodGet,
		path:   ns.path + "/{key}",
		params: map[string]string{"key": key},
		op: model.Operation{
			Op:  ns.get,
			Key: key,
		},
		decode: func(raw []byte) ([]byte, error) {
			value, err := decodeJSON[[]byte](raw)
			if err != nil {
				return nil, err
			}
			return a.openValue(ns, value)
		},
	}, nil
}

func (a *Api) entriesSet(ns namespace, key string, value []byte) (*request[struct{}], error) {
	if err := validation.ClientKey(key); err != nil {
		return nil, err
	}
	if a.encrypted(ns) {
		keys := a.keyring()
		if keys == nil {
			return nil, model.EncryptionNotInitializedError{}
		}
		var err error
		if value, err = keys.sealValue(value); err != nil {
			return nil, err
		}
	}
	return &request[struct{}]{
		method: http.MethodPut,
		path:   ns.path + "/{key}",
		params: map[string]string{"key": key},
		body:   model.ValueBody{Value: value},
		op: model.Operation{
			Op:    ns.set,
			Key:   key,
			Value: value,
		},
		decode: decodeNothing,
	}, nil
}

func (a *Api) entriesDelete(ns namespace, key string) (*request[struct{}], error) {
	if err := validation.ClientKey(key); err != nil {
		return nil, err
	}
	return &request[struct{}]{
		method: http.MethodDelete,
		path:   ns.path + "/{key}",
		params: map[string]string{"key": key},
		op: model.Operation{
			Op:  ns.delete,
			Key: key,
		},
		decode: decodeNothing,
	}, nil
}
