// Package client is a Go client for the kvapi http api. Private entry
// values and the private data of users are end-to-end encrypted; the server
// only stores opaque blobs.
package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/kvapi-dev/kvapi/storage/model"
)

// HeaderSessionID is the request header carrying the session id
const HeaderSessionID = "X-Session-Id"

// Options configures an Api
type Options struct {
	// HTTPClient is used for all requests if set
	HTTPClient *http.Client
	// Timeout of a single request; 0 disables the timeout
	Timeout time.Duration
	// DisableE2EE stores private entry values and private data unencrypted
	DisableE2EE bool
}

// Api is a client for one kvapi server. It tracks the current session and
// the logged-in user. An Api is safe for concurrent use.
type Api struct {
	rest *resty.Client
	e2ee bool

	mu        sync.RWMutex
	sessionID string
	user      *model.UserWithoutPassword
	keys      *keyring

	AppInfo        AppInfo
	Sessions       Sessions
	Users          Users
	PublicEntries  PublicEntries
	PrivateEntries PrivateEntries
}

// New creates a new Api for the api at baseURL, e.g. https://kv.example.org/api
func New(baseURL string, opts *Options) *Api {
	if opts == nil {
		opts = &Options{}
	}
	var rest *resty.Client
	if opts.HTTPClient != nil {
		rest = resty.NewWithClient(opts.HTTPClient)
	} else {
		rest = resty.New()
	}
	rest.SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		rest.SetTimeout(opts.Timeout)
	}
	a := &Api{
		rest: rest,
		e2ee: !opts.DisableE2EE,
	}
	a.AppInfo = AppInfo{api: a}
	a.Sessions = Sessions{api: a}
	a.Users = Users{api: a}
	a.PublicEntries = PublicEntries{
		api: a,
		ns:  publicNamespace,
	}
	a.PrivateEntries = PrivateEntries{
		api: a,
		ns:  privateNamespace,
	}
	return a
}

// SessionID returns the id of the current session or an empty string
func (a *Api) SessionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessionID
}

// User returns the logged-in user or nil
func (a *Api) User() *model.UserWithoutPassword {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return nil
	}
	u := *a.user
	u.PrivateData = append([]byte(nil), u.PrivateData...)
	return &u
}

func (a *Api) keyring() *keyring {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.keys
}

func (a *Api) isSelf(id string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.user != nil && a.user.ID == id
}

func (a *Api) setSession(id string, u model.UserWithoutPassword, keys *keyring) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessionID = id
	a.user = &u
	a.keys = keys
}

func (a *Api) clearSession() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessionID = ""
	a.user = nil
	a.keys = nil
}

// updateUser replaces the tracked user if it is still the logged-in one;
// keys is only applied if not nil
func (a *Api) updateUser(u model.UserWithoutPassword, keys *keyring) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user == nil || a.user.ID != u.ID {
		return
	}
	a.user = &u
	if keys != nil {
		a.keys = keys
	}
}

// PrivateData returns the decrypted private data of the logged-in user, a
// json object
func (a *Api) PrivateData() ([]byte, error) {
	keys := a.keyring()
	u := a.User()
	if keys == nil || u == nil {
		return nil, model.EncryptionNotInitializedError{}
	}
	return keys.decryptPrivateData(u.PrivateData)
}

// EncryptPrivateData encrypts a json object for an update of the own
// private data. The object must keep the data key returned by PrivateData.
func (a *Api) EncryptPrivateData(plain []byte) ([]byte, error) {
	keys := a.keyring()
	if keys == nil {
		return nil, model.EncryptionNotInitializedError{}
	}
	dataKey, err := extractDataKey(plain)
	if err != nil {
		return nil, err
	}
	if string(dataKey) != string(keys.dataKey) {
		return nil, errors.New("private data must keep the data key")
	}
	return keys.encryptPrivateData(plain)
}

func responseError(status int, body []byte) error {
	var e model.ErrorResponse
	_ = json.Unmarshal(body, &e)
	return model.ErrorFromStatus(status, e.Message)
}

// send executes a single http request and returns the raw response body
func (a *Api) send(ctx context.Context, method, path string, params map[string]string, body any) ([]byte, error) {
	req := a.rest.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetPathParams(params)
	}
	if id := a.SessionID(); id != "" {
		req.SetHeader(HeaderSessionID, id)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	if resp.IsError() {
		return nil, responseError(resp.StatusCode(), resp.Body())
	}
	return resp.Body(), nil
}

// request describes one operation for both immediate and batched execution
type request[T any] struct {
	method string
	path   string
	params map[string]string
	body   any
	op     model.Operation
	decode func(raw []byte) (T, error)
	// after runs on success
	after func(v T)
}

func (r *request[T]) finish(raw []byte) (T, error) {
	v, err := r.decode(raw)
	if err != nil {
		return v, err
	}
	if r.after != nil {
		r.after(v)
	}
	return v, nil
}

// call executes r immediately; err is a client-side error from building r
func call[T any](ctx context.Context, a *Api, r *request[T], err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	raw, err := a.send(ctx, r.method, r.path, r.params, r.body)
	if err != nil {
		return zero, err
	}
	return r.finish(raw)
}

func decodeJSON[T any](raw []byte) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, errors.Wrap(err, "invalid response")
	}
	return v, nil
}

func decodeNothing([]byte) (struct{}, error) {
	return struct{}{}, nil
}
