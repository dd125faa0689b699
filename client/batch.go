package client

import (
	"context"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kvapi-dev/kvapi/storage/model"
)

type queued struct {
	op      model.Operation
	resolve func(res model.Result)
	fail    func(err error)
}

// Batch queues operations and transmits them as one request on Execute.
// Nothing is sent before Execute is called. Sessions cannot be created in
// a batch.
type Batch struct {
	api *Api

	mu    sync.Mutex
	queue []queued

	AppInfo        BatchAppInfo
	Sessions       BatchSessions
	Users          BatchUsers
	PublicEntries  BatchEntries
	PrivateEntries BatchEntries
}

// NewBatch creates a new, empty Batch
func (a *Api) NewBatch() *Batch {
	b := &Batch{api: a}
	b.AppInfo = BatchAppInfo{b: b}
	b.Sessions = BatchSessions{b: b}
	b.Users = BatchUsers{b: b}
	b.PublicEntries = BatchEntries{
		b:  b,
		ns: publicNamespace,
	}
	b.PrivateEntries = BatchEntries{
		b:  b,
		ns: privateNamespace,
	}
	return b
}

// Len returns the number of queued operations
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// enqueue adds r to the queue of b; a client-side error resolves the Future
// immediately and nothing is queued
func enqueue[T any](b *Batch, r *request[T], err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	if err != nil {
		f.resolve(zero, err)
		return f
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(
		b.queue, queued{
			op: r.op,
			resolve: func(res model.Result) {
				if err := res.Err(); err != nil {
					f.resolve(zero, err)
					return
				}
				f.resolve(r.finish(res.Body))
			},
			fail: func(err error) {
				f.resolve(zero, err)
			},
		},
	)
	return f
}

// Execute transmits all queued operations in order and resolves their
// futures. The queue is emptied, so a Batch can be reused. If the batch
// could not be transmitted every future fails with the returned error.
func (b *Batch) Execute(ctx context.Context) error {
	b.mu.Lock()
	queue := b.queue
	b.queue = nil
	b.mu.Unlock()
	if len(queue) == 0 {
		return nil
	}

	ops := make([]model.Operation, len(queue))
	for i, q := range queue {
		ops[i] = q.op
	}
	err := func() error {
		raw, err := b.api.send(ctx, http.MethodPost, "/batch", nil, model.BatchRequest{Operations: ops})
		if err != nil {
			return err
		}
		resp, err := decodeJSON[model.BatchResponse](raw)
		if err != nil {
			return err
		}
		if len(resp.Results) != len(queue) {
			return errors.Errorf("expected %d batch results, got %d", len(queue), len(resp.Results))
		}
		for i, res := range resp.Results {
			queue[i].resolve(res)
		}
		return nil
	}()
	if err != nil {
		log.WithError(err).WithField("operations", len(queue)).Debug("batch failed")
		for _, q := range queue {
			q.fail(err)
		}
	}
	return err
}

// BatchAppInfo is the batched variant of AppInfo
type BatchAppInfo struct {
	b *Batch
}

// Get queues an appInfo.get
func (s BatchAppInfo) Get() *Future[model.AppInfo] {
	return enqueue(s.b, s.b.api.appInfoGet(), nil)
}

// BatchSessions is the batched variant of Sessions
type BatchSessions struct {
	b *Batch
}

// Update queues a sessions.update
func (s BatchSessions) Update() *Future[struct{}] {
	return enqueue(s.b, s.b.api.sessionsUpdate(), nil)
}

// Delete queues a sessions.delete
func (s BatchSessions) Delete() *Future[struct{}] {
	return enqueue(s.b, s.b.api.sessionsDelete(), nil)
}

// BatchUsers is the batched variant of Users
type BatchUsers struct {
	b *Batch
}

// Create queues a users.create
func (s BatchUsers) Create(creds model.Credentials) *Future[model.UserPublic] {
	return enqueue(s.b, s.b.api.usersCreate(creds), nil)
}

// GetAll queues a users.getAll
func (s BatchUsers) GetAll() *Future[[]model.UserPublic] {
	return enqueue(s.b, s.b.api.usersGetAll(), nil)
}

// Get queues a users.get
func (s BatchUsers) Get(id string) *Future[model.UserWithoutPassword] {
	return enqueue(s.b, s.b.api.usersGet(id), nil)
}

// Update queues a users.update
func (s BatchUsers) Update(id string, patch model.UserPatch) *Future[model.UserWithoutPassword] {
	r, err := s.b.api.usersUpdate(id, patch)
	return enqueue(s.b, r, err)
}

// Delete queues a users.delete
func (s BatchUsers) Delete(id string) *Future[struct{}] {
	return enqueue(s.b, s.b.api.usersDelete(id), nil)
}

// BatchEntries is the batched variant of Entries
type BatchEntries struct {
	b  *Batch
	ns namespace
}

// GetAll queues a getAll
func (s BatchEntries) GetAll() *Future[model.KeyValueMap] {
	return enqueue(s.b, s.b.api.entriesGetAll(s.ns), nil)
}

// Get queues a get
func (s BatchEntries) Get(key string) *Future[[]byte] {
	r, err := s.b.api.entriesGet(s.ns, key)
	return enqueue(s.b, r, err)
}

// Set queues a set
func (s BatchEntries) Set(key string, value []byte) *Future[struct{}] {
	r, err := s.b.api.entriesSet(s.ns, key, value)
	return enqueue(s.b, r, err)
}

// Delete queues a delete
func (s BatchEntries) Delete(key string) *Future[struct{}] {
	r, err := s.b.api.entriesDelete(s.ns, key)
	return enqueue(s.b, r, err)
}
