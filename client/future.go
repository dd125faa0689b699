package client

import (
	"context"
	"sync"
)

// Future is the deferred result of a batched operation. It resolves when
// the batch it belongs to is executed.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(v T, err error) {
	f.once.Do(
		func() {
			f.value = v
			f.err = err
			close(f.done)
		},
	)
}

// Done is closed once the Future is resolved
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the Future is resolved or ctx is done
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
