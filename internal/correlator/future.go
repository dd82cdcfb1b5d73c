package correlator

import (
	"context"
	"sync"
)

// Future is the read side of a pending request.
type Future[T any] interface {
	// Get blocks until the request is resolved or rejected.
	Get() (T, error)
	// Await is like Get but stops waiting when ctx is done. The request
	// itself stays pending until it resolves or times out.
	Await(context.Context) (T, error)
	// Done is closed once a result is available.
	Done() <-chan struct{}
}

// Promise is the write side of a pending request. Only the first call wins.
type Promise[T any] interface {
	Complete(T)
	Error(error)
}

// CompletableFuture combines both sides.
type CompletableFuture[T any] interface {
	Future[T]
	Promise[T]
}

type future[T any] struct {
	done   chan struct{}
	once   sync.Once
	result T
	err    error
}

// NewFuture returns an unresolved future.
func NewFuture[T any]() CompletableFuture[T] {
	return &future[T]{done: make(chan struct{})}
}

// Failed returns a future already rejected with err.
func Failed[T any](err error) Future[T] {
	f := NewFuture[T]()
	f.Error(err)
	return f
}

func (f *future[T]) Get() (T, error) {
	<-f.done
	return f.result, f.err
}

func (f *future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *future[T]) Done() <-chan struct{} {
	return f.done
}

func (f *future[T]) Complete(value T) {
	f.once.Do(func() {
		f.result = value
		close(f.done)
	})
}

func (f *future[T]) Error(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}
