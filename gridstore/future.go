package gridstore

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Executor runs submitted work.
type Executor interface {
	Go(fn func())
}

// SyncExecutor runs work on the calling goroutine. Futures it produces are
// already resolved when Submit returns.
type SyncExecutor struct{}

func (SyncExecutor) Go(fn func()) { fn() }

// PoolExecutor runs work on new goroutines, at most workers at a time.
type PoolExecutor struct {
	sem *semaphore.Weighted
}

func NewPoolExecutor(workers int) *PoolExecutor {
	if workers < 1 {
		workers = 1
	}
	return &PoolExecutor{sem: semaphore.NewWeighted(int64(workers))}
}

func (p *PoolExecutor) Go(fn func()) {
	go func() {
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		fn()
	}()
}

// Future is the pending result of a submitted operation. It resolves
// exactly once.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Submit schedules fn on exec.
func Submit[T any](exec Executor, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	exec.Go(func() {
		defer close(f.done)
		f.val, f.err = fn()
	})
	return f
}

// Go schedules fn on the session's executor.
func Go[T any](s *Session, fn func() (T, error)) *Future[T] {
	return Submit(s.exec, fn)
}

// Resolved returns a future that already holds v and err.
func Resolved[T any](v T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: v, err: err}
	close(f.done)
	return f
}

func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await blocks until the future resolves or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AwaitAll waits for every future and returns their values in order. The
// first error wins.
func AwaitAll[T any](ctx context.Context, futures ...*Future[T]) ([]T, error) {
	out := make([]T, len(futures))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range futures {
		g.Go(func() error {
			v, err := f.Await(gctx)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
