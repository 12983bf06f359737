// Package tasklet implements the task/future pair spec.md §9 calls for:
// each asynchronous download or translation call is a task that owns the
// computation, and a future that holds a shared handle to its eventual
// result. Multiple futures may point at one task, which is how C3's
// in-flight coalescing is expressed.
package tasklet

import (
	"sync"

	"github.com/ubtue/ztsharvest/internal/descriptor"
	"github.com/ubtue/ztsharvest/pkg/failure"
)

// Future is a read-only handle to a tasklet's eventual result. Futures
// attached to one Task via Task.Join all observe the same underlying value once Complete
// has been called, satisfying the coalescing invariant that concurrent
// requests for the same (url, op) see identical bodies.
type Future struct {
	done   chan struct{}
	once   sync.Once
	result descriptor.DownloadResult
	err    failure.ClassifiedError
}

// NewFuture returns an incomplete future ready to be handed to a worker.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Completed returns a future that is already resolved, used for cache
// hits and already-delivered short-circuits that never touch a worker.
func Completed(result descriptor.DownloadResult, err failure.ClassifiedError) *Future {
	f := NewFuture()
	f.Complete(result, err)
	return f
}

// Complete resolves the future exactly once; later calls are no-ops, so a
// task that races a cancellation can never corrupt an already-delivered
// result.
func (f *Future) Complete(result descriptor.DownloadResult, err failure.ClassifiedError) {
	f.once.Do(func() {
		f.result = result
		f.err = err
		close(f.done)
	})
}

// Wait blocks until the future resolves and returns its value.
func (f *Future) Wait() (descriptor.DownloadResult, failure.ClassifiedError) {
	<-f.done
	return f.result, f.err
}

// Done exposes the resolution channel for select-based waiting (e.g.
// against a context's Done channel).
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Task is one in-flight unit of work: the cache key it computes a
// download result for, and the set of futures coalesced onto it.
type Task struct {
	mu      sync.Mutex
	Key     descriptor.CacheKey
	futures []*Future
}

// NewTask creates a task for the given cache key with its first future
// already attached.
func NewTask(key descriptor.CacheKey) (*Task, *Future) {
	f := NewFuture()
	return &Task{Key: key, futures: []*Future{f}}, f
}

// Join attaches another future to this task, for a caller whose request
// coalesced with work already in flight.
func (t *Task) Join() *Future {
	t.mu.Lock()
	defer t.mu.Unlock()
	f := NewFuture()
	t.futures = append(t.futures, f)
	return f
}

// Finish resolves every attached future with the same result, so all
// coalesced callers observe an identical DownloadResult value.
func (t *Task) Finish(result descriptor.DownloadResult, err failure.ClassifiedError) {
	t.mu.Lock()
	futures := append([]*Future(nil), t.futures...)
	t.mu.Unlock()
	for _, f := range futures {
		f.Complete(result, err)
	}
}
