// Package cache implements C3: a content-addressed store of recent
// download responses, plus coalescing of in-flight duplicate requests.
// It is the only mechanism preventing duplicate translation-server calls
// for URLs discovered concurrently by different crawlers.
package cache

import (
	"sync"

	"github.com/ubtue/ztsharvest/internal/descriptor"
	"github.com/ubtue/ztsharvest/pkg/tasklet"
)

// ResponseCache is a multimap from (url, operation) to the cached
// download body. Callers always receive a copy, never the original body
// slice, so mutation by one consumer cannot affect another.
//
// In-flight coalescing (§4.3's "fingerprint of in-flight work") is done
// by hand via inFlight/StartOrJoin rather than golang.org/x/sync/singleflight:
// singleflight.Do executes the caller's closure synchronously and blocks
// every duplicate caller on that one goroutine, but the scheduler needs
// StartOrJoin to hand back a Future immediately and run the task on its
// own worker goroutine. Forcing that shape through Do would mean wrapping
// the worker dispatch in the closure anyway, which buys nothing over the
// explicit Task/Future pair tasklet already provides.
type ResponseCache struct {
	mu      sync.RWMutex
	entries map[descriptor.CacheKey]descriptor.CachedDownloadData

	// inFlight tracks the Task backing each key currently being
	// computed, so newly arriving callers can Join() it directly.
	mu2      sync.Mutex
	inFlight map[descriptor.CacheKey]*tasklet.Task
}

func NewResponseCache() *ResponseCache {
	return &ResponseCache{
		entries:  make(map[descriptor.CacheKey]descriptor.CachedDownloadData),
		inFlight: make(map[descriptor.CacheKey]*tasklet.Task),
	}
}

// Lookup returns a copy of the cached body for (url, op), if present.
func (c *ResponseCache) Lookup(key descriptor.CacheKey) (descriptor.CachedDownloadData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return descriptor.CachedDownloadData{}, false
	}
	body := make([]byte, len(entry.Body))
	copy(body, entry.Body)
	entry.Body = body
	return entry, true
}

// Insert adds an entry, idempotently: on key collision with a differing
// body the original is kept and the caller is told so it can log a
// warning, matching §3's CachedDownloadData multiplicity rule.
func (c *ResponseCache) Insert(key descriptor.CacheKey, data descriptor.CachedDownloadData) (kept descriptor.CachedDownloadData, collided bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		if string(existing.Body) != string(data.Body) {
			return existing, true
		}
		return existing, false
	}
	c.entries[key] = data
	return data, false
}

// StartOrJoin is the enqueue-time coalescing choke point described in
// §4.8: if work for key is already in flight, the caller gets a future
// attached to that task (started=false); otherwise a new task is
// registered and the caller becomes responsible for running it and
// calling Finish.
func (c *ResponseCache) StartOrJoin(key descriptor.CacheKey) (task *tasklet.Task, future *tasklet.Future, started bool) {
	c.mu2.Lock()
	defer c.mu2.Unlock()

	if existing, ok := c.inFlight[key]; ok {
		return existing, existing.Join(), false
	}

	task, future = tasklet.NewTask(key)
	c.inFlight[key] = task
	return task, future, true
}

// Reap removes key from the in-flight registry once its task has
// completed, per the dispatch loop's step 4.
func (c *ResponseCache) Reap(key descriptor.CacheKey) {
	c.mu2.Lock()
	defer c.mu2.Unlock()
	delete(c.inFlight, key)
}
