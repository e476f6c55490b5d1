package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/Amund211/lantern/internal/logging"
)

// Callback receives the outcome of a fetch. Both values are opaque to the
// registry and are delivered to every waiter as-is.
type Callback[T any] func(err error, data T)

// FetchFunc performs the work for one cycle of a scheduled fetch.
// Implementations must call done exactly once when the work completes.
type FetchFunc[T any] func(done func(err error, data T))

// Result is a completed fetch outcome as stored in the cache.
type Result[T any] struct {
	Data T
	Err  error
}

// Retention controls what happens to a result passed to CompleteFetch.
type Retention struct {
	store bool
	ttl   time.Duration
}

// Discard drops the result once all waiters have been notified.
var Discard = Retention{}

// RetainFor keeps the result available for ttl. A non-positive ttl keeps it
// until it is replaced by a later completion.
func RetainFor(ttl time.Duration) Retention {
	return Retention{store: true, ttl: ttl}
}

// RetainIndefinitely keeps the result until it is replaced by a later
// completion.
func RetainIndefinitely() Retention {
	return Retention{store: true}
}

// Timer is a cancellable pending timer. Stop reports whether the timer was
// stopped before firing.
type Timer interface {
	Stop() bool
}

// AfterFunc arms a timer that calls f after d. Injected for tests.
type AfterFunc func(d time.Duration, f func()) Timer

func systemAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type refetchConfig[T any] struct {
	interval time.Duration
	fetch    FetchFunc[T]
}

type record[T any] struct {
	// Pending callbacks for the in-flight fetch, in registration order.
	// Nonempty exactly while a fetch is in flight.
	waiters []Callback[T]

	cached    *Result[T]
	expiresAt time.Time // zero means retained indefinitely
	// cacheGen invalidates expiration timers that lost a race with a
	// replacement or an explicit clear.
	cacheGen    uint64
	expireTimer Timer

	refetch      *refetchConfig[T]
	refetchTimer Timer
}

// Registry coalesces fetches per key: at most one fetch is in flight per key,
// every interested party registered while it is pending is notified of the
// result, and results may be retained for a bounded time.
//
// Registry is safe for concurrent use. Callbacks are always invoked
// asynchronously on a single dispatch goroutine, in registration order.
type Registry[T any] struct {
	mu      sync.Mutex
	records map[string]*record[T]

	dispatch  *dispatcher
	nowFunc   func() time.Time
	afterFunc AfterFunc
}

func New[T any]() *Registry[T] {
	return NewWithClock[T](time.Now, systemAfterFunc)
}

func NewWithClock[T any](nowFunc func() time.Time, afterFunc AfterFunc) *Registry[T] {
	return &Registry[T]{
		records:   make(map[string]*record[T]),
		dispatch:  newDispatcher(),
		nowFunc:   nowFunc,
		afterFunc: afterFunc,
	}
}

// Close stops the dispatch goroutine after delivering already queued
// callbacks, and cancels all pending timers.
func (r *Registry[T]) Close() {
	r.mu.Lock()
	for key, rec := range r.records {
		if rec.expireTimer != nil {
			rec.expireTimer.Stop()
		}
		if rec.refetchTimer != nil {
			rec.refetchTimer.Stop()
		}
		delete(r.records, key)
	}
	r.mu.Unlock()

	r.dispatch.close()
}

// RegisterInterest expresses interest in the result for key.
//
// It returns true if the caller will be notified without fetching: either a
// live cached result exists (delivered asynchronously to callback), or a
// fetch is already in flight and callback has joined its waiter list.
//
// It returns false if the caller has become the fetch owner and must call
// CompleteFetch for key exactly once.
//
// forceUpdate bypasses the cached-result short-circuit, but not in-flight
// coalescing: a forcing caller only becomes the fetch owner if no fetch is
// currently in flight.
func (r *Registry[T]) RegisterInterest(key string, callback Callback[T], forceUpdate bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.registerLocked(key, callback, forceUpdate)
}

func (r *Registry[T]) registerLocked(key string, callback Callback[T], forceUpdate bool) bool {
	rec := r.records[key]

	if !forceUpdate && rec != nil {
		if res, ok := r.liveCachedLocked(key, rec); ok {
			logging.Debug(fmt.Sprintf("registry: serving cached result for %q", key))
			r.dispatch.enqueue(func() {
				callback(res.Err, res.Data)
			})
			return true
		}
		// The read may have pruned an expired record
		rec = r.records[key]
	}

	if rec != nil && len(rec.waiters) > 0 {
		rec.waiters = append(rec.waiters, callback)
		return true
	}

	if rec == nil {
		rec = &record[T]{}
		r.records[key] = rec
	}
	rec.waiters = []Callback[T]{callback}
	return false
}

// CompleteFetch delivers the outcome of the in-flight fetch for key to every
// registered waiter, in registration order, and applies the retention policy
// to the result.
//
// It panics if no waiters are registered for key: that means the caller
// completed a fetch it never owned, or completed it twice.
func (r *Registry[T]) CompleteFetch(key string, err error, data T, retention Retention) {
	r.mu.Lock()

	rec := r.records[key]
	if rec == nil || len(rec.waiters) == 0 {
		r.mu.Unlock()
		msg := fmt.Sprintf("registry: CompleteFetch(%q): no registered waiters", key)
		logging.Error(msg)
		panic(msg)
	}

	waiters := rec.waiters
	rec.waiters = nil

	if rec.refetch != nil {
		r.armRefetchLocked(key, rec)
	}

	if retention.store {
		r.storeLocked(key, rec, Result[T]{Data: data, Err: err}, retention.ttl)
	} else {
		r.pruneLocked(key, rec)
	}
	r.mu.Unlock()

	logging.Debug(fmt.Sprintf("registry: completing fetch for %q with %d waiter(s)", key, len(waiters)))
	for _, callback := range waiters {
		callback := callback
		r.dispatch.enqueue(func() {
			callback(err, data)
		})
	}
}

// SizeOfWaiters returns the number of callbacks queued for the in-flight
// fetch for key, or 0 if none.
func (r *Registry[T]) SizeOfWaiters(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.records[key]
	if rec == nil {
		return 0
	}
	return len(rec.waiters)
}

// CachedDataFor returns the live cached result for key. A result found to be
// expired at read time is cleared immediately, so expiration is idempotent
// whether driven by the timer or by a late read.
func (r *Registry[T]) CachedDataFor(key string) (Result[T], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.records[key]
	if rec == nil {
		return Result[T]{}, false
	}
	return r.liveCachedLocked(key, rec)
}

// IsPending reports whether a caller can expect an answer for key without
// fetching: a result is cached, or one is on the way.
func (r *Registry[T]) IsPending(key string) bool {
	if _, ok := r.CachedDataFor(key); ok {
		return true
	}
	return r.SizeOfWaiters(key) > 0
}

// ScheduleFetch establishes a recurring background refresh for key: fetch is
// invoked immediately and then again each interval after the previous cycle
// completed. Each cycle's result is retained indefinitely, replacing the
// previous one. The cycle continues until CancelScheduleFetch.
//
// It returns false, with no side effects, if a fetch is currently in flight
// for key.
func (r *Registry[T]) ScheduleFetch(key string, interval time.Duration, fetch FetchFunc[T]) bool {
	rf := &refetchConfig[T]{interval: interval, fetch: fetch}

	r.mu.Lock()
	rec := r.records[key]
	if rec != nil && len(rec.waiters) > 0 {
		r.mu.Unlock()
		return false
	}

	r.startCycleLocked(key, rf)

	rec = r.records[key]
	rec.refetch = rf
	r.mu.Unlock()

	logging.Info(fmt.Sprintf("registry: scheduled fetch for %q every %s", key, interval))
	r.runCycle(key, rf)
	return true
}

// startCycleLocked takes fetch ownership for a scheduled cycle with a no-op
// waiter, bypassing any cached result.
func (r *Registry[T]) startCycleLocked(key string, rf *refetchConfig[T]) {
	if r.registerLocked(key, func(error, T) {}, true) {
		// We verified no fetch was in flight while holding the lock, so
		// registration must grant ownership.
		msg := fmt.Sprintf("registry: ScheduleFetch(%q): fetch in flight after checking for one", key)
		logging.Error(msg)
		panic(msg)
	}
}

func (r *Registry[T]) runCycle(key string, rf *refetchConfig[T]) {
	rf.fetch(func(err error, data T) {
		r.CompleteFetch(key, err, data, RetainIndefinitely())
	})
}

// armRefetchLocked arms the timer for the next scheduled cycle. Called from
// CompleteFetch, so the cycle re-arms whether the completed fetch was the
// scheduled one or a forced fetch that preempted it.
func (r *Registry[T]) armRefetchLocked(key string, rec *record[T]) {
	rf := rec.refetch
	if rec.refetchTimer != nil {
		rec.refetchTimer.Stop()
	}
	rec.refetchTimer = r.afterFunc(rf.interval, func() {
		r.refetchCycle(key, rf)
	})
}

func (r *Registry[T]) refetchCycle(key string, rf *refetchConfig[T]) {
	r.mu.Lock()
	rec := r.records[key]
	if rec == nil || rec.refetch != rf {
		// Cancelled or replaced after the timer fired
		r.mu.Unlock()
		return
	}
	if len(rec.waiters) > 0 {
		// A forced fetch is in flight. Its completion re-arms the cycle.
		logging.Debug(fmt.Sprintf("registry: skipping scheduled fetch for %q: fetch in flight", key))
		r.mu.Unlock()
		return
	}

	r.startCycleLocked(key, rf)
	rec.refetchTimer = nil
	r.mu.Unlock()

	r.runCycle(key, rf)
}

// CancelScheduleFetch stops the recurring refresh for key and removes the
// key's record, discarding any cached result.
//
// It returns false if a fetch is currently in flight for key; cancellation
// must wait for it to complete. Cancelling a key with nothing scheduled is
// silent success and leaves any cached result untouched.
func (r *Registry[T]) CancelScheduleFetch(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.records[key]
	if rec == nil {
		return true
	}
	if len(rec.waiters) > 0 {
		return false
	}
	if rec.refetch == nil {
		// Nothing scheduled for this key, only a cached result
		return true
	}

	if rec.refetchTimer != nil {
		rec.refetchTimer.Stop()
		rec.refetchTimer = nil
	}
	if rec.expireTimer != nil {
		rec.expireTimer.Stop()
		rec.expireTimer = nil
	}
	rec.refetch = nil
	rec.cached = nil
	rec.expiresAt = time.Time{}
	rec.cacheGen++
	delete(r.records, key)

	logging.Info(fmt.Sprintf("registry: cancelled scheduled fetch for %q", key))
	return true
}

func (r *Registry[T]) liveCachedLocked(key string, rec *record[T]) (Result[T], bool) {
	if rec.cached == nil {
		return Result[T]{}, false
	}
	if rec.expiresAt.IsZero() || r.nowFunc().Before(rec.expiresAt) {
		return *rec.cached, true
	}

	// Expired, but the timer has not fired yet
	r.clearCacheLocked(key, rec)
	return Result[T]{}, false
}

func (r *Registry[T]) storeLocked(key string, rec *record[T], res Result[T], ttl time.Duration) {
	// Replacing cached data invalidates any previous expiration timer
	if rec.expireTimer != nil {
		rec.expireTimer.Stop()
		rec.expireTimer = nil
	}
	rec.cacheGen++
	rec.cached = &res

	if ttl > 0 {
		rec.expiresAt = r.nowFunc().Add(ttl)
		gen := rec.cacheGen
		rec.expireTimer = r.afterFunc(ttl, func() {
			r.expire(key, gen)
		})
	} else {
		rec.expiresAt = time.Time{}
	}
}

func (r *Registry[T]) expire(key string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.records[key]
	if rec == nil || rec.cacheGen != gen {
		// The cached result was replaced or cleared before the timer fired
		return
	}

	logging.Debug(fmt.Sprintf("registry: cached result for %q expired", key))
	rec.expireTimer = nil
	r.clearCacheLocked(key, rec)
}

func (r *Registry[T]) clearCacheLocked(key string, rec *record[T]) {
	rec.cached = nil
	rec.expiresAt = time.Time{}
	rec.cacheGen++
	if rec.expireTimer != nil {
		rec.expireTimer.Stop()
		rec.expireTimer = nil
	}
	r.pruneLocked(key, rec)
}

// pruneLocked removes the record if nothing references it anymore: no
// waiters, no live cached result and no active refetch.
func (r *Registry[T]) pruneLocked(key string, rec *record[T]) {
	if len(rec.waiters) == 0 && rec.cached == nil && rec.refetch == nil {
		delete(r.records, key)
	}
}
