// Package petite is a fine-grained reactivity engine: reactive containers
// that record which effects read which (target, key) pairs, and a batched
// scheduler that re-runs those effects when the pairs are written.
//
// All state lives in a ReactiveSystem so independent graphs (and tests) stay
// isolated from each other.
package petite

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	mapset "github.com/deckarep/golang-set/v2"
)

// MaxTriggersPerCycle bounds how many times a single effect may be selected
// for triggering while the queue settles. Past the ceiling the effect is
// excluded from the current settle and reported through OnErrorFunc.
const MaxTriggersPerCycle = 100

// OnErrorFunc receives errors returned by effect bodies and loop-detected
// diagnostics. It is invoked synchronously on the goroutine running the
// effect; the rest of the batch keeps running.
type OnErrorFunc func(from *Effect, err error)

// Property keys are interned to xxhash ids so bucket lookups never hash the
// full string twice.
func internKey(key string) uint64 { return xxhash.Sum64String(key) }

// Synthetic keys are interned from a NUL-prefixed namespace so a user key
// spelled like them ("$iterate" in a map, say) lands in its own bucket.
func internSyntheticKey(key string) uint64 { return xxhash.Sum64String("\x00" + key) }

var (
	keyLength  = internSyntheticKey("$length")
	keyIterate = internSyntheticKey("$iterate")
	keyValue   = internSyntheticKey("value")
)

// bucket is the set of effects whose most recent run read one (target, key)
// pair. Buckets are created lazily and never compacted; an empty bucket is
// harmless.
type bucket struct {
	key     string
	effects mapset.Set[*Effect]
}

// globalIDCounter hands out ids for effects, monotonically, never reused.
var globalIDCounter uint64

func nextID() uint64 {
	return atomic.AddUint64(&globalIDCounter, 1)
}

// ReactiveSystem owns the dependency graph, the active-effect stack and the
// pending queue for one reactive world.
//
// The engine is logically single-threaded: bookkeeping happens synchronously
// on the calling goroutine and effect bodies run one at a time. A
// goroutine-aware guard serializes callers on other goroutines while letting
// effect bodies re-enter the public API.
type ReactiveSystem struct {
	mu        sync.Mutex
	lockOwner atomic.Uint64

	onError OnErrorFunc

	activeStack []*Effect
	pauseDepth  int
	batchDepth  int

	buckets  map[any]map[uint64]*bucket
	wrappers map[uintptr]any

	queue    []*Effect
	queued   mapset.Set[*Effect]
	seen     mapset.Set[*Effect]
	flushing bool

	autoFlush bool
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type SystemOption func(*ReactiveSystem)

// WithAutoFlush starts a drainer goroutine that flushes the queue whenever
// triggers arrive outside a batch, standing in for the microtask boundary a
// browser engine gets for free. Call Close to stop the drainer.
func WithAutoFlush() SystemOption {
	return func(rs *ReactiveSystem) {
		rs.autoFlush = true
	}
}

func CreateReactiveSystem(onError OnErrorFunc, opts ...SystemOption) *ReactiveSystem {
	rs := &ReactiveSystem{
		onError:  onError,
		buckets:  map[any]map[uint64]*bucket{},
		wrappers: map[uintptr]any{},
		queued:   mapset.NewSet[*Effect](),
		seen:     mapset.NewSet[*Effect](),
	}
	for _, opt := range opts {
		opt(rs)
	}
	if rs.autoFlush {
		rs.wake = make(chan struct{}, 1)
		rs.done = make(chan struct{})
		go rs.drain()
	}
	return rs
}

// Close stops the auto-flush drainer, if one was started. The system itself
// stays usable for explicit flushing.
func (rs *ReactiveSystem) Close() {
	rs.closeOnce.Do(func() {
		if rs.done != nil {
			close(rs.done)
		}
	})
}

func (rs *ReactiveSystem) drain() {
	for {
		select {
		case <-rs.done:
			return
		case <-rs.wake:
			rs.FlushEffects()
		}
	}
}

// goroutineID parses the current goroutine's id out of its stack header.
// Implementation detail of the re-entrancy guard, nothing more.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		c := buf[i]
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}

// acquire takes the system lock unless the current goroutine already holds
// it, which happens whenever an effect body calls back into the public API.
func (rs *ReactiveSystem) acquire() (nested bool) {
	gid := goroutineID()
	if rs.lockOwner.Load() == gid {
		return true
	}
	rs.mu.Lock()
	rs.lockOwner.Store(gid)
	return false
}

func (rs *ReactiveSystem) release(nested bool) {
	if nested {
		return
	}
	rs.lockOwner.Store(0)
	rs.mu.Unlock()
}

// Track records that the currently-active effect reads (target, key).
// No-op when no effect is running or tracking is paused. Exported for
// callers building custom reactive containers on the raw graph.
func (rs *ReactiveSystem) Track(target any, key string) {
	nested := rs.acquire()
	defer rs.release(nested)
	rs.track(target, key, internKey(key))
}

func (rs *ReactiveSystem) track(target any, key string, ikey uint64) {
	if rs.pauseDepth > 0 || len(rs.activeStack) == 0 {
		return
	}
	e := rs.activeStack[len(rs.activeStack)-1]
	keys := rs.buckets[target]
	if keys == nil {
		keys = map[uint64]*bucket{}
		rs.buckets[target] = keys
	}
	b := keys[ikey]
	if b == nil {
		b = &bucket{key: key, effects: mapset.NewSet[*Effect]()}
		keys[ikey] = b
	}
	// Add reports insertion, so an effect subscribes at most once per run
	// no matter how often it reads the same key.
	if b.effects.Add(e) {
		e.deps = append(e.deps, b)
	}
}

// Trigger enqueues every effect subscribed to (target, key), except the one
// currently running.
func (rs *ReactiveSystem) Trigger(target any, key string) {
	nested := rs.acquire()
	defer rs.release(nested)
	rs.trigger(target, internKey(key))
}

// TriggerAll enqueues the subscribers of every key of target. Used after
// mutations that may have moved state under any number of keys, such as the
// structural list methods.
func (rs *ReactiveSystem) TriggerAll(target any) {
	nested := rs.acquire()
	defer rs.release(nested)
	rs.triggerAll(target)
}

func (rs *ReactiveSystem) trigger(target any, ikey uint64) {
	keys := rs.buckets[target]
	if keys == nil {
		return
	}
	if b := keys[ikey]; b != nil {
		rs.enqueueBucket(b)
	}
}

func (rs *ReactiveSystem) triggerAll(target any) {
	for _, b := range rs.buckets[target] {
		rs.enqueueBucket(b)
	}
}

func (rs *ReactiveSystem) enqueueBucket(b *bucket) {
	var active *Effect
	if n := len(rs.activeStack); n > 0 {
		active = rs.activeStack[n-1]
	}
	b.effects.Each(func(e *Effect) bool {
		// An effect writing a key it also reads must not re-trigger
		// itself synchronously. Loops through two or more effects are
		// the scheduler's trigger-counter's problem.
		if e != active {
			rs.queueEffect(e, b.key)
		}
		return false
	})
}

// PauseTracking disables dependency recording until ResumeTracking. Pauses
// nest.
func (rs *ReactiveSystem) PauseTracking() {
	nested := rs.acquire()
	defer rs.release(nested)
	rs.pauseDepth++
}

func (rs *ReactiveSystem) ResumeTracking() {
	nested := rs.acquire()
	defer rs.release(nested)
	if rs.pauseDepth > 0 {
		rs.pauseDepth--
	}
}

// Untrack runs fn with tracking paused, restoring it on every exit path so a
// panicking fn cannot leave the system deaf.
func (rs *ReactiveSystem) Untrack(fn func()) {
	rs.PauseTracking()
	defer rs.ResumeTracking()
	fn()
}

// Reset drops every bucket, wrapper and queued effect. Registered effects
// become inert until something re-runs them. Meant for test teardown and
// long-lived processes that rebuild their graphs wholesale.
func (rs *ReactiveSystem) Reset() {
	nested := rs.acquire()
	defer rs.release(nested)
	rs.buckets = map[any]map[uint64]*bucket{}
	rs.wrappers = map[uintptr]any{}
	rs.queue = nil
	rs.queued.Clear()
	rs.seen.Clear()
	rs.activeStack = nil
	rs.pauseDepth = 0
	rs.batchDepth = 0
}
