package petite

import "errors"

// ErrLoopDetected is reported through the system's OnErrorFunc when an
// effect keeps re-triggering itself through a chain of other effects within
// a single settle of the queue.
var ErrLoopDetected = errors.New("petite: effect loop detected")

// ErrFn is an effect body. A returned error is routed to the system's
// OnErrorFunc; it does not stop the rest of the batch.
type ErrFn func() error

// Effect is a registered reactive computation. Every run discards the
// previous dependency set and records a fresh one from the reads the body
// performs, so conditional branches subscribe and unsubscribe on their own.
type Effect struct {
	rs *ReactiveSystem
	fn ErrFn
	id uint64

	deps []*bucket

	lazy      bool
	computed  bool
	scheduler func()

	cycleTriggers int
	loopNotified  bool
	disposed      bool
}

type EffectOption func(*Effect)

// Lazy registers the effect without running it. Call Run to execute it and
// establish its first dependency set.
func Lazy() EffectOption {
	return func(e *Effect) { e.lazy = true }
}

// AsComputed marks the effect as a derived-value producer. Computed-flagged
// effects run before plain effects within a flush cycle so derived state is
// fresh by the time plain effects read it.
func AsComputed() EffectOption {
	return func(e *Effect) { e.computed = true }
}

// WithScheduler delegates triggered execution to fn instead of running the
// body. The body still runs via Run. Computed values use this to flip a
// dirty flag rather than recompute eagerly.
func WithScheduler(fn func()) EffectOption {
	return func(e *Effect) { e.scheduler = fn }
}

// Effect registers fn and, unless lazy, runs it once immediately so its
// dependency set exists from the start. Effects registered inside another
// effect's body work; the active-effect stack keeps read attribution
// straight.
func (rs *ReactiveSystem) Effect(fn ErrFn, opts ...EffectOption) *Effect {
	nested := rs.acquire()
	defer rs.release(nested)
	e := &Effect{rs: rs, fn: fn, id: nextID()}
	for _, opt := range opts {
		opt(e)
	}
	if !e.lazy {
		e.run()
	}
	return e
}

// ID returns the effect's unique id. Useful in OnErrorFunc diagnostics.
func (e *Effect) ID() uint64 { return e.id }

// Run executes the body on demand, re-recording dependencies. The usual
// caller is a lazy effect's owner; triggered effects run via the flush.
func (e *Effect) Run() {
	nested := e.rs.acquire()
	defer e.rs.release(nested)
	e.run()
}

// Stop detaches the effect from every bucket permanently. Only a run
// re-subscribes an effect, and a stopped effect never runs again, so
// subsequent triggers are no-ops.
func (e *Effect) Stop() {
	nested := e.rs.acquire()
	defer e.rs.release(nested)
	if e.disposed {
		return
	}
	e.disposed = true
	e.detach()
}

func (e *Effect) detach() {
	for _, b := range e.deps {
		b.effects.Remove(e)
	}
	e.deps = e.deps[:0]
}

func (e *Effect) run() {
	if e.disposed {
		return
	}
	rs := e.rs
	e.detach()
	rs.activeStack = append(rs.activeStack, e)
	defer func() {
		rs.activeStack = rs.activeStack[:len(rs.activeStack)-1]
	}()
	if err := e.fn(); err != nil && rs.onError != nil {
		rs.onError(e, err)
	}
}
