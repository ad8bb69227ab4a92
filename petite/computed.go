package petite

// ReadonlySignal is a lazily memoized derived value. The getter does not run
// at construction, nor when an upstream write merely marks it stale; it runs
// on the first read and again on the first read after an invalidation.
type ReadonlySignal[T comparable] struct {
	rs     *ReactiveSystem
	getter func(oldValue T) T
	value  T
	dirty  bool
	runner *Effect
}

func (c *ReadonlySignal[T]) isReactive() {}

// Computed registers a derived value over getter. The getter receives the
// previous value and its reads are tracked like any effect body's, so the
// signal invalidates exactly when something it actually read changes.
func Computed[T comparable](rs *ReactiveSystem, getter func(oldValue T) T) *ReadonlySignal[T] {
	c := &ReadonlySignal[T]{rs: rs, getter: getter, dirty: true}
	c.runner = rs.Effect(c.recompute, Lazy(), AsComputed(), WithScheduler(c.invalidate))
	return c
}

// recompute is the runner's body. Dirty flips off only after the getter
// returns, so a panicking getter leaves the signal stale and the next read
// retries.
func (c *ReadonlySignal[T]) recompute() error {
	v := c.getter(c.value)
	c.value = v
	c.dirty = false
	return nil
}

// invalidate runs when an upstream dependency triggers. It marks the value
// stale and passes the trigger on to the signal's own dependents; the
// recompute itself waits for the next read. An already-stale signal stays
// quiet, its dependents were told the first time.
func (c *ReadonlySignal[T]) invalidate() {
	if c.dirty {
		return
	}
	c.dirty = true
	c.rs.trigger(c, keyValue)
}

// Value tracks the signal and returns its current value, recomputing first
// if a dependency changed since the last read.
func (c *ReadonlySignal[T]) Value() T {
	nested := c.rs.acquire()
	defer c.rs.release(nested)
	c.rs.track(c, "value", keyValue)
	if c.dirty {
		c.runner.run()
	}
	return c.value
}

// Peek returns the current value without registering a dependency. Stale
// signals still recompute; Peek is untracked, not uncached.
func (c *ReadonlySignal[T]) Peek() T {
	nested := c.rs.acquire()
	defer c.rs.release(nested)
	if c.dirty {
		c.runner.run()
	}
	return c.value
}

// Stop detaches the signal from its dependencies. Reads keep returning the
// last computed value.
func (c *ReadonlySignal[T]) Stop() {
	c.runner.Stop()
}
