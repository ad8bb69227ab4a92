package petite

import (
	"reflect"
	"sort"
)

// reactiveMarker is the "already reactive" brand. Only types in this package
// implement it.
type reactiveMarker interface{ isReactive() }

// IsReactive reports whether v is one of this package's reactive wrappers.
func IsReactive(v any) bool {
	_, ok := v.(reactiveMarker)
	return ok
}

type wrapHooks struct {
	onSet    func(key string, newValue, oldValue any)
	onDelete func(key string)
}

type ReactiveOption func(*wrapHooks)

// OnSet installs a hook that runs after a changed write has triggered its
// dependents.
func OnSet(fn func(key string, newValue, oldValue any)) ReactiveOption {
	return func(h *wrapHooks) { h.onSet = fn }
}

// OnDelete installs a hook that runs after an existing key was deleted.
func OnDelete(fn func(key string)) ReactiveOption {
	return func(h *wrapHooks) { h.onDelete = fn }
}

// Reactive is an observable object: a map whose reads register dependencies
// with the running effect and whose writes trigger the scheduler.
type Reactive struct {
	rs     *ReactiveSystem
	values map[string]any
	hooks  wrapHooks
}

func (r *Reactive) isReactive() {}

// Reactive wraps target. Plain map[string]any becomes a *Reactive, []any
// becomes a *List, everything else is returned unchanged since there is
// nothing to intercept on a primitive or an opaque struct. Wrapping is
// idempotent and identity-stable: an already-wrapped value comes back as
// itself and the same raw map or slice always yields the same wrapper.
func (rs *ReactiveSystem) Reactive(target any, opts ...ReactiveOption) any {
	nested := rs.acquire()
	defer rs.release(nested)
	return rs.wrap(target, opts...)
}

func (rs *ReactiveSystem) wrap(target any, opts ...ReactiveOption) any {
	switch t := target.(type) {
	case nil:
		return nil
	case reactiveMarker:
		return t
	case map[string]any:
		ptr := reflect.ValueOf(t).Pointer()
		if w, ok := rs.wrappers[ptr]; ok {
			return w
		}
		r := &Reactive{rs: rs, values: t}
		for _, opt := range opts {
			opt(&r.hooks)
		}
		rs.wrappers[ptr] = r
		return r
	case []any:
		var ptr uintptr
		if cap(t) > 0 {
			ptr = reflect.ValueOf(t).Pointer()
		}
		if ptr != 0 {
			if w, ok := rs.wrappers[ptr]; ok {
				return w
			}
		}
		l := &List{rs: rs, values: t}
		for _, opt := range opts {
			opt(&l.hooks)
		}
		if ptr != 0 {
			rs.wrappers[ptr] = l
		}
		return l
	default:
		return target
	}
}

// wrapNested applies read-time deep reactivity: plain maps and slices are
// wrapped on first read and the wrapper cached back in place, so later reads
// see the same instance.
func wrapNested(rs *ReactiveSystem, v any) (wrapped any, replaced bool) {
	switch v.(type) {
	case map[string]any, []any:
		return rs.wrap(v), true
	default:
		return v, false
	}
}

// Get tracks and returns the value under key, wrapping nested plain
// maps/slices on the way out. Missing keys read as nil.
func (r *Reactive) Get(key string) any {
	nested := r.rs.acquire()
	defer r.rs.release(nested)
	r.rs.track(r, key, internKey(key))
	v := r.values[key]
	if w, replaced := wrapNested(r.rs, v); replaced {
		r.values[key] = w
		return w
	}
	return v
}

// Peek reads without registering a dependency and without wrapping.
func (r *Reactive) Peek(key string) any {
	nested := r.rs.acquire()
	defer r.rs.release(nested)
	return r.values[key]
}

// Set writes value under key. Writing an unchanged value is a no-op; a
// changed write triggers the key's dependents and then the OnSet hook.
// Creating a new key additionally wakes enumeration dependents.
func (r *Reactive) Set(key string, value any) {
	nested := r.rs.acquire()
	defer r.rs.release(nested)
	old, existed := r.values[key]
	if existed && sameValue(old, value) {
		return
	}
	r.values[key] = value
	r.rs.trigger(r, internKey(key))
	if !existed {
		r.rs.trigger(r, keyIterate)
	}
	if r.hooks.onSet != nil {
		r.hooks.onSet(key, value, old)
	}
}

// Delete removes key. Deleting an absent key triggers nothing.
func (r *Reactive) Delete(key string) {
	nested := r.rs.acquire()
	defer r.rs.release(nested)
	if _, existed := r.values[key]; !existed {
		return
	}
	delete(r.values, key)
	r.rs.trigger(r, internKey(key))
	r.rs.trigger(r, keyIterate)
	if r.hooks.onDelete != nil {
		r.hooks.onDelete(key)
	}
}

// Has tracks key and reports whether it exists.
func (r *Reactive) Has(key string) bool {
	nested := r.rs.acquire()
	defer r.rs.release(nested)
	r.rs.track(r, key, internKey(key))
	_, ok := r.values[key]
	return ok
}

// Keys tracks enumeration and returns the keys, sorted for determinism.
func (r *Reactive) Keys() []string {
	nested := r.rs.acquire()
	defer r.rs.release(nested)
	r.rs.track(r, "$iterate", keyIterate)
	keys := make([]string, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len tracks enumeration and returns the number of keys.
func (r *Reactive) Len() int {
	nested := r.rs.acquire()
	defer r.rs.release(nested)
	r.rs.track(r, "$iterate", keyIterate)
	return len(r.values)
}

// Typed getters for the common cases; a missing key or a value of another
// type reads as the zero value.

func (r *Reactive) GetString(key string) string {
	v, _ := r.Get(key).(string)
	return v
}

func (r *Reactive) GetInt(key string) int {
	v, _ := r.Get(key).(int)
	return v
}

func (r *Reactive) GetFloat(key string) float64 {
	v, _ := r.Get(key).(float64)
	return v
}

func (r *Reactive) GetBool(key string) bool {
	v, _ := r.Get(key).(bool)
	return v
}

func (r *Reactive) GetMap(key string) *Reactive {
	v, _ := r.Get(key).(*Reactive)
	return v
}

func (r *Reactive) GetList(key string) *List {
	v, _ := r.Get(key).(*List)
	return v
}

// sameValue is the write short-circuit: primitives compare by value,
// reference types by identity. Structurally identical but distinct maps are
// different values, matching reference-equality semantics; a NaN never
// equals itself, so NaN rewrites trigger.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return ra.Pointer() == rb.Pointer()
	}
	if !ra.Comparable() {
		return false
	}
	return ra.Equal(rb)
}
