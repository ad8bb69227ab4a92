package petite

import (
	"fmt"
	"sort"
	"strconv"
)

// List is an observable slice. Element reads subscribe to the element's
// index, Len subscribes to the synthetic length key, and Values subscribes to
// the synthetic iteration key, so a mutation wakes exactly the effects that
// could observe it.
type List struct {
	rs     *ReactiveSystem
	values []any
	hooks  wrapHooks
}

func (l *List) isReactive() {}

func indexKey(i int) (string, uint64) {
	s := strconv.Itoa(i)
	return s, internKey(s)
}

// At tracks and returns the element at i, wrapping nested plain maps/slices
// in place. Out-of-range reads return nil but still subscribe, so an effect
// probing one past the end re-runs when that slot appears.
func (l *List) At(i int) any {
	nested := l.rs.acquire()
	defer l.rs.release(nested)
	key, ikey := indexKey(i)
	l.rs.track(l, key, ikey)
	if i < 0 || i >= len(l.values) {
		return nil
	}
	v := l.values[i]
	if w, replaced := wrapNested(l.rs, v); replaced {
		l.values[i] = w
		return w
	}
	return v
}

// Peek reads the element at i without registering a dependency and without
// wrapping. Out-of-range reads return nil.
func (l *List) Peek(i int) any {
	nested := l.rs.acquire()
	defer l.rs.release(nested)
	if i < 0 || i >= len(l.values) {
		return nil
	}
	return l.values[i]
}

// SetAt writes the element at i. Writing an unchanged value is a no-op and a
// changed in-range write wakes only that index's dependents. Writing past the
// end grows the list with nils, which is a structural change, so length and
// iteration dependents wake too. Negative indices are ignored.
func (l *List) SetAt(i int, value any) {
	nested := l.rs.acquire()
	defer l.rs.release(nested)
	if i < 0 {
		return
	}
	key, ikey := indexKey(i)
	if i < len(l.values) {
		old := l.values[i]
		if sameValue(old, value) {
			return
		}
		l.values[i] = value
		l.rs.trigger(l, ikey)
		if l.hooks.onSet != nil {
			l.hooks.onSet(key, value, old)
		}
		return
	}
	for len(l.values) < i {
		l.values = append(l.values, nil)
	}
	l.values = append(l.values, value)
	l.rs.trigger(l, ikey)
	l.rs.trigger(l, keyLength)
	l.rs.trigger(l, keyIterate)
	if l.hooks.onSet != nil {
		l.hooks.onSet(key, value, nil)
	}
}

// Len tracks the length key and returns the element count.
func (l *List) Len() int {
	nested := l.rs.acquire()
	defer l.rs.release(nested)
	l.rs.track(l, "$length", keyLength)
	return len(l.values)
}

// Values tracks iteration and returns a copy of the elements, each nested
// plain map/slice wrapped in place first. Mutating the returned slice does
// not mutate the list. An in-range SetAt wakes only that index, not
// iteration readers; a reader that must see element rewrites subscribes per
// index with At.
func (l *List) Values() []any {
	nested := l.rs.acquire()
	defer l.rs.release(nested)
	l.rs.track(l, "$iterate", keyIterate)
	out := make([]any, len(l.values))
	for i, v := range l.values {
		if w, replaced := wrapNested(l.rs, v); replaced {
			l.values[i] = w
			v = w
		}
		out[i] = v
	}
	return out
}

// Push appends items and wakes every dependent of the list. Appending shifts
// what "the end" means for length and iteration observers, and index
// observers past the old end gain elements.
func (l *List) Push(items ...any) int {
	nested := l.rs.acquire()
	defer l.rs.release(nested)
	if len(items) == 0 {
		return len(l.values)
	}
	l.values = append(l.values, items...)
	l.rs.triggerAll(l)
	return len(l.values)
}

// Pop removes and returns the last element, or nil on an empty list. An
// empty-list pop triggers nothing.
func (l *List) Pop() any {
	nested := l.rs.acquire()
	defer l.rs.release(nested)
	n := len(l.values)
	if n == 0 {
		return nil
	}
	v := l.values[n-1]
	l.values = l.values[:n-1]
	l.rs.triggerAll(l)
	return v
}

// Shift removes and returns the first element, or nil on an empty list.
// Every surviving element changes index, so all dependents wake.
func (l *List) Shift() any {
	nested := l.rs.acquire()
	defer l.rs.release(nested)
	if len(l.values) == 0 {
		return nil
	}
	v := l.values[0]
	l.values = append(l.values[:0], l.values[1:]...)
	l.rs.triggerAll(l)
	return v
}

// Unshift prepends items and wakes every dependent of the list.
func (l *List) Unshift(items ...any) int {
	nested := l.rs.acquire()
	defer l.rs.release(nested)
	if len(items) == 0 {
		return len(l.values)
	}
	merged := make([]any, 0, len(items)+len(l.values))
	merged = append(merged, items...)
	merged = append(merged, l.values...)
	l.values = merged
	l.rs.triggerAll(l)
	return len(l.values)
}

// Splice removes deleteCount elements at start, inserts items in their
// place and returns the removed elements. Start is clamped to the list and
// negative counts read as zero. A splice that removes and inserts nothing
// triggers nothing.
func (l *List) Splice(start, deleteCount int, items ...any) []any {
	nested := l.rs.acquire()
	defer l.rs.release(nested)
	n := len(l.values)
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	if deleteCount < 0 {
		deleteCount = 0
	}
	if deleteCount > n-start {
		deleteCount = n - start
	}
	removed := make([]any, deleteCount)
	copy(removed, l.values[start:start+deleteCount])
	if deleteCount == 0 && len(items) == 0 {
		return removed
	}
	tail := make([]any, n-start-deleteCount)
	copy(tail, l.values[start+deleteCount:])
	l.values = append(l.values[:start], items...)
	l.values = append(l.values, tail...)
	l.rs.triggerAll(l)
	return removed
}

// Sort orders the list in place with less, or a natural ordering when less
// is nil. The raw slice is sorted directly and compared against a snapshot
// afterwards; an already-sorted list triggers nothing, and a reorder only
// wakes the indices whose element actually moved, plus iteration dependents.
func (l *List) Sort(less func(a, b any) bool) {
	nested := l.rs.acquire()
	defer l.rs.release(nested)
	if less == nil {
		less = defaultLess
	}
	before := make([]any, len(l.values))
	copy(before, l.values)
	sort.SliceStable(l.values, func(i, j int) bool {
		return less(l.values[i], l.values[j])
	})
	l.triggerMoved(before)
}

// Reverse reverses the list in place, with the same snapshot-compare
// triggering as Sort. Reversing a palindrome triggers nothing.
func (l *List) Reverse() {
	nested := l.rs.acquire()
	defer l.rs.release(nested)
	before := make([]any, len(l.values))
	copy(before, l.values)
	for i, j := 0, len(l.values)-1; i < j; i, j = i+1, j-1 {
		l.values[i], l.values[j] = l.values[j], l.values[i]
	}
	l.triggerMoved(before)
}

func (l *List) triggerMoved(before []any) {
	changed := false
	for i, old := range before {
		if sameValue(old, l.values[i]) {
			continue
		}
		changed = true
		_, ikey := indexKey(i)
		l.rs.trigger(l, ikey)
	}
	if changed {
		l.rs.trigger(l, keyIterate)
	}
}

// defaultLess orders numbers numerically, strings lexically, and everything
// else by its printed form.
func defaultLess(a, b any) bool {
	switch av := a.(type) {
	case int:
		if bv, ok := b.(int); ok {
			return av < bv
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv
		}
	case string:
		if bv, ok := b.(string); ok {
			return av < bv
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}
