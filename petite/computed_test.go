package petite_test

import (
	"testing"

	"github.com/delaneyj/proxyparty/petite"
	"github.com/stretchr/testify/assert"
)

// should not compute until first read and memoize between changes
func TestComputedIsLazyAndMemoized(t *testing.T) {
	rs := petite.CreateReactiveSystem(failOnError(t))
	state := rs.Reactive(map[string]any{"n": 2}).(*petite.Reactive)

	computes := 0
	doubled := petite.Computed(rs, func(oldValue int) int {
		computes++
		return state.GetInt("n") * 2
	})
	assert.Equal(t, 0, computes)

	assert.Equal(t, 4, doubled.Value())
	assert.Equal(t, 4, doubled.Value())
	assert.Equal(t, 4, doubled.Value())
	assert.Equal(t, 1, computes)

	// a dependency write marks it stale but does not recompute
	state.Set("n", 5)
	rs.FlushEffects()
	assert.Equal(t, 1, computes)

	assert.Equal(t, 10, doubled.Value())
	assert.Equal(t, 1+1, computes)
}

// should chain computeds and recompute each layer at most once per read
func TestComputedChain(t *testing.T) {
	rs := petite.CreateReactiveSystem(failOnError(t))
	state := rs.Reactive(map[string]any{"n": 1}).(*petite.Reactive)

	doubles, quads := 0, 0
	doubled := petite.Computed(rs, func(oldValue int) int {
		doubles++
		return state.GetInt("n") * 2
	})
	quadrupled := petite.Computed(rs, func(oldValue int) int {
		quads++
		return doubled.Value() * 2
	})

	assert.Equal(t, 4, quadrupled.Value())
	assert.Equal(t, 1, doubles)
	assert.Equal(t, 1, quads)

	state.Set("n", 3)
	rs.FlushEffects()
	assert.Equal(t, 12, quadrupled.Value())
	assert.Equal(t, 2, doubles)
	assert.Equal(t, 2, quads)
}

// should notify effects that read it when a dependency changes
func TestComputedNotifiesReaders(t *testing.T) {
	rs := petite.CreateReactiveSystem(failOnError(t))
	state := rs.Reactive(map[string]any{"first": "Ada", "last": "Lovelace"}).(*petite.Reactive)

	fullName := petite.Computed(rs, func(oldValue string) string {
		return state.GetString("first") + " " + state.GetString("last")
	})

	var seen string
	runs := 0
	rs.Effect(func() error {
		seen = fullName.Value()
		runs++
		return nil
	})
	assert.Equal(t, "Ada Lovelace", seen)

	state.Set("first", "Augusta")
	rs.FlushEffects()
	assert.Equal(t, 2, runs)
	assert.Equal(t, "Augusta Lovelace", seen)
}

// should stay stale after a panicking getter and retry on the next read
func TestComputedPanicLeavesStale(t *testing.T) {
	rs := petite.CreateReactiveSystem(failOnError(t))
	state := rs.Reactive(map[string]any{"bad": true, "n": 7}).(*petite.Reactive)

	computes := 0
	c := petite.Computed(rs, func(oldValue int) int {
		computes++
		if state.GetBool("bad") {
			panic("bad input")
		}
		return state.GetInt("n")
	})

	assert.PanicsWithValue(t, "bad input", func() {
		c.Value()
	})
	assert.Equal(t, 1, computes)

	state.Set("bad", false)
	assert.Equal(t, 7, c.Value())
	assert.Equal(t, 2, computes)
}

// should read without subscribing via Peek
func TestComputedPeek(t *testing.T) {
	rs := petite.CreateReactiveSystem(failOnError(t))
	state := rs.Reactive(map[string]any{"n": 1}).(*petite.Reactive)

	doubled := petite.Computed(rs, func(oldValue int) int {
		return state.GetInt("n") * 2
	})

	runs := 0
	rs.Effect(func() error {
		doubled.Peek()
		runs++
		return nil
	})
	assert.Equal(t, 1, runs)

	state.Set("n", 2)
	rs.FlushEffects()
	assert.Equal(t, 1, runs)
	assert.Equal(t, 4, doubled.Peek())
}

// should keep returning the last value after Stop
func TestComputedStop(t *testing.T) {
	rs := petite.CreateReactiveSystem(failOnError(t))
	state := rs.Reactive(map[string]any{"n": 1}).(*petite.Reactive)

	computes := 0
	doubled := petite.Computed(rs, func(oldValue int) int {
		computes++
		return state.GetInt("n") * 2
	})
	assert.Equal(t, 2, doubled.Value())

	doubled.Stop()
	state.Set("n", 10)
	rs.FlushEffects()
	assert.Equal(t, 2, doubled.Value())
	assert.Equal(t, 1, computes)
}
