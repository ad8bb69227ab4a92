package petite_test

import (
	"errors"
	"testing"

	"github.com/delaneyj/proxyparty/petite"
	"github.com/stretchr/testify/assert"
)

func failOnError(t *testing.T) petite.OnErrorFunc {
	return func(from *petite.Effect, err error) {
		assert.FailNow(t, err.Error())
	}
}

// should run the effect once at registration
func TestEffectRunsImmediately(t *testing.T) {
	rs := petite.CreateReactiveSystem(failOnError(t))
	runs := 0
	rs.Effect(func() error {
		runs++
		return nil
	})
	assert.Equal(t, 1, runs)
}

// should not run a lazy effect until Run is called
func TestLazyEffectRunsOnDemand(t *testing.T) {
	rs := petite.CreateReactiveSystem(failOnError(t))
	state := rs.Reactive(map[string]any{"count": 1}).(*petite.Reactive)

	runs := 0
	e := rs.Effect(func() error {
		state.Get("count")
		runs++
		return nil
	}, petite.Lazy())
	assert.Equal(t, 0, runs)

	// no dependency set exists yet, so writes are inert
	state.Set("count", 2)
	rs.FlushEffects()
	assert.Equal(t, 0, runs)

	e.Run()
	assert.Equal(t, 1, runs)

	state.Set("count", 3)
	rs.FlushEffects()
	assert.Equal(t, 2, runs)
}

// should never run again after Stop
func TestStopDetachesEffect(t *testing.T) {
	rs := petite.CreateReactiveSystem(failOnError(t))
	state := rs.Reactive(map[string]any{"count": 1}).(*petite.Reactive)

	runs := 0
	e := rs.Effect(func() error {
		state.Get("count")
		runs++
		return nil
	})
	assert.Equal(t, 1, runs)

	state.Set("count", 2)
	rs.FlushEffects()
	assert.Equal(t, 2, runs)

	e.Stop()
	state.Set("count", 3)
	rs.FlushEffects()
	assert.Equal(t, 2, runs)
}

// should only depend on the branch actually taken in the last run
func TestConditionalBranchRetracking(t *testing.T) {
	rs := petite.CreateReactiveSystem(failOnError(t))
	state := rs.Reactive(map[string]any{
		"useA": true,
		"a":    "a0",
		"b":    "b0",
	}).(*petite.Reactive)

	runs := 0
	rs.Effect(func() error {
		if state.GetBool("useA") {
			state.Get("a")
		} else {
			state.Get("b")
		}
		runs++
		return nil
	})
	assert.Equal(t, 1, runs)

	state.Set("b", "b1")
	rs.FlushEffects()
	assert.Equal(t, 1, runs)

	state.Set("useA", false)
	rs.FlushEffects()
	assert.Equal(t, 2, runs)

	// the a branch is no longer read, the b branch is
	state.Set("a", "a1")
	rs.FlushEffects()
	assert.Equal(t, 2, runs)

	state.Set("b", "b2")
	rs.FlushEffects()
	assert.Equal(t, 3, runs)
}

// should attribute reads in a nested effect to the inner effect
func TestNestedEffectAttribution(t *testing.T) {
	rs := petite.CreateReactiveSystem(failOnError(t))
	state := rs.Reactive(map[string]any{"outer": 1, "inner": 1}).(*petite.Reactive)

	outerRuns, innerRuns := 0, 0
	rs.Effect(func() error {
		state.Get("outer")
		outerRuns++
		if outerRuns == 1 {
			rs.Effect(func() error {
				state.Get("inner")
				innerRuns++
				return nil
			})
		}
		return nil
	})
	assert.Equal(t, 1, outerRuns)
	assert.Equal(t, 1, innerRuns)

	state.Set("inner", 2)
	rs.FlushEffects()
	assert.Equal(t, 1, outerRuns)
	assert.Equal(t, 2, innerRuns)

	state.Set("outer", 2)
	rs.FlushEffects()
	assert.Equal(t, 2, outerRuns)
	assert.Equal(t, 2, innerRuns)
}

// should route effect errors to OnErrorFunc and keep running siblings
func TestEffectErrorDoesNotStopSiblings(t *testing.T) {
	boom := errors.New("boom")
	var got []error
	rs := petite.CreateReactiveSystem(func(from *petite.Effect, err error) {
		got = append(got, err)
	})
	state := rs.Reactive(map[string]any{"count": 1}).(*petite.Reactive)

	siblingRuns := 0
	rs.Effect(func() error {
		if state.GetInt("count") > 1 {
			return boom
		}
		return nil
	})
	rs.Effect(func() error {
		state.Get("count")
		siblingRuns++
		return nil
	})
	assert.Empty(t, got)
	assert.Equal(t, 1, siblingRuns)

	state.Set("count", 2)
	rs.FlushEffects()
	assert.Equal(t, []error{boom}, got)
	assert.Equal(t, 2, siblingRuns)
}

// should restore tracking when the untracked function panics
func TestUntrackRestoresAfterPanic(t *testing.T) {
	rs := petite.CreateReactiveSystem(failOnError(t))
	state := rs.Reactive(map[string]any{"n": 1}).(*petite.Reactive)

	assert.Panics(t, func() {
		rs.Untrack(func() {
			panic("boom")
		})
	})

	runs := 0
	rs.Effect(func() error {
		state.Get("n")
		runs++
		return nil
	})
	assert.Equal(t, 1, runs)

	state.Set("n", 2)
	rs.FlushEffects()
	assert.Equal(t, 2, runs)
}

// should not subscribe reads made while tracking is paused
func TestPauseTracking(t *testing.T) {
	rs := petite.CreateReactiveSystem(failOnError(t))
	state := rs.Reactive(map[string]any{"a": 1, "b": 1}).(*petite.Reactive)

	runs := 0
	rs.Effect(func() error {
		rs.PauseTracking()
		state.Get("a")
		rs.ResumeTracking()
		state.Get("b")
		runs++
		return nil
	})
	assert.Equal(t, 1, runs)

	state.Set("a", 2)
	rs.FlushEffects()
	assert.Equal(t, 1, runs)

	state.Set("b", 2)
	rs.FlushEffects()
	assert.Equal(t, 2, runs)
}
