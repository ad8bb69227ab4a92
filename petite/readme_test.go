package petite_test

import (
	"log"
	"testing"

	"github.com/delaneyj/proxyparty/petite"
	"github.com/stretchr/testify/assert"
)

// from README
func TestBasicUsage(t *testing.T) {
	rs := petite.CreateReactiveSystem(func(from *petite.Effect, err error) {
		assert.FailNow(t, err.Error())
	})
	state := rs.Reactive(map[string]any{"count": 1}).(*petite.Reactive)
	doubleCount := petite.Computed(rs, func(oldValue int) int {
		return state.GetInt("count") * 2
	})

	e := rs.Effect(func() error {
		log.Printf("Count is: %d", state.GetInt("count"))
		return nil
	})
	defer e.Stop()

	assert.Equal(t, 2, doubleCount.Value())
	state.Set("count", 2)
	rs.FlushEffects()
	assert.Equal(t, 4, doubleCount.Value())
}

// from README
func TestTodoList(t *testing.T) {
	rs := petite.CreateReactiveSystem(func(from *petite.Effect, err error) {
		assert.FailNow(t, err.Error())
	})
	todos := rs.Reactive([]any{
		map[string]any{"title": "write tests", "done": false},
	}).(*petite.List)

	remaining := petite.Computed(rs, func(oldValue int) int {
		n := 0
		for _, v := range todos.Values() {
			if !v.(*petite.Reactive).GetBool("done") {
				n++
			}
		}
		return n
	})
	assert.Equal(t, 1, remaining.Value())

	todos.Push(rs.Reactive(map[string]any{"title": "ship it", "done": false}))
	rs.FlushEffects()
	assert.Equal(t, 2, remaining.Value())

	todos.At(0).(*petite.Reactive).Set("done", true)
	rs.FlushEffects()
	assert.Equal(t, 1, remaining.Value())
}
