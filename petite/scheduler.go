package petite

import (
	"fmt"
	"sort"
)

// queueEffect selects an effect for the next flush. The queue has set
// semantics; selecting an already-queued effect only bumps its trigger
// counter. Past MaxTriggersPerCycle the effect sits out the rest of the
// settle and a loop-detected diagnostic goes to OnErrorFunc, once.
func (rs *ReactiveSystem) queueEffect(e *Effect, key string) {
	if e.disposed {
		return
	}
	e.cycleTriggers++
	if e.cycleTriggers > MaxTriggersPerCycle {
		if !e.loopNotified {
			e.loopNotified = true
			if rs.onError != nil {
				rs.onError(e, fmt.Errorf("%w: effect %d triggered more than %d times in one cycle, last via key %q",
					ErrLoopDetected, e.id, MaxTriggersPerCycle, key))
			}
		}
		return
	}
	rs.seen.Add(e)
	if rs.queued.Add(e) {
		rs.queue = append(rs.queue, e)
	}
	if rs.autoFlush && rs.batchDepth == 0 && !rs.flushing {
		select {
		case rs.wake <- struct{}{}:
		default:
		}
	}
}

// FlushEffects runs the queued effects and blocks until the queue settles,
// including cycles enqueued by the effects themselves. Called from inside a
// running flush it returns immediately; that flush is already draining the
// live queue.
func (rs *ReactiveSystem) FlushEffects() {
	nested := rs.acquire()
	defer rs.release(nested)
	rs.flushSettle()
}

func (rs *ReactiveSystem) flushSettle() {
	if rs.flushing {
		return
	}
	rs.flushing = true
	defer func() {
		rs.flushing = false
		// Effects that made it through a settle get a clean slate, so the
		// ceiling bounds same-cycle fan-out, not long-run throughput.
		rs.seen.Each(func(e *Effect) bool {
			e.cycleTriggers = 0
			e.loopNotified = false
			return false
		})
		rs.seen.Clear()
	}()

	for len(rs.queue) > 0 {
		batch := rs.queue
		rs.queue = nil
		rs.queued.Clear()

		sort.SliceStable(batch, func(i, j int) bool {
			return batch[i].computed && !batch[j].computed
		})

		for _, e := range batch {
			if e.disposed {
				continue
			}
			if e.scheduler != nil {
				e.scheduler()
			} else {
				e.run()
			}
		}
		// Anything the batch enqueued is handled as a fresh cycle of the
		// loop above instead of recursing.
	}
}

// StartBatch suspends flushing until the matching EndBatch. Batches nest.
func (rs *ReactiveSystem) StartBatch() {
	nested := rs.acquire()
	defer rs.release(nested)
	rs.batchDepth++
}

// EndBatch closes the innermost batch; the outermost EndBatch flushes
// everything the batch accumulated.
func (rs *ReactiveSystem) EndBatch() {
	nested := rs.acquire()
	defer rs.release(nested)
	if rs.batchDepth > 0 {
		rs.batchDepth--
	}
	if rs.batchDepth == 0 {
		rs.flushSettle()
	}
}

// Batch groups the writes performed by cb into a single flush.
func (rs *ReactiveSystem) Batch(cb func()) {
	rs.StartBatch()
	defer rs.EndBatch()
	cb()
}
