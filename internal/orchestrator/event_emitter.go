package orchestrator

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// emitGrace is how long Emit waits on a full buffer before dropping.
const emitGrace = 100 * time.Millisecond

// EventEmitter fans orchestrator events out to one consumer over a
// buffered channel. A slow consumer loses events rather than stalling the
// run. A nil *EventEmitter discards every event.
type EventEmitter struct {
	ch      chan OrchestratorEvent
	dropped atomic.Uint64
	closed  atomic.Bool
	once    sync.Once
}

// NewEventEmitter returns an emitter buffering up to size events.
func NewEventEmitter(size int) *EventEmitter {
	return &EventEmitter{ch: make(chan OrchestratorEvent, size)}
}

// Emit stamps ev and queues it, dropping it if the buffer stays full for
// emitGrace.
func (e *EventEmitter) Emit(ev OrchestratorEvent) {
	if e == nil || e.closed.Load() {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	select {
	case e.ch <- ev:
		return
	default:
	}

	t := time.NewTimer(emitGrace)
	defer t.Stop()
	select {
	case e.ch <- ev:
	case <-t.C:
		if n := e.dropped.Add(1); n%10 == 1 {
			log.Printf("[orchestrator] WARNING: event buffer full, dropped %s (%d dropped so far)", ev.Type, n)
		}
	}
}

// DroppedCount returns how many events were dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.dropped.Load()
}

// Events returns the channel the consumer reads from. It is closed by Close.
func (e *EventEmitter) Events() <-chan OrchestratorEvent {
	return e.ch
}

// Close closes the channel; later Emit calls are no-ops. Close must not
// race with an in-flight Emit.
func (e *EventEmitter) Close() {
	e.once.Do(func() {
		e.closed.Store(true)
		close(e.ch)
	})
}
