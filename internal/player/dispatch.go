package player

import (
	"context"
	"sync"
)

// dispatcher is an unbounded FIFO of events drained by one goroutine.
// Producers never block, so transitions can enqueue while holding the
// coordinator lock and observers can call back into the coordinator.
type dispatcher struct {
	mu    sync.Mutex
	queue []Event
	wake  chan struct{}
}

func newDispatcher() *dispatcher {
	return &dispatcher{wake: make(chan struct{}, 1)}
}

func (d *dispatcher) push(ev Event) {
	d.mu.Lock()
	d.queue = append(d.queue, ev)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) pop() (Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.queue) == 0 {
		return Event{}, false
	}
	ev := d.queue[0]
	d.queue[0] = Event{}
	d.queue = d.queue[1:]
	return ev, true
}

// run delivers queued events in order until ctx is cancelled, then
// flushes whatever is left
func (d *dispatcher) run(ctx context.Context, deliver func(Event)) {
	for {
		for {
			ev, ok := d.pop()
			if !ok {
				break
			}
			deliver(ev)
		}

		select {
		case <-ctx.Done():
			for {
				ev, ok := d.pop()
				if !ok {
					return
				}
				deliver(ev)
			}
		case <-d.wake:
		}
	}
}
