package audit

import (
	"sync"

	"shopdirect.dev/internal/obs"
)

// Dispatcher decouples emitters from a possibly slow downstream sink.
// Emit enqueues without blocking; when the buffer is full the event is
// dropped and counted, never delaying the primary operation.
type Dispatcher struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
	done   chan struct{}
}

// NewDispatcher starts a dispatcher forwarding events to next.
func NewDispatcher(next Sink, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	d := &Dispatcher{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
	go func() {
		defer close(d.done)
		for e := range d.ch {
			next.Emit(e)
		}
	}()
	return d
}

// Emit enqueues the event, dropping it if the buffer is full. Safe
// after Close: a straggling request during shutdown drops its event
// instead of sending on the closed channel.
func (d *Dispatcher) Emit(e Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		obs.IncAuditDropped()
		return
	}
	select {
	case d.ch <- e:
	default:
		obs.IncAuditDropped()
	}
}

// Close drains queued events and stops the forwarding goroutine.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()
	<-d.done
}
