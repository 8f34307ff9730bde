package authcore

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher decouples the request path from the sink: Emit enqueues,
// a single forwarder goroutine delivers, Close drains whatever is still
// buffered. Drops are double-counted on purpose: a local counter for
// AuditDropped and the engine metric via onDrop.
type auditDispatcher struct {
	sink   AuditSink
	events chan AuditEvent
	quit   chan struct{}

	dropIfFull bool
	dropped    atomic.Uint64
	onDrop     func()

	closing atomic.Bool
	wg      sync.WaitGroup
	once    sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, onDrop func()) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		events:     make(chan AuditEvent, cfg.BufferSize),
		quit:       make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
		onDrop:     onDrop,
	}

	d.wg.Add(1)
	go d.forward()

	return d
}

func (d *auditDispatcher) forward() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		case <-d.quit:
			// Deliver what made it into the buffer before shutdown was
			// requested, then stop.
			for {
				select {
				case event := <-d.events:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Emit hands an event to the forwarder. With DropIfFull it never blocks;
// otherwise it waits until the buffer accepts the event, the context is
// canceled, or the dispatcher shuts down.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closing.Load() {
		return
	}

	if d.dropIfFull {
		select {
		case d.events <- event:
		default:
			d.drop()
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.events <- event:
	case <-ctx.Done():
	case <-d.quit:
	}
}

func (d *auditDispatcher) drop() {
	d.dropped.Add(1)
	if d.onDrop != nil {
		d.onDrop()
	}
}

// Dropped reports how many events were discarded because the buffer was
// full at emission time.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Close stops accepting events, drains the buffer, and waits for the
// forwarder to exit. Safe to call more than once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closing.Store(true)
		close(d.quit)
		d.wg.Wait()
	})
}
