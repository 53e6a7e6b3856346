package portalauth

import (
	"context"
	"sync"
	"sync/atomic"
)

// AsyncSink moves delivery to a slow AuditSink off the request path. One
// goroutine delivers queued events in order; Close stops intake and returns
// once the queue is drained.
type AsyncSink struct {
	next       AuditSink
	dropIfFull bool
	queue      chan AuditEvent
	finished   chan struct{}
	dropped    atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewAsyncSink starts delivery to next. With dropIfFull set, Emit never
// blocks; events that find the queue full are counted and discarded.
func NewAsyncSink(next AuditSink, buffer int, dropIfFull bool) *AsyncSink {
	if next == nil {
		next = NoOpSink{}
	}
	if buffer <= 0 {
		buffer = 1
	}
	s := &AsyncSink{
		next:       next,
		dropIfFull: dropIfFull,
		queue:      make(chan AuditEvent, buffer),
		finished:   make(chan struct{}),
	}
	go s.deliver()
	return s
}

func (s *AsyncSink) deliver() {
	defer close(s.finished)
	for event := range s.queue {
		s.next.Emit(context.Background(), event)
	}
}

// Emit queues event. After Close it is a no-op.
func (s *AsyncSink) Emit(ctx context.Context, event AuditEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	if s.dropIfFull {
		select {
		case s.queue <- event:
		default:
			s.dropped.Add(1)
		}
		return
	}
	select {
	case s.queue <- event:
	case <-ctx.Done():
	}
}

// Close is idempotent.
func (s *AsyncSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.finished
}

// Dropped reports how many events were discarded on a full queue.
func (s *AsyncSink) Dropped() uint64 {
	return s.dropped.Load()
}
