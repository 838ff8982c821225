// Package syncbus fans subscription sync events out to in-process listeners,
// such as server-sent event streams held open by seller dashboards.
//
// Delivery never blocks the publisher: a listener whose buffer is full is
// disconnected and must re-subscribe and re-sync.
package syncbus

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/retailplan/pkg/subscription"
)

// Bus is an in-memory subscription.Notifier. All methods are safe for concurrent use.
type Bus struct {
	mu         sync.RWMutex
	listeners  map[*listener]struct{}
	bufferSize int
	closed     bool
	cleanupWg  sync.WaitGroup
}

type listener struct {
	sellerID uuid.UUID // uuid.Nil receives every seller's events
	ch       chan subscription.SyncEvent
	mu       sync.RWMutex
	closed   bool
}

// New creates a bus. bufferSize is the per-listener queue length, at least 1.
func New(bufferSize int) *Bus {
	return &Bus{
		listeners:  make(map[*listener]struct{}),
		bufferSize: max(bufferSize, 1),
	}
}

// Subscribe returns a channel of events for sellerID, or for every seller when
// sellerID is uuid.Nil. The channel is closed when ctx is done, when the listener
// falls behind, or when the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, sellerID uuid.UUID) <-chan subscription.SyncEvent {
	l := &listener{sellerID: sellerID, ch: make(chan subscription.SyncEvent, b.bufferSize)}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		l.close()
		return l.ch
	}
	b.listeners[l] = struct{}{}

	if ctx.Done() != nil {
		b.cleanupWg.Add(1)
		go func() {
			defer b.cleanupWg.Done()
			<-ctx.Done()
			b.remove(l)
		}()
	}
	return l.ch
}

// Notify implements subscription.Notifier.
func (b *Bus) Notify(_ context.Context, ev subscription.SyncEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}
	for l := range b.listeners {
		if l.sellerID != uuid.Nil && l.sellerID != ev.SellerID {
			continue
		}
		if !l.send(ev) {
			go b.remove(l)
		}
	}
	return nil
}

// Len returns the number of connected listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Close disconnects every listener. Safe to call more than once.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for l := range b.listeners {
		l.close()
	}
	clear(b.listeners)
	b.mu.Unlock()

	b.cleanupWg.Wait()
	return nil
}

func (b *Bus) remove(l *listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, l)
	l.close()
}

func (l *listener) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		close(l.ch)
		l.closed = true
	}
}

func (l *listener) send(ev subscription.SyncEvent) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return false
	}
	select {
	case l.ch <- ev:
		return true
	default:
		return false
	}
}

var _ subscription.Notifier = (*Bus)(nil)
