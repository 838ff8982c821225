package subscription

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/dmitrymomot/retailplan/pkg/logger"
)

// SyncEvent signals that a seller's subscription records changed and clients should re-sync.
type SyncEvent struct {
	SellerID uuid.UUID `json:"seller_id"`
	Topic    string    `json:"topic"`
	At       time.Time `json:"at"`
}

// Notifier delivers sync events to interested clients.
type Notifier interface {
	Notify(ctx context.Context, ev SyncEvent) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, ev SyncEvent) error

func (f NotifierFunc) Notify(ctx context.Context, ev SyncEvent) error {
	return f(ctx, ev)
}

// ErrOutboxClosed is returned by Close when called twice.
var ErrOutboxClosed = errors.New("outbox closed")

// Outbox delivers sync events after commit on a bounded worker pool.
// Publishing never blocks: when the queue is full the event is dropped and logged.
// Delivery failures are logged and counted; they never reach the engine's callers.
type Outbox struct {
	notifier Notifier
	queue    chan SyncEvent
	timeout  time.Duration
	log      *slog.Logger
	metrics  *Metrics

	mu     sync.RWMutex
	closed bool
	wg     conc.WaitGroup
}

// OutboxOption configures an Outbox.
type OutboxOption func(*Outbox)

func WithOutboxLogger(log *slog.Logger) OutboxOption {
	return func(o *Outbox) {
		if log != nil {
			o.log = log
		}
	}
}

func WithOutboxMetrics(m *Metrics) OutboxOption {
	return func(o *Outbox) {
		o.metrics = m
	}
}

// WithDeliveryTimeout bounds each Notify call.
func WithDeliveryTimeout(d time.Duration) OutboxOption {
	return func(o *Outbox) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithQueueSize sets how many undelivered events may be buffered.
func WithQueueSize(n int) OutboxOption {
	return func(o *Outbox) {
		if n > 0 {
			o.queue = make(chan SyncEvent, n)
		}
	}
}

// NewOutbox starts workers goroutines delivering to n. Panics if n is nil.
func NewOutbox(n Notifier, workers int, opts ...OutboxOption) *Outbox {
	if n == nil {
		panic("subscription: Notifier is required")
	}
	o := &Outbox{
		notifier: n,
		queue:    make(chan SyncEvent, 256),
		timeout:  5 * time.Second,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	for range max(workers, 1) {
		o.wg.Go(o.run)
	}
	return o
}

// Publish enqueues ev without blocking. Events published after Close are ignored.
func (o *Outbox) Publish(ev SyncEvent) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return
	}
	select {
	case o.queue <- ev:
	default:
		o.metrics.notifyDropped()
		o.log.Warn("sync notification dropped, outbox full",
			logger.SellerID(ev.SellerID), slog.String("topic", ev.Topic))
	}
}

// Close stops accepting events and waits for queued ones to be delivered,
// or until ctx is done.
func (o *Outbox) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrOutboxClosed
	}
	o.closed = true
	close(o.queue)
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Outbox) run() {
	for ev := range o.queue {
		o.deliver(ev)
	}
}

func (o *Outbox) deliver(ev SyncEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	if err := o.notifier.Notify(ctx, ev); err != nil {
		o.metrics.notifyFailed()
		o.log.WarnContext(ctx, "sync notification failed",
			logger.SellerID(ev.SellerID), slog.String("topic", ev.Topic), logger.Error(err))
	}
}
