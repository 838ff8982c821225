package subscription

import (
	"log/slog"
	"time"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*service)

// WithClock overrides the time source. Useful for deterministic tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithLocker replaces the default in-process per-seller lock.
// Use a distributed lock when several processes serve the same sellers.
func WithLocker(l Locker) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithOutbox enables post-commit sync notifications.
func WithOutbox(o *Outbox) ServiceOption {
	return func(s *service) {
		s.outbox = o
	}
}

// WithMetrics enables operation counters.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *service) {
		s.metrics = m
	}
}

// WithConflictRetry configures how many times an operation is re-run after an
// optimistic concurrency conflict, and the initial backoff between attempts.
func WithConflictRetry(attempts int, interval time.Duration) ServiceOption {
	return func(s *service) {
		if attempts >= 0 {
			s.retryAttempts = attempts
		}
		if interval > 0 {
			s.retryInterval = interval
		}
	}
}
