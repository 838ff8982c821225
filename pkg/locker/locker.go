// Package locker provides keyed mutual exclusion used to serialize writers per seller.
//
// Memory serializes goroutines of one process. Redis and Postgres extend the
// guarantee across processes sharing the same backend.
package locker

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotAcquired is returned when the lock could not be obtained before the wait deadline.
	ErrNotAcquired = errors.New("locker: lock not acquired")
	// ErrEmptyKey is returned for an empty lock key.
	ErrEmptyKey = errors.New("locker: empty key")
)

// Locker obtains an exclusive lock on key, blocking until it is held or ctx is done.
// The returned unlock function is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Timeout bounds how long Lock on l waits. A zero or negative d returns l unchanged.
func Timeout(l Locker, d time.Duration) Locker {
	if d <= 0 {
		return l
	}
	return &timeoutLocker{next: l, wait: d}
}

type timeoutLocker struct {
	next Locker
	wait time.Duration
}

func (t *timeoutLocker) Lock(ctx context.Context, key string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, t.wait)
	defer cancel()
	return t.next.Lock(ctx, key)
}
