package locker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres uses session-level advisory locks. Each held lock pins one pool
// connection until it is released.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates an advisory locker. Panics if pool is nil.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	if pool == nil {
		panic("locker: pgx pool is required")
	}
	return &Postgres{pool: pool}
}

func (p *Postgres) Lock(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, errors.Join(ErrNotAcquired, err)
	}
	// hashtext maps the key onto the int4 advisory lock space.
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock(hashtext($1))", key); err != nil {
		conn.Release()
		return nil, fmt.Errorf("lock %s: %w", key, errors.Join(ErrNotAcquired, err))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock(hashtext($1))", key); err != nil {
				// The session may still hold the lock; drop the connection so the server frees it.
				_ = conn.Conn().Close(context.Background())
			}
			conn.Release()
		})
	}, nil
}
