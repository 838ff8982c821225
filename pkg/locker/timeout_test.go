package locker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/retailplan/pkg/locker"
)

func TestTimeout(t *testing.T) {
	t.Parallel()

	m := locker.NewMemory()
	assert.Same(t, locker.Locker(m), locker.Timeout(m, 0))

	bounded := locker.Timeout(m, 20*time.Millisecond)
	unlock, err := bounded.Lock(context.Background(), "seller:1")
	require.NoError(t, err)

	start := time.Now()
	_, err = bounded.Lock(context.Background(), "seller:1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	unlock()
	unlock2, err := bounded.Lock(context.Background(), "seller:1")
	require.NoError(t, err)
	unlock2()
}
