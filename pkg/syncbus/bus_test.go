package syncbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/retailplan/pkg/subscription"
	"github.com/dmitrymomot/retailplan/pkg/syncbus"
)

func event(sellerID uuid.UUID) subscription.SyncEvent {
	return subscription.SyncEvent{SellerID: sellerID, Topic: subscription.TopicSubscriptions, At: time.Now()}
}

func TestBus_Notify(t *testing.T) {
	t.Run("delivers to seller listener", func(t *testing.T) {
		b := syncbus.New(4)
		defer b.Close()

		seller := uuid.New()
		ch := b.Subscribe(context.Background(), seller)

		require.NoError(t, b.Notify(context.Background(), event(seller)))

		select {
		case ev := <-ch:
			assert.Equal(t, seller, ev.SellerID)
			assert.Equal(t, subscription.TopicSubscriptions, ev.Topic)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("event not delivered")
		}
	})

	t.Run("filters other sellers", func(t *testing.T) {
		b := syncbus.New(4)
		defer b.Close()

		ch := b.Subscribe(context.Background(), uuid.New())
		require.NoError(t, b.Notify(context.Background(), event(uuid.New())))

		select {
		case ev := <-ch:
			t.Fatalf("unexpected event %v", ev)
		case <-time.After(30 * time.Millisecond):
		}
	})

	t.Run("wildcard listener receives everything", func(t *testing.T) {
		b := syncbus.New(4)
		defer b.Close()

		ch := b.Subscribe(context.Background(), uuid.Nil)
		require.NoError(t, b.Notify(context.Background(), event(uuid.New())))
		require.NoError(t, b.Notify(context.Background(), event(uuid.New())))

		assert.Len(t, ch, 2)
	})

	t.Run("slow listener is disconnected", func(t *testing.T) {
		b := syncbus.New(1)
		defer b.Close()

		seller := uuid.New()
		ch := b.Subscribe(context.Background(), seller)
		for range 5 {
			require.NoError(t, b.Notify(context.Background(), event(seller)))
		}

		assert.Eventually(t, func() bool { return b.Len() == 0 }, time.Second, 5*time.Millisecond)

		count := 0
		for range ch {
			count++
		}
		assert.Equal(t, 1, count)
	})

	t.Run("notify after close is a no-op", func(t *testing.T) {
		b := syncbus.New(1)
		require.NoError(t, b.Close())
		assert.NoError(t, b.Notify(context.Background(), event(uuid.New())))
	})
}

func TestBus_Subscribe(t *testing.T) {
	t.Run("context cancellation unsubscribes", func(t *testing.T) {
		b := syncbus.New(4)
		defer b.Close()

		ctx, cancel := context.WithCancel(context.Background())
		ch := b.Subscribe(ctx, uuid.Nil)
		require.Equal(t, 1, b.Len())

		cancel()
		assert.Eventually(t, func() bool { return b.Len() == 0 }, time.Second, 5*time.Millisecond)

		_, ok := <-ch
		assert.False(t, ok)
	})

	t.Run("subscribe after close returns closed channel", func(t *testing.T) {
		b := syncbus.New(4)
		require.NoError(t, b.Close())

		_, ok := <-b.Subscribe(context.Background(), uuid.Nil)
		assert.False(t, ok)
	})

	t.Run("close disconnects listeners", func(t *testing.T) {
		b := syncbus.New(4)
		ch := b.Subscribe(context.Background(), uuid.Nil)
		require.NoError(t, b.Close())
		require.NoError(t, b.Close())

		_, ok := <-ch
		assert.False(t, ok)
	})
}
