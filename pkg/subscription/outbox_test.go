package subscription_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/retailplan/pkg/logger"
	"github.com/dmitrymomot/retailplan/pkg/subscription"
)

func TestOutbox(t *testing.T) {
	t.Parallel()

	t.Run("delivers events after commit", func(t *testing.T) {
		events := make(chan subscription.SyncEvent, 8)
		outbox := subscription.NewOutbox(subscription.NotifierFunc(func(_ context.Context, ev subscription.SyncEvent) error {
			events <- ev
			return nil
		}), 2, subscription.WithOutboxLogger(logger.Discard()))

		f := newFixture(t, subscription.WithOutbox(outbox))
		_, err := f.svc.AssignDefaultPlan(t.Context(), f.seller)
		require.NoError(t, err)
		require.NoError(t, outbox.Close(t.Context()))

		select {
		case ev := <-events:
			assert.Equal(t, f.seller, ev.SellerID)
			assert.Equal(t, subscription.TopicSubscriptions, ev.Topic)
			assert.Equal(t, t0, ev.At)
		default:
			t.Fatal("no sync event delivered")
		}
	})

	t.Run("no event without changes", func(t *testing.T) {
		var calls atomic.Int32
		outbox := subscription.NewOutbox(subscription.NotifierFunc(func(context.Context, subscription.SyncEvent) error {
			calls.Add(1)
			return nil
		}), 1)

		f := newFixture(t, subscription.WithOutbox(outbox))
		_, err := f.svc.Switch(t.Context(), subscription.ActivateRequest{SellerID: f.seller, TemplateID: "basic"})
		require.Error(t, err)
		require.NoError(t, outbox.Close(t.Context()))

		assert.Zero(t, calls.Load())
	})

	t.Run("notifier failure does not fail the operation", func(t *testing.T) {
		metrics := subscription.NewMetrics(prometheus.NewRegistry(), "test")
		outbox := subscription.NewOutbox(subscription.NotifierFunc(func(context.Context, subscription.SyncEvent) error {
			return errors.New("broker down")
		}), 1, subscription.WithOutboxMetrics(metrics), subscription.WithOutboxLogger(logger.Discard()))

		f := newFixture(t, subscription.WithOutbox(outbox), subscription.WithMetrics(metrics))
		_, err := f.svc.AssignDefaultPlan(t.Context(), f.seller)
		require.NoError(t, err)
		require.NoError(t, outbox.Close(t.Context()))

		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NotifyFailures))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Operations.WithLabelValues("assign_default", "ok")))
	})

	t.Run("full queue drops", func(t *testing.T) {
		release := make(chan struct{})
		metrics := subscription.NewMetrics(prometheus.NewRegistry(), "test")
		outbox := subscription.NewOutbox(subscription.NotifierFunc(func(ctx context.Context, _ subscription.SyncEvent) error {
			<-release
			return nil
		}), 1, subscription.WithQueueSize(1), subscription.WithOutboxMetrics(metrics), subscription.WithOutboxLogger(logger.Discard()))

		for range 5 {
			outbox.Publish(subscription.SyncEvent{SellerID: uuid.New()})
		}
		close(release)
		require.NoError(t, outbox.Close(t.Context()))

		dropped := testutil.ToFloat64(metrics.NotifyDropped)
		assert.GreaterOrEqual(t, dropped, 3.0)
	})

	t.Run("close honours context", func(t *testing.T) {
		block := make(chan struct{})
		defer close(block)
		outbox := subscription.NewOutbox(subscription.NotifierFunc(func(context.Context, subscription.SyncEvent) error {
			<-block
			return nil
		}), 1, subscription.WithDeliveryTimeout(time.Minute))
		outbox.Publish(subscription.SyncEvent{})

		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, outbox.Close(ctx), context.DeadlineExceeded)
		assert.ErrorIs(t, outbox.Close(t.Context()), subscription.ErrOutboxClosed)

		assert.NotPanics(t, func() { outbox.Publish(subscription.SyncEvent{}) })
	})

	t.Run("requires notifier", func(t *testing.T) {
		assert.Panics(t, func() { subscription.NewOutbox(nil, 1) })
	})
}
