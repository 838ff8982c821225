package subscription_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/retailplan/pkg/logger"
	"github.com/dmitrymomot/retailplan/pkg/subscription"
)

const day = 24 * time.Hour

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: t0} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func limits(customers, products, orders subscription.Quota) map[subscription.Resource]subscription.Quota {
	return map[subscription.Resource]subscription.Quota{
		subscription.ResourceCustomers: customers,
		subscription.ResourceProducts:  products,
		subscription.ResourceOrders:    orders,
	}
}

func testTemplates() []*subscription.Template {
	return []*subscription.Template{
		{
			ID: "basic", Name: "Basic", Price: decimal.Zero, DurationDays: 30, Active: true,
			PlanType: subscription.PlanTypeStandard,
			Limits:   limits(subscription.Bounded(50), subscription.Bounded(10), subscription.Bounded(100)),
		},
		{
			ID: "pro", Name: "Pro", Price: decimal.NewFromInt(29), DurationDays: 30, Active: true,
			PlanType: subscription.PlanTypeStandard,
			Limits:   limits(subscription.Unlimited(), subscription.Bounded(500), subscription.Unlimited()),
		},
		{
			ID: "boost", Name: "Product boost", Price: decimal.NewFromInt(5), DurationDays: 10, Active: true,
			PlanType: subscription.PlanTypeMini,
			Limits:   limits(subscription.Bounded(0), subscription.Bounded(3), subscription.Bounded(0)),
		},
		{
			ID: "gift", Name: "Gift boost", Price: decimal.Zero, DurationDays: 7, Active: true,
			PlanType: subscription.PlanTypeMini,
			Limits:   limits(subscription.Bounded(0), subscription.Bounded(2), subscription.Bounded(0)),
		},
	}
}

type fixture struct {
	store  *subscription.MemoryStore
	clock  *clock
	svc    subscription.Service
	seller uuid.UUID
	seeded int
}

func newFixture(t *testing.T, opts ...subscription.ServiceOption) *fixture {
	t.Helper()

	f := &fixture{
		store:  subscription.NewMemoryStore(testTemplates()...),
		clock:  newClock(),
		seller: uuid.New(),
	}
	f.store.PutSeller(&subscription.Seller{ID: f.seller})

	opts = append([]subscription.ServiceOption{
		subscription.WithClock(f.clock.Now),
		subscription.WithLogger(logger.Discard()),
	}, opts...)
	f.svc = subscription.NewService(f.store, f.store, opts...)
	return f
}

// seed stores a paid, paused subscription. Seeded records are created an hour
// before the current clock, in seeding order.
func (f *fixture) seed(t *testing.T, templateID string, mutate ...func(*subscription.Subscription)) *subscription.Subscription {
	t.Helper()

	tpl, err := f.store.GetTemplate(t.Context(), templateID)
	require.NoError(t, err)

	sub := &subscription.Subscription{
		ID:            uuid.New(),
		SellerID:      f.seller,
		TemplateID:    tpl.ID,
		PlanType:      tpl.PlanType,
		Status:        subscription.StatusPaused,
		PaymentStatus: subscription.PaymentCompleted,
		Limits:        tpl.Limits,
		Usage:         map[subscription.Resource]int64{},
		CreatedAt:     f.clock.Now().Add(-time.Hour + time.Duration(f.seeded)*time.Second),
	}
	f.seeded++
	for _, m := range mutate {
		m(sub)
	}
	f.store.PutSubscription(sub)
	return sub
}

func (f *fixture) setPrimary(id uuid.UUID) {
	f.store.PutSeller(&subscription.Seller{ID: f.seller, CurrentPlanID: id})
}

func (f *fixture) get(t *testing.T, id uuid.UUID) *subscription.Subscription {
	t.Helper()
	sub, err := f.store.GetSubscription(t.Context(), id)
	require.NoError(t, err)
	return sub
}

func (f *fixture) sellerRecord(t *testing.T) *subscription.Seller {
	t.Helper()
	s, err := f.store.GetSeller(t.Context(), f.seller)
	require.NoError(t, err)
	return s
}

func (f *fixture) remaining(t *testing.T, id uuid.UUID) time.Duration {
	t.Helper()
	infos, err := f.svc.GetRemaining(t.Context(), f.seller)
	require.NoError(t, err)
	for _, info := range infos {
		if info.SubscriptionID == id {
			return time.Duration(info.RemainingMs) * time.Millisecond
		}
	}
	t.Fatalf("subscription %s not reported", id)
	return 0
}

// running marks a seeded subscription active with its clock started now.
func (f *fixture) running(s *subscription.Subscription) {
	now := f.clock.Now()
	s.Status = subscription.StatusActive
	s.LastActivatedAt = &now
}

func used(d time.Duration) func(*subscription.Subscription) {
	return func(s *subscription.Subscription) { s.AccumulatedUsed = d }
}

func usage(res subscription.Resource, n int64) func(*subscription.Subscription) {
	return func(s *subscription.Subscription) { s.Usage[res] = n }
}
