package subscription_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/retailplan/pkg/subscription"
)

func TestNewService_Panics(t *testing.T) {
	t.Parallel()

	store := subscription.NewMemoryStore()
	assert.Panics(t, func() { subscription.NewService(nil, store) })
	assert.Panics(t, func() { subscription.NewService(store, nil) })
}

func TestService_AssignDefaultPlan(t *testing.T) {
	t.Parallel()

	t.Run("creates and activates free plan", func(t *testing.T) {
		f := newFixture(t)

		res, err := f.svc.AssignDefaultPlan(t.Context(), f.seller)
		require.NoError(t, err)

		assert.True(t, res.Created)
		assert.True(t, res.Primary)
		assert.Equal(t, "basic", res.TemplateID)
		assert.Equal(t, subscription.StatusActive, res.Status)
		assert.Equal(t, (30 * day).Milliseconds(), res.RemainingMs)
		assert.Equal(t, int64(30), res.Remaining.Days)

		seller := f.sellerRecord(t)
		assert.Equal(t, res.SubscriptionID, seller.CurrentPlanID)

		sub := f.get(t, res.SubscriptionID)
		assert.Equal(t, subscription.PaymentCompleted, sub.PaymentStatus)
		assert.Equal(t, subscription.Bounded(10), sub.Limit(subscription.ResourceProducts))
	})

	t.Run("idempotent", func(t *testing.T) {
		f := newFixture(t)

		first, err := f.svc.AssignDefaultPlan(t.Context(), f.seller)
		require.NoError(t, err)
		second, err := f.svc.AssignDefaultPlan(t.Context(), f.seller)
		require.NoError(t, err)

		assert.Equal(t, first.SubscriptionID, second.SubscriptionID)
		assert.False(t, second.Created)
		assert.True(t, second.AlreadyActive)

		subs, err := f.store.FindBySeller(t.Context(), f.seller)
		require.NoError(t, err)
		assert.Len(t, subs, 1)
	})

	t.Run("replaces expired primary", func(t *testing.T) {
		f := newFixture(t)

		first, err := f.svc.AssignDefaultPlan(t.Context(), f.seller)
		require.NoError(t, err)

		f.clock.Advance(31 * day)
		second, err := f.svc.AssignDefaultPlan(t.Context(), f.seller)
		require.NoError(t, err)

		assert.True(t, second.Created)
		assert.NotEqual(t, first.SubscriptionID, second.SubscriptionID)
		assert.True(t, second.Primary)
		assert.Equal(t, subscription.StatusActive, second.Status)
		assert.Equal(t, (30 * day).Milliseconds(), second.RemainingMs)

		assert.Equal(t, subscription.StatusExpired, f.get(t, first.SubscriptionID).Status)
		assert.Equal(t, second.SubscriptionID, f.sellerRecord(t).CurrentPlanID)
	})

	t.Run("keeps paused primary with validity left", func(t *testing.T) {
		f := newFixture(t)
		basic := f.seed(t, "basic", used(10*day))
		f.setPrimary(basic.ID)

		res, err := f.svc.AssignDefaultPlan(t.Context(), f.seller)
		require.NoError(t, err)

		assert.Equal(t, basic.ID, res.SubscriptionID)
		assert.False(t, res.Created)
		assert.False(t, res.AlreadyActive)
		assert.Equal(t, subscription.StatusPaused, res.Status)
		assert.Equal(t, (20 * day).Milliseconds(), res.RemainingMs)
	})

	t.Run("no free template", func(t *testing.T) {
		f := newFixture(t)
		f.store.PutTemplate(&subscription.Template{ID: "basic", DurationDays: 30, Active: false})

		_, err := f.svc.AssignDefaultPlan(t.Context(), f.seller)
		assert.ErrorIs(t, err, subscription.ErrNoPlan)
	})

	t.Run("unknown seller", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.AssignDefaultPlan(t.Context(), uuid.New())
		assert.ErrorIs(t, err, subscription.ErrSellerNotFound)
		assert.Equal(t, subscription.KindNotFound, subscription.KindOf(err))
	})
}

func TestService_Activate(t *testing.T) {
	t.Parallel()

	t.Run("switching pauses the previous plan and keeps its time", func(t *testing.T) {
		f := newFixture(t)
		pro := f.seed(t, "pro")

		basic, err := f.svc.AssignDefaultPlan(t.Context(), f.seller)
		require.NoError(t, err)

		f.clock.Advance(5 * day)
		res, err := f.svc.Activate(t.Context(), subscription.ActivateRequest{
			SellerID:       f.seller,
			SubscriptionID: pro.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, pro.ID, res.SubscriptionID)
		assert.True(t, res.Primary)
		assert.False(t, res.Created)
		assert.Equal(t, subscription.StatusActive, res.Status)

		assert.Equal(t, subscription.StatusPaused, f.get(t, basic.SubscriptionID).Status)
		assert.Equal(t, pro.ID, f.sellerRecord(t).CurrentPlanID)

		f.clock.Advance(10 * day)
		assert.Equal(t, 20*day, f.remaining(t, pro.ID))
		assert.Equal(t, 25*day, f.remaining(t, basic.SubscriptionID))

		// Switch back by template: the existing basic subscription is reused.
		back, err := f.svc.Switch(t.Context(), subscription.ActivateRequest{
			SellerID:   f.seller,
			TemplateID: "basic",
		})
		require.NoError(t, err)
		assert.Equal(t, basic.SubscriptionID, back.SubscriptionID)
		assert.Equal(t, (25 * day).Milliseconds(), back.RemainingMs)

		f.clock.Advance(100 * day)
		assert.Equal(t, 20*day, f.remaining(t, pro.ID))
	})

	t.Run("already active", func(t *testing.T) {
		f := newFixture(t)
		first, err := f.svc.AssignDefaultPlan(t.Context(), f.seller)
		require.NoError(t, err)

		f.clock.Advance(time.Hour)
		res, err := f.svc.Activate(t.Context(), subscription.ActivateRequest{
			SellerID:   f.seller,
			TemplateID: "basic",
		})
		require.NoError(t, err)
		assert.True(t, res.AlreadyActive)
		assert.Equal(t, first.SubscriptionID, res.SubscriptionID)
		assert.Equal(t, (30*day - time.Hour).Milliseconds(), res.RemainingMs)
	})

	t.Run("paid template without subscription requires payment", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Activate(t.Context(), subscription.ActivateRequest{
			SellerID:   f.seller,
			TemplateID: "pro",
		})
		assert.ErrorIs(t, err, subscription.ErrPaymentRequired)
	})

	t.Run("unpaid subscription requires payment", func(t *testing.T) {
		f := newFixture(t)
		pro := f.seed(t, "pro", func(s *subscription.Subscription) {
			s.PaymentStatus = subscription.PaymentPending
		})

		_, err := f.svc.Activate(t.Context(), subscription.ActivateRequest{
			SellerID:       f.seller,
			SubscriptionID: pro.ID,
		})
		assert.Equal(t, subscription.KindPaymentRequired, subscription.KindOf(err))
	})

	t.Run("switch without subscription is not assigned", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Switch(t.Context(), subscription.ActivateRequest{
			SellerID:   f.seller,
			TemplateID: "basic",
		})
		assert.ErrorIs(t, err, subscription.ErrNotAssigned)
	})

	t.Run("unknown targets", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Activate(t.Context(), subscription.ActivateRequest{SellerID: f.seller, TemplateID: "gold"})
		assert.ErrorIs(t, err, subscription.ErrTemplateNotFound)

		_, err = f.svc.Activate(t.Context(), subscription.ActivateRequest{SellerID: f.seller, SubscriptionID: uuid.New()})
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)

		_, err = f.svc.Activate(t.Context(), subscription.ActivateRequest{SellerID: f.seller})
		assert.ErrorIs(t, err, subscription.ErrInvalidTarget)
	})

	t.Run("expired target is marked and siblings stay paused", func(t *testing.T) {
		f := newFixture(t)
		old := f.seed(t, "pro", used(30*day))
		basic, err := f.svc.AssignDefaultPlan(t.Context(), f.seller)
		require.NoError(t, err)

		f.clock.Advance(day)
		_, err = f.svc.Activate(t.Context(), subscription.ActivateRequest{
			SellerID:       f.seller,
			SubscriptionID: old.ID,
		})
		require.ErrorIs(t, err, subscription.ErrPlanExpired)

		expired := f.get(t, old.ID)
		assert.Equal(t, subscription.StatusExpired, expired.Status)
		require.NotNil(t, expired.ExpiryDate)
		expiredAt := *expired.ExpiryDate
		assert.Equal(t, f.clock.Now(), expiredAt)

		assert.Equal(t, subscription.StatusPaused, f.get(t, basic.SubscriptionID).Status)
		assert.Equal(t, basic.SubscriptionID, f.sellerRecord(t).CurrentPlanID)

		f.clock.Advance(day)
		_, err = f.svc.Activate(t.Context(), subscription.ActivateRequest{
			SellerID:       f.seller,
			SubscriptionID: old.ID,
		})
		require.ErrorIs(t, err, subscription.ErrPlanExpired)
		assert.Equal(t, expiredAt, *f.get(t, old.ID).ExpiryDate)
	})

	t.Run("expired free plan is replaced on activate", func(t *testing.T) {
		f := newFixture(t)
		old := f.seed(t, "basic", used(30*day))

		res, err := f.svc.Activate(t.Context(), subscription.ActivateRequest{
			SellerID:   f.seller,
			TemplateID: "basic",
		})
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.NotEqual(t, old.ID, res.SubscriptionID)
		assert.Equal(t, (30 * day).Milliseconds(), res.RemainingMs)
	})
}

func TestService_MiniPlans(t *testing.T) {
	t.Parallel()

	t.Run("paid mini waits for payment and never becomes primary", func(t *testing.T) {
		f := newFixture(t)
		primary, err := f.svc.AssignDefaultPlan(t.Context(), f.seller)
		require.NoError(t, err)

		res, err := f.svc.Activate(t.Context(), subscription.ActivateRequest{
			SellerID:   f.seller,
			TemplateID: "boost",
		})
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.True(t, res.RequiresPayment)
		assert.False(t, res.Primary)
		assert.Equal(t, subscription.PaymentPending, res.PaymentStatus)
		assert.Equal(t, subscription.StatusActive, res.Status)

		f.clock.Advance(3 * day)
		confirmed, err := f.svc.ConfirmPayment(t.Context(), f.seller, res.SubscriptionID)
		require.NoError(t, err)
		assert.Equal(t, subscription.PaymentCompleted, confirmed.PaymentStatus)
		assert.Equal(t, subscription.StatusActive, confirmed.Status)
		assert.Equal(t, (10 * day).Milliseconds(), confirmed.RemainingMs)

		assert.Equal(t, primary.SubscriptionID, f.sellerRecord(t).CurrentPlanID)
	})

	t.Run("free mini activates immediately", func(t *testing.T) {
		f := newFixture(t)
		primary, err := f.svc.AssignDefaultPlan(t.Context(), f.seller)
		require.NoError(t, err)

		res, err := f.svc.Activate(t.Context(), subscription.ActivateRequest{
			SellerID:   f.seller,
			TemplateID: "gift",
		})
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.False(t, res.RequiresPayment)
		assert.Equal(t, subscription.PaymentCompleted, res.PaymentStatus)
		assert.Equal(t, subscription.StatusActive, res.Status)
		assert.Equal(t, primary.SubscriptionID, f.sellerRecord(t).CurrentPlanID)

		// The primary keeps its place but its clock stops while the top-up runs.
		assert.Equal(t, subscription.StatusPaused, f.get(t, primary.SubscriptionID).Status)
		assert.Nil(t, f.get(t, primary.SubscriptionID).LastActivatedAt)
	})

	t.Run("switch to mini template without creation", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Switch(t.Context(), subscription.ActivateRequest{
			SellerID:   f.seller,
			TemplateID: "boost",
		})
		assert.ErrorIs(t, err, subscription.ErrNotAssigned)
	})
}

func TestService_ConfirmPayment(t *testing.T) {
	t.Parallel()

	t.Run("standard plan stays paused", func(t *testing.T) {
		f := newFixture(t)
		pro := f.seed(t, "pro", func(s *subscription.Subscription) {
			s.PaymentStatus = subscription.PaymentPending
		})

		res, err := f.svc.ConfirmPayment(t.Context(), f.seller, pro.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.PaymentCompleted, res.PaymentStatus)
		assert.Equal(t, subscription.StatusPaused, res.Status)

		_, err = f.svc.Activate(t.Context(), subscription.ActivateRequest{SellerID: f.seller, SubscriptionID: pro.ID})
		require.NoError(t, err)
	})

	t.Run("pending top-up paused by a sibling starts on payment", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.AssignDefaultPlan(t.Context(), f.seller)
		require.NoError(t, err)

		boost, err := f.svc.Activate(t.Context(), subscription.ActivateRequest{SellerID: f.seller, TemplateID: "boost"})
		require.NoError(t, err)
		require.True(t, boost.RequiresPayment)

		gift, err := f.svc.Activate(t.Context(), subscription.ActivateRequest{SellerID: f.seller, TemplateID: "gift"})
		require.NoError(t, err)
		require.Equal(t, subscription.StatusPaused, f.get(t, boost.SubscriptionID).Status)

		f.clock.Advance(day)
		res, err := f.svc.ConfirmPayment(t.Context(), f.seller, boost.SubscriptionID)
		require.NoError(t, err)

		assert.Equal(t, subscription.PaymentCompleted, res.PaymentStatus)
		assert.Equal(t, subscription.StatusActive, res.Status)
		assert.Equal(t, (10 * day).Milliseconds(), res.RemainingMs)

		sub := f.get(t, boost.SubscriptionID)
		require.NotNil(t, sub.LastActivatedAt)
		assert.Equal(t, f.clock.Now(), *sub.LastActivatedAt)
		assert.Equal(t, subscription.StatusPaused, f.get(t, gift.SubscriptionID).Status)
	})

	t.Run("expired pending top-up is only marked paid", func(t *testing.T) {
		f := newFixture(t)
		boost := f.seed(t, "boost", func(s *subscription.Subscription) {
			s.Status = subscription.StatusExpired
			s.PaymentStatus = subscription.PaymentPending
		})

		res, err := f.svc.ConfirmPayment(t.Context(), f.seller, boost.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.PaymentCompleted, res.PaymentStatus)
		assert.Equal(t, subscription.StatusExpired, res.Status)
		assert.Nil(t, f.get(t, boost.ID).LastActivatedAt)
	})

	t.Run("already paid is a no-op", func(t *testing.T) {
		f := newFixture(t)
		pro := f.seed(t, "pro")
		version := f.get(t, pro.ID).Version

		_, err := f.svc.ConfirmPayment(t.Context(), f.seller, pro.ID)
		require.NoError(t, err)
		assert.Equal(t, version, f.get(t, pro.ID).Version)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ConfirmPayment(t.Context(), f.seller, uuid.New())
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})
}

func TestService_SwitchToValid(t *testing.T) {
	t.Parallel()

	t.Run("picks subscription with most time left", func(t *testing.T) {
		f := newFixture(t)
		current := f.seed(t, "pro", used(30*day), f.running)
		short := f.seed(t, "pro", used(20*day))
		long := f.seed(t, "basic", used(5*day))
		f.seed(t, "boost")
		f.setPrimary(current.ID)

		res, err := f.svc.SwitchToValid(t.Context(), f.seller)
		require.NoError(t, err)
		assert.Equal(t, long.ID, res.SubscriptionID)
		assert.Equal(t, (25 * day).Milliseconds(), res.RemainingMs)
		assert.True(t, res.Primary)

		assert.Equal(t, long.ID, f.sellerRecord(t).CurrentPlanID)
		assert.Equal(t, subscription.StatusExpired, f.get(t, current.ID).Status)
		assert.Equal(t, subscription.StatusPaused, f.get(t, short.ID).Status)
	})

	t.Run("ties keep the oldest", func(t *testing.T) {
		f := newFixture(t)
		current := f.seed(t, "basic", used(30*day))
		first := f.seed(t, "pro", used(10*day))
		f.seed(t, "pro", used(10*day))
		f.setPrimary(current.ID)

		res, err := f.svc.SwitchToValid(t.Context(), f.seller)
		require.NoError(t, err)
		assert.Equal(t, first.ID, res.SubscriptionID)
	})

	t.Run("current plan still valid", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.AssignDefaultPlan(t.Context(), f.seller)
		require.NoError(t, err)
		f.seed(t, "pro")

		_, err = f.svc.SwitchToValid(t.Context(), f.seller)
		assert.ErrorIs(t, err, subscription.ErrPlanStillValid)
		assert.Equal(t, subscription.KindStillValid, subscription.KindOf(err))
	})

	t.Run("no valid alternative", func(t *testing.T) {
		f := newFixture(t)
		current := f.seed(t, "basic", used(30*day))
		f.seed(t, "pro", used(30*day))
		f.seed(t, "pro", func(s *subscription.Subscription) { s.PaymentStatus = subscription.PaymentPending })
		f.setPrimary(current.ID)

		_, err := f.svc.SwitchToValid(t.Context(), f.seller)
		assert.ErrorIs(t, err, subscription.ErrNoValidPlan)
		assert.Equal(t, subscription.KindNotFound, subscription.KindOf(err))
	})
}

func TestService_ReactivateCurrent(t *testing.T) {
	t.Parallel()

	t.Run("resumes paused primary", func(t *testing.T) {
		f := newFixture(t)
		current := f.seed(t, "pro", used(10*day))
		other := f.seed(t, "basic", f.running)
		f.setPrimary(current.ID)

		f.clock.Advance(day)
		res, err := f.svc.ReactivateCurrent(t.Context(), f.seller)
		require.NoError(t, err)
		assert.Equal(t, current.ID, res.SubscriptionID)
		assert.Equal(t, subscription.StatusActive, res.Status)
		assert.Equal(t, (20 * day).Milliseconds(), res.RemainingMs)

		paused := f.get(t, other.ID)
		assert.Equal(t, subscription.StatusPaused, paused.Status)
		assert.Equal(t, day, paused.AccumulatedUsed)
	})

	t.Run("not paused", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.AssignDefaultPlan(t.Context(), f.seller)
		require.NoError(t, err)

		_, err = f.svc.ReactivateCurrent(t.Context(), f.seller)
		assert.ErrorIs(t, err, subscription.ErrPlanNotPaused)
	})

	t.Run("no primary", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "pro")

		_, err := f.svc.ReactivateCurrent(t.Context(), f.seller)
		assert.ErrorIs(t, err, subscription.ErrNoPrimaryPlan)
	})

	t.Run("paused with no time left expires", func(t *testing.T) {
		f := newFixture(t)
		current := f.seed(t, "pro", used(30*day))
		f.setPrimary(current.ID)

		_, err := f.svc.ReactivateCurrent(t.Context(), f.seller)
		assert.ErrorIs(t, err, subscription.ErrPlanExpired)
		assert.Equal(t, subscription.StatusExpired, f.get(t, current.ID).Status)

		_, err = f.svc.ReactivateCurrent(t.Context(), f.seller)
		assert.ErrorIs(t, err, subscription.ErrPlanExpired)
	})
}

func TestService_GetRemaining(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	running := f.seed(t, "basic", f.running)
	paused := f.seed(t, "pro", used(29*day))
	orphan := f.seed(t, "basic", func(s *subscription.Subscription) { s.TemplateID = "retired" })
	f.setPrimary(running.ID)

	f.clock.Advance(30 * day)
	infos, err := f.svc.GetRemaining(t.Context(), f.seller)
	require.NoError(t, err)
	require.Len(t, infos, 3)

	assert.Equal(t, running.ID, infos[0].SubscriptionID)
	assert.True(t, infos[0].Primary)
	assert.Equal(t, subscription.StatusExpired, infos[0].Status)
	assert.Zero(t, infos[0].RemainingMs)

	assert.Equal(t, paused.ID, infos[1].SubscriptionID)
	assert.Equal(t, day.Milliseconds(), infos[1].RemainingMs)
	require.NotNil(t, infos[1].ExpiryDate)
	assert.Equal(t, f.clock.Now().Add(day), *infos[1].ExpiryDate)

	assert.Equal(t, orphan.ID, infos[2].SubscriptionID)
	assert.Zero(t, infos[2].RemainingMs)

	assert.Equal(t, subscription.StatusExpired, f.get(t, running.ID).Status)
}

func TestService_ReadsDoNotRewritePausedProjection(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	paused := f.seed(t, "pro", used(10*day))

	// The first summary fills in missing usage counters.
	_, err := f.svc.UsageSummary(t.Context(), f.seller)
	require.NoError(t, err)
	version := f.get(t, paused.ID).Version

	first, err := f.svc.GetRemaining(t.Context(), f.seller)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	second, err := f.svc.GetRemaining(t.Context(), f.seller)
	require.NoError(t, err)
	_, err = f.svc.UsageSummary(t.Context(), f.seller)
	require.NoError(t, err)

	require.Len(t, second, 1)
	assert.Equal(t, first[0].RemainingMs, second[0].RemainingMs)
	require.NotNil(t, second[0].ExpiryDate)
	assert.Equal(t, f.clock.Now().Add(20*day), *second[0].ExpiryDate)

	stored := f.get(t, paused.ID)
	assert.Equal(t, version, stored.Version)
	assert.Nil(t, stored.ExpiryDate)
}
