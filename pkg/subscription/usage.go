package subscription

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/dmitrymomot/retailplan/pkg/logger"
)

// ResourceUsage aggregates one resource across the seller's running subscriptions.
type ResourceUsage struct {
	Limit     Quota  `json:"limit"`
	Used      int64  `json:"used"`
	Remaining *int64 `json:"remaining"` // nil when unlimited
}

// SubscriptionUsage is the per-subscription line of a usage summary.
type SubscriptionUsage struct {
	SubscriptionID uuid.UUID          `json:"subscription_id"`
	TemplateID     string             `json:"template_id"`
	TemplateName   string             `json:"template_name,omitempty"`
	PlanType       PlanType           `json:"plan_type"`
	Status         Status             `json:"status"`
	PaymentStatus  PaymentStatus      `json:"payment_status"`
	RemainingMs    int64              `json:"remaining_ms"`
	Remaining      RemainingParts     `json:"remaining"`
	ExpiryDate     *time.Time         `json:"expiry_date,omitempty"`
	Limits         map[Resource]Quota `json:"limits"`
	Usage          map[Resource]int64 `json:"usage"`
	IsExpired      bool               `json:"is_expired"`
}

// UsageSummary reports aggregate quotas and every subscription's detail.
type UsageSummary struct {
	SellerID      uuid.UUID                  `json:"seller_id"`
	Resources     map[Resource]ResourceUsage `json:"resources"`
	Subscriptions []SubscriptionUsage        `json:"subscriptions"`
}

// CanAdd reports whether count more units of res fit into the seller's eligible subscriptions.
// Returns a *CapacityError when they do not. Nothing is written.
func (s *service) CanAdd(ctx context.Context, sellerID uuid.UUID, res Resource, count int64) error {
	if !res.Valid() {
		return s.observe(ctx, "can_add", sellerID, ErrInvalidResource)
	}
	if count <= 0 {
		return nil
	}

	u, err := s.load(ctx, sellerID)
	if err != nil {
		return s.observe(ctx, "can_add", sellerID, err)
	}

	var spare int64
	for _, sub := range u.eligible(false) {
		n, bounded := sub.Limit(res).Spare(sub.Used(res))
		if !bounded {
			return nil
		}
		spare += n
	}
	if spare < count {
		return &CapacityError{Resource: res, Requested: count, Available: spare}
	}
	return nil
}

// AdjustUsage consumes (delta > 0) or releases (delta < 0) quota across the seller's
// eligible subscriptions. Consumption is all-or-nothing.
func (s *service) AdjustUsage(ctx context.Context, sellerID uuid.UUID, res Resource, delta int64) (*UsageSummary, error) {
	if !res.Valid() {
		return nil, s.observe(ctx, "adjust_usage", sellerID, ErrInvalidResource)
	}
	if delta == 0 {
		return s.UsageSummary(ctx, sellerID)
	}

	var summary *UsageSummary
	err := s.mutate(ctx, sellerID, func(ctx context.Context, u *unitOfWork) error {
		subs := u.eligible(false)
		if len(subs) == 0 && delta > 0 {
			sub, err := s.bootstrap(ctx, u)
			if err != nil {
				return err
			}
			subs = []*Subscription{sub}
		}

		byPriority(subs)
		if delta > 0 {
			if err := consume(u, subs, res, delta); err != nil {
				u.discard()
				return err
			}
		} else {
			release(u, subs, res, -delta)
		}

		summary = u.summary()
		return nil
	})
	if err != nil {
		return nil, s.observe(ctx, "adjust_usage", sellerID, err)
	}
	s.observe(ctx, "adjust_usage", sellerID, nil)
	s.metrics.adjustment(res, delta)
	return summary, nil
}

// UsageSummary aggregates quotas over running subscriptions. Subscriptions found
// expired but not yet marked are marked as a side effect.
func (s *service) UsageSummary(ctx context.Context, sellerID uuid.UUID) (*UsageSummary, error) {
	var summary *UsageSummary
	err := s.mutate(ctx, sellerID, func(ctx context.Context, u *unitOfWork) error {
		summary = u.summary()
		return nil
	})
	if err != nil {
		return nil, s.observe(ctx, "usage_summary", sellerID, err)
	}
	s.observe(ctx, "usage_summary", sellerID, nil)
	return summary, nil
}

// bootstrap gives a seller with nothing eligible a running subscription, reusing the
// latest paid one with a fresh validity window or falling back to the free template.
func (s *service) bootstrap(ctx context.Context, u *unitOfWork) (*Subscription, error) {
	reuse, _, ok := lo.FindLastIndexOf(u.subs, func(sub *Subscription) bool {
		return sub.IsPaid() && sub.Template != nil
	})
	if ok {
		reuse.AccumulatedUsed = 0
		reuse.LastActivatedAt = nil
		reuse.ExpiryDate = nil
		reuse.Status = StatusPaused
		reuse.Backfill()
		u.pauseOthers(reuse.ID)
		Activate(reuse, reuse.Template, u.now)
		u.touch(reuse)
		if !reuse.IsMini() {
			u.setPrimary(reuse.ID)
		}
		s.log.InfoContext(ctx, "reactivated subscription for usage",
			logger.SellerID(u.seller.ID), logger.SubscriptionID(reuse.ID))
		return reuse, nil
	}

	tpl, err := s.templates.FindActiveFreeTemplate(ctx)
	if errors.Is(err, ErrTemplateNotFound) {
		return nil, ErrNoPlan
	}
	if err != nil {
		return nil, storageError(err)
	}

	sub := newSubscription(u.seller.ID, tpl, u.now)
	u.add(sub)
	u.pauseOthers(sub.ID)
	Activate(sub, tpl, u.now)
	if !sub.IsMini() {
		u.setPrimary(sub.ID)
	}
	s.log.InfoContext(ctx, "assigned free plan for usage",
		logger.SellerID(u.seller.ID), logger.SubscriptionID(sub.ID), logger.TemplateID(tpl.ID))
	return sub, nil
}

// byPriority orders subscriptions: active first, then soonest expiry, then oldest.
func byPriority(subs []*Subscription) {
	slices.SortStableFunc(subs, func(a, b *Subscription) int {
		if a.IsActive() != b.IsActive() {
			if a.IsActive() {
				return -1
			}
			return 1
		}
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate != nil:
			return 1
		case a.ExpiryDate != nil && b.ExpiryDate == nil:
			return -1
		case a.ExpiryDate != nil && b.ExpiryDate != nil:
			if c := a.ExpiryDate.Compare(*b.ExpiryDate); c != 0 {
				return c
			}
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

// consume takes delta units in priority order. On shortfall nothing is applied.
func consume(u *unitOfWork, subs []*Subscription, res Resource, delta int64) error {
	plan := make(map[*Subscription]int64, len(subs))
	left := delta
	for _, sub := range subs {
		if left == 0 {
			break
		}
		take := left
		if spare, bounded := sub.Limit(res).Spare(sub.Used(res)); bounded {
			take = min(spare, left)
		}
		if take > 0 {
			plan[sub] = take
			left -= take
		}
	}
	if left > 0 {
		return &CapacityError{Resource: res, Requested: delta, Available: delta - left}
	}

	for sub, take := range plan {
		sub.Usage[res] += take
		u.touch(sub)
	}
	return nil
}

// release returns amount units in reverse priority order, never below zero per subscription.
func release(u *unitOfWork, subs []*Subscription, res Resource, amount int64) {
	for _, sub := range lo.Reverse(slices.Clone(subs)) {
		if amount == 0 {
			return
		}
		give := min(sub.Used(res), amount)
		if give <= 0 {
			continue
		}
		sub.Usage[res] -= give
		amount -= give
		u.touch(sub)
	}
}

func (u *unitOfWork) summary() *UsageSummary {
	out := &UsageSummary{
		SellerID:      u.seller.ID,
		Resources:     make(map[Resource]ResourceUsage, len(Resources)),
		Subscriptions: make([]SubscriptionUsage, 0, len(u.subs)),
	}

	for _, sub := range u.subs {
		if sub.Backfill() {
			u.touch(sub)
		}
		left := u.refresh(sub)

		name := ""
		if sub.Template != nil {
			name = sub.Template.Name
		}
		out.Subscriptions = append(out.Subscriptions, SubscriptionUsage{
			SubscriptionID: sub.ID,
			TemplateID:     sub.TemplateID,
			TemplateName:   name,
			PlanType:       sub.PlanType,
			Status:         sub.Status,
			PaymentStatus:  sub.PaymentStatus,
			RemainingMs:    left.Milliseconds(),
			Remaining:      FormatRemaining(left),
			ExpiryDate:     u.expiry(sub, left),
			Limits:         maps.Clone(sub.Limits),
			Usage:          maps.Clone(sub.Usage),
			IsExpired:      sub.IsExpired(),
		})
	}

	running := lo.Filter(u.eligible(false), func(sub *Subscription, _ int) bool {
		return sub.IsActive()
	})
	for _, res := range Resources {
		total := Bounded(0)
		var used int64
		for _, sub := range running {
			total = total.Add(sub.Limit(res))
			used += sub.Used(res)
		}
		agg := ResourceUsage{Limit: total, Used: used}
		if n, bounded := total.Spare(used); bounded {
			agg.Remaining = &n
		}
		out.Resources[res] = agg
	}
	return out
}
