package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/dmitrymomot/retailplan/pkg/locker"
	"github.com/dmitrymomot/retailplan/pkg/logger"
)

// Service defines the plan validity and usage engine.
type Service interface {
	// Plan lifecycle
	Activate(ctx context.Context, req ActivateRequest) (*ActivationResult, error)
	Switch(ctx context.Context, req ActivateRequest) (*ActivationResult, error)
	SwitchToValid(ctx context.Context, sellerID uuid.UUID) (*ActivationResult, error)
	ReactivateCurrent(ctx context.Context, sellerID uuid.UUID) (*ActivationResult, error)
	AssignDefaultPlan(ctx context.Context, sellerID uuid.UUID) (*ActivationResult, error)
	ConfirmPayment(ctx context.Context, sellerID, subscriptionID uuid.UUID) (*ActivationResult, error)
	GetRemaining(ctx context.Context, sellerID uuid.UUID) ([]RemainingInfo, error)

	// Usage quotas
	CanAdd(ctx context.Context, sellerID uuid.UUID, res Resource, count int64) error
	AdjustUsage(ctx context.Context, sellerID uuid.UUID, res Resource, delta int64) (*UsageSummary, error)
	UsageSummary(ctx context.Context, sellerID uuid.UUID) (*UsageSummary, error)
}

// Locker serializes writers per key. See pkg/locker for implementations.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ActivateRequest selects the target subscription either by id or by template id.
// SubscriptionID takes precedence when both are set.
type ActivateRequest struct {
	SellerID       uuid.UUID `json:"seller_id"`
	TemplateID     string    `json:"template_id,omitempty"`
	SubscriptionID uuid.UUID `json:"subscription_id,omitempty"`
}

// ActivationResult describes the target subscription after a lifecycle operation.
type ActivationResult struct {
	SubscriptionID  uuid.UUID      `json:"subscription_id"`
	TemplateID      string         `json:"template_id"`
	Status          Status         `json:"status"`
	PaymentStatus   PaymentStatus  `json:"payment_status"`
	RemainingMs     int64          `json:"remaining_ms"`
	Remaining       RemainingParts `json:"remaining"`
	ExpiryDate      *time.Time     `json:"expiry_date,omitempty"`
	Primary         bool           `json:"primary"`
	Created         bool           `json:"created,omitempty"`
	AlreadyActive   bool           `json:"already_active,omitempty"`
	RequiresPayment bool           `json:"requires_payment,omitempty"`
}

// RemainingInfo is the per-subscription validity report.
type RemainingInfo struct {
	SubscriptionID uuid.UUID      `json:"subscription_id"`
	TemplateID     string         `json:"template_id"`
	PlanType       PlanType       `json:"plan_type"`
	Status         Status         `json:"status"`
	PaymentStatus  PaymentStatus  `json:"payment_status"`
	RemainingMs    int64          `json:"remaining_ms"`
	Remaining      RemainingParts `json:"remaining"`
	ExpiryDate     *time.Time     `json:"expiry_date,omitempty"`
	Primary        bool           `json:"primary"`
}

type service struct {
	store     Store
	templates TemplateStore
	locker    Locker
	outbox    *Outbox
	metrics   *Metrics
	log       *slog.Logger
	now       func() time.Time

	retryAttempts int
	retryInterval time.Duration
}

// NewService creates the engine. Panics if a required collaborator is nil.
// Without options it uses an in-process per-seller lock, no sync notifications
// and the system clock.
func NewService(store Store, templates TemplateStore, opts ...ServiceOption) Service {
	if store == nil {
		panic("subscription: Store is required")
	}
	if templates == nil {
		panic("subscription: TemplateStore is required")
	}

	s := &service{
		store:         store,
		templates:     templates,
		locker:        locker.NewMemory(),
		log:           slog.Default(),
		now:           time.Now,
		retryAttempts: 3,
		retryInterval: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Activate makes the target subscription the running one, creating it from a
// free or mini template when needed.
func (s *service) Activate(ctx context.Context, req ActivateRequest) (*ActivationResult, error) {
	return s.activate(ctx, "activate", req, true)
}

// Switch is Activate without creating missing subscriptions.
func (s *service) Switch(ctx context.Context, req ActivateRequest) (*ActivationResult, error) {
	return s.activate(ctx, "switch", req, false)
}

func (s *service) activate(ctx context.Context, op string, req ActivateRequest, allowCreate bool) (*ActivationResult, error) {
	if req.SubscriptionID == uuid.Nil && req.TemplateID == "" {
		return nil, s.observe(ctx, op, req.SellerID, ErrInvalidTarget)
	}

	var res *ActivationResult
	err := s.mutate(ctx, req.SellerID, func(ctx context.Context, u *unitOfWork) error {
		var err error
		res, err = s.setActivePlan(ctx, u, req, allowCreate)
		return err
	})
	if err != nil {
		return nil, s.observe(ctx, op, req.SellerID, err)
	}
	s.observe(ctx, op, req.SellerID, nil)
	return res, nil
}

// setActivePlan resolves the target, pauses every sibling and starts the target's clock.
// Mini targets run alongside and never replace the seller's primary subscription.
func (s *service) setActivePlan(ctx context.Context, u *unitOfWork, req ActivateRequest, allowCreate bool) (*ActivationResult, error) {
	target, created, err := s.resolveTarget(ctx, u, req, allowCreate)
	if err != nil {
		return nil, err
	}
	if target.Backfill() {
		u.touch(target)
	}

	if !target.IsPaid() {
		if !target.IsMini() {
			return nil, ErrPaymentRequired
		}
		res := u.result(target)
		res.Created = created
		res.RequiresPayment = true
		return res, nil
	}

	if u.seller.CurrentPlanID == target.ID && target.IsActive() {
		u.refresh(target)
		res := u.result(target)
		res.AlreadyActive = true
		return res, nil
	}

	u.pauseOthers(target.ID)

	if Remaining(target, target.Template, u.now) <= 0 {
		u.refresh(target)
		return nil, ErrPlanExpired
	}

	Activate(target, target.Template, u.now)
	u.touch(target)
	if !target.IsMini() {
		u.setPrimary(target.ID)
	}

	res := u.result(target)
	res.Created = created
	return res, nil
}

func (s *service) resolveTarget(ctx context.Context, u *unitOfWork, req ActivateRequest, allowCreate bool) (*Subscription, bool, error) {
	if req.SubscriptionID != uuid.Nil {
		sub := u.find(req.SubscriptionID)
		if sub == nil {
			return nil, false, ErrSubscriptionNotFound
		}
		if sub.Template == nil {
			return nil, false, ErrTemplateNotFound
		}
		return sub, false, nil
	}

	tpl, err := s.templates.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, false, storageError(err)
	}

	if !tpl.IsMini() {
		if existing := u.latestOnTemplate(tpl.ID); existing != nil {
			if !allowCreate || Remaining(existing, existing.Template, u.now) > 0 {
				return existing, false, nil
			}
		}
	}
	if !allowCreate {
		return nil, false, ErrNotAssigned
	}

	if !tpl.IsMini() && !tpl.IsFree() {
		return nil, false, ErrPaymentRequired
	}

	sub := newSubscription(u.seller.ID, tpl, u.now)
	if tpl.IsMini() {
		// Top-ups are created running; the clock starts once payment completes.
		sub.Status = StatusActive
		if !tpl.IsFree() {
			sub.PaymentStatus = PaymentPending
		}
	}
	u.add(sub)
	return sub, true, nil
}

// latestOnTemplate returns the newest subscription on a template, preferring ones with validity left.
func (u *unitOfWork) latestOnTemplate(templateID string) *Subscription {
	var latest *Subscription
	for i := len(u.subs) - 1; i >= 0; i-- {
		sub := u.subs[i]
		if sub.TemplateID != templateID {
			continue
		}
		if Remaining(sub, sub.Template, u.now) > 0 {
			return sub
		}
		if latest == nil {
			latest = sub
		}
	}
	return latest
}

// SwitchToValid moves an expired primary subscription to the sibling with the most validity left.
func (s *service) SwitchToValid(ctx context.Context, sellerID uuid.UUID) (*ActivationResult, error) {
	var res *ActivationResult
	err := s.mutate(ctx, sellerID, func(ctx context.Context, u *unitOfWork) error {
		if p := u.primary(); p != nil {
			u.refresh(p)
			if !p.IsExpired() {
				return ErrPlanStillValid
			}
		}

		var (
			best     *Subscription
			bestLeft time.Duration
		)
		for _, sub := range u.subs {
			if sub.ID == u.seller.CurrentPlanID || sub.IsExpired() || sub.IsMini() ||
				!sub.IsPaid() || sub.Template == nil {
				continue
			}
			left := Remaining(sub, sub.Template, u.now)
			// Strict comparison keeps the oldest subscription on ties.
			if left > 0 && (best == nil || left > bestLeft) {
				best, bestLeft = sub, left
			}
		}
		if best == nil {
			return ErrNoValidPlan
		}

		var err error
		res, err = s.setActivePlan(ctx, u, ActivateRequest{SellerID: sellerID, SubscriptionID: best.ID}, false)
		return err
	})
	if err != nil {
		return nil, s.observe(ctx, "switch_to_valid", sellerID, err)
	}
	s.observe(ctx, "switch_to_valid", sellerID, nil)
	return res, nil
}

// ReactivateCurrent resumes the seller's paused primary subscription and pauses the rest.
func (s *service) ReactivateCurrent(ctx context.Context, sellerID uuid.UUID) (*ActivationResult, error) {
	var res *ActivationResult
	err := s.mutate(ctx, sellerID, func(ctx context.Context, u *unitOfWork) error {
		p := u.primary()
		switch {
		case p == nil:
			return ErrNoPrimaryPlan
		case p.Template == nil:
			return ErrTemplateNotFound
		case p.IsExpired():
			return ErrPlanExpired
		case p.Status != StatusPaused:
			return ErrPlanNotPaused
		}

		if Remaining(p, p.Template, u.now) <= 0 {
			u.refresh(p)
			return ErrPlanExpired
		}

		u.pauseOthers(p.ID)
		Activate(p, p.Template, u.now)
		u.touch(p)
		res = u.result(p)
		return nil
	})
	if err != nil {
		return nil, s.observe(ctx, "reactivate_current", sellerID, err)
	}
	s.observe(ctx, "reactivate_current", sellerID, nil)
	return res, nil
}

// AssignDefaultPlan gives a new seller a running subscription on the cheapest free template.
// A seller whose primary subscription still has validity gets it back unchanged; an
// expired primary is replaced.
func (s *service) AssignDefaultPlan(ctx context.Context, sellerID uuid.UUID) (*ActivationResult, error) {
	var res *ActivationResult
	err := s.mutate(ctx, sellerID, func(ctx context.Context, u *unitOfWork) error {
		if p := u.primary(); p != nil && p.Template != nil {
			if u.refresh(p); !p.IsExpired() {
				res = u.result(p)
				res.AlreadyActive = p.IsActive()
				return nil
			}
		}

		tpl, err := s.templates.FindActiveFreeTemplate(ctx)
		if errors.Is(err, ErrTemplateNotFound) {
			return ErrNoPlan
		}
		if err != nil {
			return storageError(err)
		}

		sub := newSubscription(u.seller.ID, tpl, u.now)
		u.add(sub)
		u.pauseOthers(sub.ID)
		Activate(sub, tpl, u.now)
		if !sub.IsMini() {
			u.setPrimary(sub.ID)
		}
		res = u.result(sub)
		res.Created = true
		return nil
	})
	if err != nil {
		return nil, s.observe(ctx, "assign_default", sellerID, err)
	}
	s.observe(ctx, "assign_default", sellerID, nil)
	return res, nil
}

// ConfirmPayment records an externally verified payment. Pending top-ups start running.
func (s *service) ConfirmPayment(ctx context.Context, sellerID, subscriptionID uuid.UUID) (*ActivationResult, error) {
	var res *ActivationResult
	err := s.mutate(ctx, sellerID, func(ctx context.Context, u *unitOfWork) error {
		sub := u.find(subscriptionID)
		if sub == nil {
			return ErrSubscriptionNotFound
		}
		if sub.IsPaid() {
			res = u.result(sub)
			return nil
		}

		sub.PaymentStatus = PaymentCompleted
		u.touch(sub)

		// A pending top-up may have been paused by a sibling activation before payment cleared.
		if sub.IsMini() && sub.LastActivatedAt == nil && !sub.IsExpired() {
			var err error
			res, err = s.setActivePlan(ctx, u, ActivateRequest{SellerID: sellerID, SubscriptionID: sub.ID}, false)
			return err
		}
		res = u.result(sub)
		return nil
	})
	if err != nil {
		return nil, s.observe(ctx, "confirm_payment", sellerID, err)
	}
	s.observe(ctx, "confirm_payment", sellerID, nil)
	return res, nil
}

// GetRemaining reports validity for every subscription, refreshing each as a side effect.
func (s *service) GetRemaining(ctx context.Context, sellerID uuid.UUID) ([]RemainingInfo, error) {
	var out []RemainingInfo
	err := s.mutate(ctx, sellerID, func(ctx context.Context, u *unitOfWork) error {
		out = make([]RemainingInfo, 0, len(u.subs))
		for _, sub := range u.subs {
			left := u.refresh(sub)
			out = append(out, RemainingInfo{
				SubscriptionID: sub.ID,
				TemplateID:     sub.TemplateID,
				PlanType:       sub.PlanType,
				Status:         sub.Status,
				PaymentStatus:  sub.PaymentStatus,
				RemainingMs:    left.Milliseconds(),
				Remaining:      FormatRemaining(left),
				ExpiryDate:     u.expiry(sub, left),
				Primary:        sub.ID == u.seller.CurrentPlanID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, s.observe(ctx, "get_remaining", sellerID, err)
	}
	s.observe(ctx, "get_remaining", sellerID, nil)
	return out, nil
}

func (u *unitOfWork) result(sub *Subscription) *ActivationResult {
	left := Remaining(sub, sub.Template, u.now)
	return &ActivationResult{
		SubscriptionID: sub.ID,
		TemplateID:     sub.TemplateID,
		Status:         sub.Status,
		PaymentStatus:  sub.PaymentStatus,
		RemainingMs:    left.Milliseconds(),
		Remaining:      FormatRemaining(left),
		ExpiryDate:     u.expiry(sub, left),
		Primary:        sub.ID == u.seller.CurrentPlanID,
	}
}

// mutate runs fn against a freshly loaded unit of work while holding the seller lock,
// then commits whatever fn changed. Business failures still commit, so an Expired
// activation keeps the sibling pauses it performed; infrastructure failures and
// discarded units commit nothing. Optimistic conflicts reload and rerun fn.
func (s *service) mutate(ctx context.Context, sellerID uuid.UUID, fn func(context.Context, *unitOfWork) error) error {
	unlock, err := s.locker.Lock(ctx, lockKey(sellerID))
	if err != nil {
		return errors.Join(ErrLockUnavailable, err)
	}
	defer unlock()

	attempt := func() error {
		u, err := s.load(ctx, sellerID)
		if err != nil {
			return backoff.Permanent(err)
		}

		opErr := fn(ctx, u)
		if opErr != nil && !IsBusiness(opErr) {
			return backoff.Permanent(opErr)
		}

		if cs := u.changeset(); !cs.Empty() {
			if err := s.store.Commit(ctx, cs); err != nil {
				if errors.Is(err, ErrVersionConflict) {
					s.log.WarnContext(ctx, "subscription commit conflict, retrying",
						logger.SellerID(sellerID), logger.Error(err))
					return err
				}
				return backoff.Permanent(storageError(err))
			}
			s.publish(sellerID, cs.At)
		}

		if opErr != nil {
			return backoff.Permanent(opErr)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval
	return backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(s.retryAttempts, 0))), ctx))
}

func (s *service) publish(sellerID uuid.UUID, at time.Time) {
	if s.outbox == nil {
		return
	}
	s.outbox.Publish(SyncEvent{SellerID: sellerID, Topic: TopicSubscriptions, At: at})
}

// observe records the outcome of an operation and logs infrastructure failures.
func (s *service) observe(ctx context.Context, op string, sellerID uuid.UUID, err error) error {
	kind := KindOf(err)
	s.metrics.operation(op, kind)

	switch kind {
	case KindNone:
		s.log.DebugContext(ctx, "plan operation completed", logger.Operation(op), logger.SellerID(sellerID))
	case KindInternal:
		s.log.ErrorContext(ctx, "plan operation failed",
			logger.Operation(op), logger.SellerID(sellerID), logger.Error(err))
	case KindRetryable:
		s.log.WarnContext(ctx, "plan operation interrupted",
			logger.Operation(op), logger.SellerID(sellerID), logger.Error(err))
	default:
		s.log.InfoContext(ctx, "plan operation rejected",
			logger.Operation(op), logger.SellerID(sellerID), slog.String("kind", string(kind)))
	}
	return err
}

func lockKey(sellerID uuid.UUID) string {
	return "seller:" + sellerID.String()
}
