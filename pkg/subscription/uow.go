package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// unitOfWork holds one seller's records loaded for a single operation and
// tracks which of them were mutated, so they can be committed together.
type unitOfWork struct {
	now         time.Time
	seller      *Seller
	subs        []*Subscription // creation order
	dirty       map[uuid.UUID]bool
	sellerDirty bool
	discarded   bool
}

// load reads the seller and all its subscriptions, resolving templates.
// Subscriptions whose template no longer exists keep a nil Template.
func (s *service) load(ctx context.Context, sellerID uuid.UUID) (*unitOfWork, error) {
	seller, err := s.store.GetSeller(ctx, sellerID)
	if err != nil {
		return nil, storageError(err)
	}
	subs, err := s.store.FindBySeller(ctx, sellerID)
	if err != nil {
		return nil, storageError(err)
	}

	resolved := make(map[string]*Template)
	for _, sub := range subs {
		tpl, ok := resolved[sub.TemplateID]
		if !ok {
			tpl, err = s.templates.GetTemplate(ctx, sub.TemplateID)
			if err != nil && !errors.Is(err, ErrTemplateNotFound) {
				return nil, storageError(err)
			}
			resolved[sub.TemplateID] = tpl
		}
		sub.Template = tpl
	}

	return &unitOfWork{
		now:    s.now().UTC(),
		seller: seller,
		subs:   subs,
		dirty:  make(map[uuid.UUID]bool),
	}, nil
}

func (u *unitOfWork) touch(sub *Subscription) {
	u.dirty[sub.ID] = true
}

func (u *unitOfWork) add(sub *Subscription) {
	u.subs = append(u.subs, sub)
	u.touch(sub)
}

// discard drops every pending mutation; nothing is committed for this attempt.
func (u *unitOfWork) discard() {
	u.discarded = true
}

func (u *unitOfWork) find(id uuid.UUID) *Subscription {
	for _, sub := range u.subs {
		if sub.ID == id {
			return sub
		}
	}
	return nil
}

// primary returns the subscription referenced by the seller, or nil.
func (u *unitOfWork) primary() *Subscription {
	if !u.seller.HasPrimary() {
		return nil
	}
	return u.find(u.seller.CurrentPlanID)
}

func (u *unitOfWork) setPrimary(id uuid.UUID) {
	if u.seller.CurrentPlanID != id {
		u.seller.CurrentPlanID = id
		u.sellerDirty = true
	}
}

// pauseOthers stops the clock of every subscription except the one with keep.
func (u *unitOfWork) pauseOthers(keep uuid.UUID) {
	for _, sub := range u.subs {
		if sub.ID == keep {
			continue
		}
		if Pause(sub, u.now) {
			u.touch(sub)
		}
	}
}

// refresh re-projects the expiry of sub and returns its remaining validity.
// Subscriptions without a resolvable template are reported as 0 and left untouched.
// A paused projection moves with the clock, so it is only stored once validity runs out.
func (u *unitOfWork) refresh(sub *Subscription) time.Duration {
	if sub.Template == nil {
		return 0
	}
	remaining := Remaining(sub, sub.Template, u.now)
	if sub.Status == StatusPaused && remaining > 0 {
		return remaining
	}
	if Refresh(sub, sub.Template, u.now, remaining) {
		u.touch(sub)
	}
	return remaining
}

// expiry is the expiry date to report for sub given its remaining validity.
func (u *unitOfWork) expiry(sub *Subscription, remaining time.Duration) *time.Time {
	if sub.Status == StatusPaused && remaining > 0 {
		return timePtr(u.now.Add(remaining))
	}
	return cloneTime(sub.ExpiryDate)
}

// eligible returns paid subscriptions with a resolved template, backfilled from it.
// Unless includeExpired is set, only subscriptions with validity left are returned.
func (u *unitOfWork) eligible(includeExpired bool) []*Subscription {
	out := make([]*Subscription, 0, len(u.subs))
	for _, sub := range u.subs {
		if !sub.IsPaid() || sub.Template == nil {
			continue
		}
		if sub.Backfill() {
			u.touch(sub)
		}
		if !includeExpired && Remaining(sub, sub.Template, u.now) <= 0 {
			continue
		}
		out = append(out, sub)
	}
	return out
}

func (u *unitOfWork) changeset() *Changeset {
	cs := &Changeset{SellerID: u.seller.ID, At: u.now}
	if u.discarded {
		return cs
	}
	if u.sellerDirty {
		u.seller.UpdatedAt = u.now
		cs.Seller = u.seller
	}
	for _, sub := range u.subs {
		if u.dirty[sub.ID] {
			sub.UpdatedAt = u.now
			cs.Subscriptions = append(cs.Subscriptions, sub)
		}
	}
	return cs
}

func newSubscription(sellerID uuid.UUID, tpl *Template, now time.Time) *Subscription {
	sub := &Subscription{
		ID:            uuid.New(),
		SellerID:      sellerID,
		TemplateID:    tpl.ID,
		PlanType:      tpl.PlanType,
		Status:        StatusPaused,
		PaymentStatus: PaymentCompleted,
		CreatedAt:     now,
		UpdatedAt:     now,
		Template:      tpl,
	}
	if sub.PlanType == "" {
		sub.PlanType = PlanTypeStandard
	}
	sub.Backfill()
	return sub
}
