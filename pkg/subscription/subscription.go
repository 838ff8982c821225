package subscription

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Subscription is a seller's instance of a plan template (a "plan order").
// It carries its own time accounting and per-resource quota usage.
type Subscription struct {
	ID              uuid.UUID
	SellerID        uuid.UUID
	TemplateID      string
	PlanType        PlanType
	Status          Status
	PaymentStatus   PaymentStatus
	ExpiryDate      *time.Time
	LastActivatedAt *time.Time
	AccumulatedUsed time.Duration  // consumed while not active, folded in at each pause
	ValidityCap     *time.Duration // optional manual ceiling on remaining validity
	Limits          map[Resource]Quota
	Usage           map[Resource]int64
	Version         int64 // optimistic concurrency token, 0 for unsaved records
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Template is resolved by the engine on load and never persisted.
	Template *Template
}

// IsMini reports whether the subscription is a top-up.
func (s *Subscription) IsMini() bool {
	return s.PlanType == PlanTypeMini || s.Template.IsMini()
}

func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

func (s *Subscription) IsExpired() bool {
	return s.Status == StatusExpired
}

func (s *Subscription) IsPaid() bool {
	return s.PaymentStatus == PaymentCompleted
}

// Limit returns the subscription's own quota for res. Missing limits read as Bounded(0);
// call Backfill first to copy them from the template.
func (s *Subscription) Limit(res Resource) Quota {
	if q, ok := s.Limits[res]; ok {
		return q
	}
	return Bounded(0)
}

// Used returns the consumed count for res.
func (s *Subscription) Used(res Resource) int64 {
	return s.Usage[res]
}

// Backfill copies missing limit and usage entries from the template.
// Entries already present are never touched. Reports whether anything changed.
func (s *Subscription) Backfill() bool {
	if s.Template == nil {
		return false
	}
	changed := false
	if s.Limits == nil {
		s.Limits = make(map[Resource]Quota, len(Resources))
	}
	if s.Usage == nil {
		s.Usage = make(map[Resource]int64, len(Resources))
	}
	for _, res := range Resources {
		if _, ok := s.Limits[res]; !ok {
			s.Limits[res] = s.Template.Limit(res)
			changed = true
		}
		if _, ok := s.Usage[res]; !ok {
			s.Usage[res] = 0
			changed = true
		}
	}
	if s.PlanType == "" && s.Template.PlanType != "" {
		s.PlanType = s.Template.PlanType
		changed = true
	}
	return changed
}

// Clone returns a deep copy. The resolved template pointer is shared.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	c.ExpiryDate = cloneTime(s.ExpiryDate)
	c.LastActivatedAt = cloneTime(s.LastActivatedAt)
	if s.ValidityCap != nil {
		d := *s.ValidityCap
		c.ValidityCap = &d
	}
	c.Limits = maps.Clone(s.Limits)
	c.Usage = maps.Clone(s.Usage)
	return &c
}

// Seller is the tenant record. CurrentPlanID points at the primary (non-mini) subscription,
// uuid.Nil when none is assigned.
type Seller struct {
	ID            uuid.UUID
	CurrentPlanID uuid.UUID
	Version       int64
	UpdatedAt     time.Time
}

// HasPrimary reports whether the seller references a primary subscription.
func (s *Seller) HasPrimary() bool {
	return s.CurrentPlanID != uuid.Nil
}

func (s *Seller) Clone() *Seller {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}
