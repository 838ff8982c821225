package subscription

import (
	"maps"

	"github.com/shopspring/decimal"
)

// Template describes a catalog plan: price, validity duration and resource limits.
// Templates are referenced by subscriptions and never mutated by the engine.
type Template struct {
	ID           string
	Name         string
	Price        decimal.Decimal
	DurationDays int
	Limits       map[Resource]Quota // missing resource means Bounded(0)
	PlanType     PlanType
	Active       bool // available for assignment
}

// IsMini reports whether subscriptions of this template are stackable top-ups.
func (t *Template) IsMini() bool {
	return t != nil && t.PlanType == PlanTypeMini
}

// IsFree reports whether the template can be assigned without payment.
func (t *Template) IsFree() bool {
	return t != nil && !t.Price.IsPositive()
}

// Limit returns the template quota for a resource.
func (t *Template) Limit(res Resource) Quota {
	if t == nil {
		return Bounded(0)
	}
	if q, ok := t.Limits[res]; ok {
		return q
	}
	return Bounded(0)
}

// Clone returns a deep copy of the template.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	c := *t
	c.Limits = maps.Clone(t.Limits)
	return &c
}
