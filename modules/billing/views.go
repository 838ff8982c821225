package billing

import (
	"github.com/shopspring/decimal"

	engine "github.com/dmitrymomot/retailplan/pkg/subscription"
)

// PlanView is the catalog entry exposed to clients.
type PlanView struct {
	ID           string                           `json:"id"`
	Name         string                           `json:"name"`
	Price        decimal.Decimal                  `json:"price"`
	DurationDays int                              `json:"duration_days"`
	PlanType     engine.PlanType                  `json:"plan_type"`
	Active       bool                             `json:"active"`
	Free         bool                             `json:"free"`
	Limits       map[engine.Resource]engine.Quota `json:"limits"`
}

// NewPlanView projects a catalog template.
func NewPlanView(t *engine.Template) PlanView {
	limits := make(map[engine.Resource]engine.Quota, len(engine.Resources))
	for _, res := range engine.Resources {
		limits[res] = t.Limit(res)
	}
	return PlanView{
		ID:           t.ID,
		Name:         t.Name,
		Price:        t.Price,
		DurationDays: t.DurationDays,
		PlanType:     t.PlanType,
		Active:       t.Active,
		Free:         t.IsFree(),
		Limits:       limits,
	}
}

// CapacityView answers a capacity check that fits.
type CapacityView struct {
	Resource engine.Resource `json:"resource"`
	Count    int64           `json:"count"`
	Allowed  bool            `json:"allowed"`
}
