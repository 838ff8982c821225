package subscription

// Resource represents a countable seller resource gated by subscription quotas.
type Resource string

const (
	ResourceCustomers Resource = "customers"
	ResourceProducts  Resource = "products"
	ResourceOrders    Resource = "orders"
)

// Resources lists every quota-tracked resource in reporting order.
var Resources = []Resource{ResourceCustomers, ResourceProducts, ResourceOrders}

// Valid reports whether r is one of the tracked resources.
func (r Resource) Valid() bool {
	switch r {
	case ResourceCustomers, ResourceProducts, ResourceOrders:
		return true
	}
	return false
}

// PlanType distinguishes base plans from stackable top-ups.
type PlanType string

const (
	PlanTypeStandard PlanType = "standard"
	PlanTypeMini     PlanType = "mini" // top-up, never becomes the seller's primary subscription
)

// Status represents the lifecycle state of a subscription.
type Status string

const (
	StatusPaused  Status = "paused"
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
)

// PaymentStatus tracks whether the subscription has been paid for.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

// TopicSubscriptions is the sync topic emitted after subscription records change.
const TopicSubscriptions = "subscriptions"
