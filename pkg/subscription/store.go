package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SellerStore reads seller records.
type SellerStore interface {
	// GetSeller returns ErrSellerNotFound if the seller does not exist.
	GetSeller(ctx context.Context, sellerID uuid.UUID) (*Seller, error)
}

// TemplateStore is the read-mostly plan catalog.
type TemplateStore interface {
	// GetTemplate returns ErrTemplateNotFound if the template does not exist.
	GetTemplate(ctx context.Context, templateID string) (*Template, error)

	// FindActiveFreeTemplate returns the lowest-priced active free template,
	// or ErrTemplateNotFound when the catalog has none.
	FindActiveFreeTemplate(ctx context.Context) (*Template, error)
}

// SubscriptionStore persists subscriptions and commits seller-scoped changesets.
type SubscriptionStore interface {
	// FindBySeller returns every subscription of the seller, oldest first.
	// Templates are not resolved.
	FindBySeller(ctx context.Context, sellerID uuid.UUID) ([]*Subscription, error)

	// GetSubscription returns ErrSubscriptionNotFound if the subscription does not exist.
	GetSubscription(ctx context.Context, subscriptionID uuid.UUID) (*Subscription, error)

	// Commit applies the changeset atomically. Records with Version 0 are inserted;
	// others are updated only if the stored version still equals Version, otherwise
	// nothing is written and ErrVersionConflict is returned. On success every
	// record's Version is incremented in place.
	Commit(ctx context.Context, cs *Changeset) error
}

// Store bundles the collaborators the engine needs from persistence.
type Store interface {
	SellerStore
	SubscriptionStore
}

// Changeset is the unit of work produced by one engine operation for one seller.
type Changeset struct {
	SellerID      uuid.UUID
	Seller        *Seller // nil when the seller record is unchanged
	Subscriptions []*Subscription
	At            time.Time
}

// Empty reports whether the changeset carries no mutations.
func (c *Changeset) Empty() bool {
	return c == nil || (c.Seller == nil && len(c.Subscriptions) == 0)
}
