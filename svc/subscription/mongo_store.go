package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	engine "github.com/dmitrymomot/retailplan/pkg/subscription"
	pkgmongo "github.com/dmitrymomot/retailplan/pkg/mongo"
)

const (
	sellersCollection       = "sellers"
	subscriptionsCollection = "plan_subscriptions"
)

// MongoStore persists sellers and subscriptions in MongoDB. Commit needs a
// replica set because it writes inside a session transaction.
type MongoStore struct {
	db      *mongo.Database
	sellers *mongo.Collection
	subs    *mongo.Collection
}

// NewMongoStore panics if db is nil.
func NewMongoStore(db *mongo.Database) *MongoStore {
	if db == nil {
		panic("subscription: mongo database is required")
	}
	return &MongoStore{
		db:      db,
		sellers: db.Collection(sellersCollection),
		subs:    db.Collection(subscriptionsCollection),
	}
}

// EnsureIndexes creates the per-seller listing index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.subs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "seller_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create subscription index: %w", err)
	}
	return nil
}

type sellerDoc struct {
	ID            string    `bson:"_id"`
	CurrentPlanID string    `bson:"current_plan_id,omitempty"`
	Version       int64     `bson:"version"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

type subscriptionDoc struct {
	ID                string            `bson:"_id"`
	SellerID          string            `bson:"seller_id"`
	TemplateID        string            `bson:"template_id"`
	PlanType          string            `bson:"plan_type"`
	Status            string            `bson:"status"`
	PaymentStatus     string            `bson:"payment_status"`
	ExpiryDate        *time.Time        `bson:"expiry_date,omitempty"`
	LastActivatedAt   *time.Time        `bson:"last_activated_at,omitempty"`
	AccumulatedUsedMs int64             `bson:"accumulated_used_ms"`
	ValidityCapMs     *int64            `bson:"validity_cap_ms,omitempty"`
	Limits            map[string]*int64 `bson:"limits"` // nil value means unlimited
	Usage             map[string]int64  `bson:"usage"`
	Version           int64             `bson:"version"`
	CreatedAt         time.Time         `bson:"created_at"`
	UpdatedAt         time.Time         `bson:"updated_at"`
}

func newSubscriptionDoc(sub *engine.Subscription, version int64, at time.Time) subscriptionDoc {
	doc := subscriptionDoc{
		ID:                sub.ID.String(),
		SellerID:          sub.SellerID.String(),
		TemplateID:        sub.TemplateID,
		PlanType:          string(sub.PlanType),
		Status:            string(sub.Status),
		PaymentStatus:     string(sub.PaymentStatus),
		ExpiryDate:        sub.ExpiryDate,
		LastActivatedAt:   sub.LastActivatedAt,
		AccumulatedUsedMs: sub.AccumulatedUsed.Milliseconds(),
		ValidityCapMs:     msFromDuration(sub.ValidityCap),
		Limits:            make(map[string]*int64, len(sub.Limits)),
		Usage:             make(map[string]int64, len(sub.Usage)),
		Version:           version,
		CreatedAt:         sub.CreatedAt,
		UpdatedAt:         at,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = at
	}
	for res, q := range sub.Limits {
		doc.Limits[string(res)] = q.Ptr()
	}
	for res, n := range sub.Usage {
		doc.Usage[string(res)] = n
	}
	return doc
}

func (d subscriptionDoc) toDomain() (*engine.Subscription, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("decode subscription id %q: %w", d.ID, err)
	}
	sellerID, err := uuid.Parse(d.SellerID)
	if err != nil {
		return nil, fmt.Errorf("decode seller id of %s: %w", d.ID, err)
	}
	sub := &engine.Subscription{
		ID:              id,
		SellerID:        sellerID,
		TemplateID:      d.TemplateID,
		PlanType:        engine.PlanType(d.PlanType),
		Status:          engine.Status(d.Status),
		PaymentStatus:   engine.PaymentStatus(d.PaymentStatus),
		ExpiryDate:      d.ExpiryDate,
		LastActivatedAt: d.LastActivatedAt,
		AccumulatedUsed: time.Duration(d.AccumulatedUsedMs) * time.Millisecond,
		ValidityCap:     durationFromMs(d.ValidityCapMs),
		Limits:          make(map[engine.Resource]engine.Quota, len(d.Limits)),
		Usage:           make(map[engine.Resource]int64, len(d.Usage)),
		Version:         d.Version,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	for res, n := range d.Limits {
		sub.Limits[engine.Resource(res)] = engine.QuotaFromPtr(n)
	}
	for res, n := range d.Usage {
		sub.Usage[engine.Resource(res)] = n
	}
	return sub, nil
}

func (s *MongoStore) GetSeller(ctx context.Context, sellerID uuid.UUID) (*engine.Seller, error) {
	var doc sellerDoc
	if err := s.sellers.FindOne(ctx, bson.D{{Key: "_id", Value: sellerID.String()}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, engine.ErrSellerNotFound
		}
		return nil, fmt.Errorf("get seller %s: %w", sellerID, err)
	}

	seller := &engine.Seller{ID: sellerID, Version: doc.Version, UpdatedAt: doc.UpdatedAt}
	if doc.CurrentPlanID != "" {
		id, err := uuid.Parse(doc.CurrentPlanID)
		if err != nil {
			return nil, fmt.Errorf("decode current plan of %s: %w", sellerID, err)
		}
		seller.CurrentPlanID = id
	}
	return seller, nil
}

// EnsureSeller creates the seller document if it does not exist yet.
func (s *MongoStore) EnsureSeller(ctx context.Context, sellerID uuid.UUID) error {
	_, err := s.sellers.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: sellerID.String()}},
		bson.D{{Key: "$setOnInsert", Value: bson.D{
			{Key: "version", Value: int64(1)},
			{Key: "updated_at", Value: time.Now().UTC()},
		}}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("ensure seller %s: %w", sellerID, err)
	}
	return nil
}

func (s *MongoStore) FindBySeller(ctx context.Context, sellerID uuid.UUID) ([]*engine.Subscription, error) {
	cur, err := s.subs.Find(ctx,
		bson.D{{Key: "seller_id", Value: sellerID.String()}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find subscriptions of %s: %w", sellerID, err)
	}
	var docs []subscriptionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode subscriptions of %s: %w", sellerID, err)
	}

	out := make([]*engine.Subscription, 0, len(docs))
	for _, d := range docs {
		sub, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

func (s *MongoStore) GetSubscription(ctx context.Context, subscriptionID uuid.UUID) (*engine.Subscription, error) {
	var doc subscriptionDoc
	if err := s.subs.FindOne(ctx, bson.D{{Key: "_id", Value: subscriptionID.String()}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, engine.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription %s: %w", subscriptionID, err)
	}
	return doc.toDomain()
}

// Commit writes cs inside a session transaction. Every write is filtered on the
// expected version; a miss aborts the transaction with ErrVersionConflict.
func (s *MongoStore) Commit(ctx context.Context, cs *engine.Changeset) error {
	if cs.Empty() {
		return nil
	}
	at := commitTime(cs)

	err := pkgmongo.WithTransaction(ctx, s.db.Client(), func(ctx context.Context) error {
		// Bumping the seller version on every commit makes concurrent commits for
		// one seller conflict inside the transaction.
		filter := bson.D{{Key: "_id", Value: cs.SellerID.String()}}
		if cs.Seller != nil {
			filter = append(filter, bson.E{Key: "version", Value: cs.Seller.Version})
		}
		set := bson.D{{Key: "updated_at", Value: at}}
		if cs.Seller != nil {
			set = append(set, bson.E{Key: "current_plan_id", Value: planIDString(cs.Seller.CurrentPlanID)})
		}
		res, err := s.sellers.UpdateOne(ctx, filter, bson.D{
			{Key: "$set", Value: set},
			{Key: "$inc", Value: bson.D{{Key: "version", Value: int64(1)}}},
		})
		if err != nil {
			return fmt.Errorf("update seller %s: %w", cs.SellerID, err)
		}
		if res.MatchedCount == 0 {
			if cs.Seller == nil {
				return engine.ErrSellerNotFound
			}
			return engine.ErrVersionConflict
		}

		for _, sub := range cs.Subscriptions {
			doc := newSubscriptionDoc(sub, sub.Version+1, at)
			if sub.Version == 0 {
				if _, err := s.subs.InsertOne(ctx, doc); err != nil {
					if mongo.IsDuplicateKeyError(err) {
						return engine.ErrVersionConflict
					}
					return fmt.Errorf("insert subscription %s: %w", sub.ID, err)
				}
				continue
			}
			res, err := s.subs.ReplaceOne(ctx,
				bson.D{{Key: "_id", Value: doc.ID}, {Key: "version", Value: sub.Version}}, doc)
			if err != nil {
				return fmt.Errorf("replace subscription %s: %w", sub.ID, err)
			}
			if res.MatchedCount == 0 {
				return engine.ErrVersionConflict
			}
		}
		return nil
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Join(engine.ErrVersionConflict, err)
		}
		return err
	}

	if cs.Seller != nil {
		cs.Seller.Version++
	}
	for _, sub := range cs.Subscriptions {
		sub.Version++
	}
	return nil
}

func planIDString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

var _ engine.Store = (*MongoStore)(nil)
