package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	engine "github.com/dmitrymomot/retailplan/pkg/subscription"
	"github.com/dmitrymomot/retailplan/pkg/pg"
	"github.com/dmitrymomot/retailplan/svc/subscription/migrations"
)

// PGStore persists sellers and subscriptions in Postgres.
// Commit runs in one transaction that first locks the seller row, so concurrent
// commits for the same seller are serialized even across processes.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore panics if pool is nil.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("subscription: pgx pool is required")
	}
	return &PGStore{pool: pool}
}

// MigratePostgres applies the embedded schema migrations.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool, cfg pg.Config, log *slog.Logger) error {
	return pg.Migrate(ctx, pool, migrations.FS, ".", cfg, log)
}

const subscriptionColumns = `id, seller_id, template_id, plan_type, status, payment_status,
	expiry_date, last_activated_at, accumulated_used_ms, validity_cap_ms,
	limits, usage, version, created_at, updated_at`

type subscriptionRow struct {
	ID                uuid.UUID  `db:"id"`
	SellerID          uuid.UUID  `db:"seller_id"`
	TemplateID        string     `db:"template_id"`
	PlanType          string     `db:"plan_type"`
	Status            string     `db:"status"`
	PaymentStatus     string     `db:"payment_status"`
	ExpiryDate        *time.Time `db:"expiry_date"`
	LastActivatedAt   *time.Time `db:"last_activated_at"`
	AccumulatedUsedMs int64      `db:"accumulated_used_ms"`
	ValidityCapMs     *int64     `db:"validity_cap_ms"`
	Limits            []byte     `db:"limits"`
	Usage             []byte     `db:"usage"`
	Version           int64      `db:"version"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

func (r subscriptionRow) toDomain() (*engine.Subscription, error) {
	sub := &engine.Subscription{
		ID:              r.ID,
		SellerID:        r.SellerID,
		TemplateID:      r.TemplateID,
		PlanType:        engine.PlanType(r.PlanType),
		Status:          engine.Status(r.Status),
		PaymentStatus:   engine.PaymentStatus(r.PaymentStatus),
		ExpiryDate:      r.ExpiryDate,
		LastActivatedAt: r.LastActivatedAt,
		AccumulatedUsed: time.Duration(r.AccumulatedUsedMs) * time.Millisecond,
		ValidityCap:     durationFromMs(r.ValidityCapMs),
		Version:         r.Version,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Limits, &sub.Limits); err != nil {
		return nil, fmt.Errorf("decode limits of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal(r.Usage, &sub.Usage); err != nil {
		return nil, fmt.Errorf("decode usage of %s: %w", r.ID, err)
	}
	return sub, nil
}

func (s *PGStore) GetSeller(ctx context.Context, sellerID uuid.UUID) (*engine.Seller, error) {
	var (
		seller  = &engine.Seller{ID: sellerID}
		current *uuid.UUID
	)
	err := s.pool.QueryRow(ctx,
		`SELECT current_plan_id, version, updated_at FROM sellers WHERE id = $1`, sellerID,
	).Scan(&current, &seller.Version, &seller.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, engine.ErrSellerNotFound
		}
		return nil, fmt.Errorf("get seller %s: %w", sellerID, err)
	}
	if current != nil {
		seller.CurrentPlanID = *current
	}
	return seller, nil
}

// EnsureSeller creates the seller record if it does not exist yet.
func (s *PGStore) EnsureSeller(ctx context.Context, sellerID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sellers (id, version, updated_at) VALUES ($1, 1, now()) ON CONFLICT (id) DO NOTHING`,
		sellerID)
	if err != nil {
		return fmt.Errorf("ensure seller %s: %w", sellerID, err)
	}
	return nil
}

func (s *PGStore) FindBySeller(ctx context.Context, sellerID uuid.UUID) ([]*engine.Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM plan_subscriptions WHERE seller_id = $1 ORDER BY created_at, id`,
		sellerID)
	if err != nil {
		return nil, fmt.Errorf("find subscriptions of %s: %w", sellerID, err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[subscriptionRow])
	if err != nil {
		return nil, fmt.Errorf("scan subscriptions of %s: %w", sellerID, err)
	}

	out := make([]*engine.Subscription, 0, len(records))
	for _, r := range records {
		sub, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

func (s *PGStore) GetSubscription(ctx context.Context, subscriptionID uuid.UUID) (*engine.Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM plan_subscriptions WHERE id = $1`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", subscriptionID, err)
	}
	r, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[subscriptionRow])
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, engine.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription %s: %w", subscriptionID, err)
	}
	return r.toDomain()
}

// Commit applies cs in one transaction. Versions are bumped in place only after
// the transaction commits.
func (s *PGStore) Commit(ctx context.Context, cs *engine.Changeset) error {
	if cs.Empty() {
		return nil
	}

	err := pg.WithTx(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var version int64
		err := tx.QueryRow(ctx, `SELECT version FROM sellers WHERE id = $1 FOR UPDATE`, cs.SellerID).Scan(&version)
		if err != nil {
			if pg.IsNotFoundError(err) {
				return engine.ErrSellerNotFound
			}
			return fmt.Errorf("lock seller %s: %w", cs.SellerID, err)
		}

		if seller := cs.Seller; seller != nil {
			if seller.Version != version {
				return engine.ErrVersionConflict
			}
			if _, err := tx.Exec(ctx,
				`UPDATE sellers SET current_plan_id = $2, version = version + 1, updated_at = $3 WHERE id = $1`,
				seller.ID, nullUUID(seller.CurrentPlanID), commitTime(cs),
			); err != nil {
				return fmt.Errorf("update seller %s: %w", seller.ID, err)
			}
		}

		for _, sub := range cs.Subscriptions {
			if err := writeSubscription(ctx, tx, sub, commitTime(cs)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if pg.IsDuplicateKeyError(err) || pg.IsSerializationError(err) {
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

func writeSubscription(ctx context.Context, tx pgx.Tx, sub *engine.Subscription, at time.Time) error {
	limits, err := json.Marshal(sub.Limits)
	if err != nil {
		return fmt.Errorf("encode limits of %s: %w", sub.ID, err)
	}
	usage, err := json.Marshal(sub.Usage)
	if err != nil {
		return fmt.Errorf("encode usage of %s: %w", sub.ID, err)
	}

	if sub.Version == 0 {
		createdAt := sub.CreatedAt
		if createdAt.IsZero() {
			createdAt = at
		}
		_, err := tx.Exec(ctx, `INSERT INTO plan_subscriptions (`+subscriptionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1, $13, $14)`,
			sub.ID, sub.SellerID, sub.TemplateID, string(sub.PlanType), string(sub.Status), string(sub.PaymentStatus),
			sub.ExpiryDate, sub.LastActivatedAt, sub.AccumulatedUsed.Milliseconds(), msFromDuration(sub.ValidityCap),
			limits, usage, createdAt, at,
		)
		if err != nil {
			return fmt.Errorf("insert subscription %s: %w", sub.ID, err)
		}
		return nil
	}

	tag, err := tx.Exec(ctx, `UPDATE plan_subscriptions SET
			plan_type = $3, status = $4, payment_status = $5, expiry_date = $6, last_activated_at = $7,
			accumulated_used_ms = $8, validity_cap_ms = $9, limits = $10, usage = $11,
			version = version + 1, updated_at = $12
		WHERE id = $1 AND version = $2`,
		sub.ID, sub.Version, string(sub.PlanType), string(sub.Status), string(sub.PaymentStatus),
		sub.ExpiryDate, sub.LastActivatedAt, sub.AccumulatedUsed.Milliseconds(), msFromDuration(sub.ValidityCap),
		limits, usage, at,
	)
	if err != nil {
		return fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return engine.ErrVersionConflict
	}
	return nil
}

func commitTime(cs *engine.Changeset) time.Time {
	if cs.At.IsZero() {
		return time.Now().UTC()
	}
	return cs.At
}

func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func durationFromMs(ms *int64) *time.Duration {
	if ms == nil {
		return nil
	}
	d := time.Duration(*ms) * time.Millisecond
	return &d
}

func msFromDuration(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

var _ engine.Store = (*PGStore)(nil)
