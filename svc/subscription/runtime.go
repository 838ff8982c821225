package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/retailplan/pkg/httpserver"
	"github.com/dmitrymomot/retailplan/pkg/locker"
	"github.com/dmitrymomot/retailplan/pkg/logger"
	"github.com/dmitrymomot/retailplan/pkg/mongo"
	"github.com/dmitrymomot/retailplan/pkg/pg"
	"github.com/dmitrymomot/retailplan/pkg/redis"
	engine "github.com/dmitrymomot/retailplan/pkg/subscription"
	"github.com/dmitrymomot/retailplan/pkg/syncbus"
)

// SellerRegistry creates seller records on signup.
type SellerRegistry interface {
	EnsureSeller(ctx context.Context, sellerID uuid.UUID) error
}

// Runtime is a fully wired engine together with the resources it owns.
type Runtime struct {
	Service engine.Service
	Sellers SellerRegistry
	Catalog *Catalog
	Bus     *syncbus.Bus // nil when the notifier driver is "none"
	Health  map[string]httpserver.HealthCheck

	pgPool  *pgxpool.Pool
	closers []func(context.Context) error
	log     *slog.Logger
}

// Open builds a Runtime from cfg. reg may be nil to skip metrics.
// Callers must Close the returned Runtime.
func Open(ctx context.Context, cfg Config, log *slog.Logger, reg prometheus.Registerer) (_ *Runtime, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With(logger.Component("plan-engine"))

	rt := &Runtime{Health: make(map[string]httpserver.HealthCheck), log: log}
	defer func() {
		if err != nil {
			_ = rt.Close(context.Background())
		}
	}()

	catalog, err := LoadCatalogFile(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	rt.Catalog = catalog
	var templates engine.TemplateStore = catalog
	if cfg.CatalogCacheSize > 0 && cfg.CatalogCacheTTL > 0 {
		templates = NewCachedCatalog(catalog, cfg.CatalogCacheSize, cfg.CatalogCacheTTL)
	}

	store, err := rt.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	lk, err := rt.openLocker(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var metrics *engine.Metrics
	if reg != nil {
		metrics = engine.NewMetrics(reg, cfg.MetricsNamespace)
	}

	opts := []engine.ServiceOption{
		engine.WithLogger(log),
		engine.WithLocker(locker.Timeout(lk, cfg.LockWaitTimeout)),
		engine.WithMetrics(metrics),
		engine.WithConflictRetry(cfg.RetryAttempts, cfg.RetryInterval),
	}

	notifier, err := rt.openNotifier(cfg)
	if err != nil {
		return nil, err
	}
	if notifier != nil {
		outbox := engine.NewOutbox(notifier, cfg.OutboxWorkers,
			engine.WithOutboxLogger(log),
			engine.WithOutboxMetrics(metrics),
			engine.WithDeliveryTimeout(cfg.NotifyTimeout),
			engine.WithQueueSize(cfg.OutboxQueue),
		)
		// Drain before the transports it delivers to are closed.
		rt.closers = append(rt.closers, outbox.Close)
		opts = append(opts, engine.WithOutbox(outbox))
	}

	rt.Service = engine.NewService(store, templates, opts...)
	log.InfoContext(ctx, "plan engine ready",
		slog.String("storage", cfg.StorageDriver),
		slog.String("lock", cfg.LockDriver),
		slog.String("notifier", cfg.NotifierDriver),
		slog.Int("templates", len(catalog.Templates())),
	)
	return rt, nil
}

// Migrate applies storage migrations. Only the postgres driver has any.
func (rt *Runtime) Migrate(ctx context.Context, cfg Config) error {
	if rt.pgPool == nil {
		rt.log.InfoContext(ctx, "no migrations for storage driver", slog.String("storage", cfg.StorageDriver))
		return nil
	}
	return MigratePostgres(ctx, rt.pgPool, cfg.Postgres, rt.log)
}

// Close releases resources in reverse order of acquisition.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for _, closer := range slices.Backward(rt.closers) {
		if err := closer(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func (rt *Runtime) postgres(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if rt.pgPool != nil {
		return rt.pgPool, nil
	}
	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	rt.pgPool = pool
	rt.Health["postgres"] = pg.Healthcheck(pool)
	rt.closers = append(rt.closers, func(context.Context) error {
		pool.Close()
		return nil
	})
	return pool, nil
}

func (rt *Runtime) openStore(ctx context.Context, cfg Config) (engine.Store, error) {
	switch cfg.StorageDriver {
	case "memory":
		store := engine.NewMemoryStore()
		rt.Sellers = store
		return store, nil
	case "postgres":
		pool, err := rt.postgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store := NewPGStore(pool)
		rt.Sellers = store
		return store, nil
	case "mongo":
		db, err := mongo.ConnectDatabase(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		rt.Health["mongo"] = mongo.Healthcheck(db.Client())
		rt.closers = append(rt.closers, db.Client().Disconnect)
		store := NewMongoStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		rt.Sellers = store
		return store, nil
	}
	return nil, fmt.Errorf("%w: storage %q", ErrUnsupportedDriver, cfg.StorageDriver)
}

func (rt *Runtime) openLocker(ctx context.Context, cfg Config) (locker.Locker, error) {
	switch cfg.LockDriver {
	case "memory":
		return locker.NewMemory(), nil
	case "redis":
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		rt.Health["redis"] = redis.Healthcheck(client)
		rt.closers = append(rt.closers, func(context.Context) error { return client.Close() })
		return locker.NewRedis(client,
			locker.WithTTL(cfg.LockTTL),
			locker.WithLogger(rt.log.With(logger.Component("locker"))),
		), nil
	case "postgres":
		pool, err := rt.postgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return locker.NewPostgres(pool), nil
	}
	return nil, fmt.Errorf("%w: lock %q", ErrUnsupportedDriver, cfg.LockDriver)
}

func (rt *Runtime) openNotifier(cfg Config) (engine.Notifier, error) {
	if cfg.NotifierDriver == "none" {
		return nil, nil
	}

	rt.Bus = syncbus.New(cfg.StreamBuffer)
	rt.closers = append(rt.closers, func(context.Context) error { return rt.Bus.Close() })
	if cfg.NotifierDriver == "bus" {
		return rt.Bus, nil
	}

	conn, err := ConnectNATS(cfg.NATSURL, "retailplan")
	if err != nil {
		return nil, err
	}
	rt.Health["nats"] = func(context.Context) error {
		if !conn.IsConnected() {
			return fmt.Errorf("%w: %s", ErrNotifierUnavailable, conn.Status())
		}
		return nil
	}
	rt.closers = append(rt.closers, func(context.Context) error { return conn.Drain() })
	return Fanout(rt.Bus, NewNATSNotifier(conn, cfg.NATSSubject)), nil
}

// Fanout delivers every event to each notifier and joins their errors.
func Fanout(notifiers ...engine.Notifier) engine.Notifier {
	return engine.NotifierFunc(func(ctx context.Context, ev engine.SyncEvent) error {
		var errs []error
		for _, n := range notifiers {
			if err := n.Notify(ctx, ev); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
