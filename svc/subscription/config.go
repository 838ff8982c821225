package subscription

import (
	"errors"
	"time"

	"github.com/dmitrymomot/retailplan/pkg/mongo"
	"github.com/dmitrymomot/retailplan/pkg/pg"
	"github.com/dmitrymomot/retailplan/pkg/redis"
)

// Config wires the plan engine to its backends. Connection settings reuse the
// PG_, MONGODB_ and REDIS_ variables of the connection packages.
type Config struct {
	StorageDriver string `env:"PLAN_STORAGE_DRIVER" envDefault:"memory" validate:"oneof=memory postgres mongo"`
	LockDriver    string `env:"PLAN_LOCK_DRIVER" envDefault:"memory" validate:"oneof=memory redis postgres"`
	// Redis locks expire after LockTTL in case the holder dies.
	LockTTL         time.Duration `env:"PLAN_LOCK_TTL" envDefault:"10s" validate:"gt=0"`
	LockWaitTimeout time.Duration `env:"PLAN_LOCK_WAIT_TIMEOUT" envDefault:"5s" validate:"gte=0"`

	RetryAttempts int           `env:"PLAN_RETRY_ATTEMPTS" envDefault:"3" validate:"gte=1"`
	RetryInterval time.Duration `env:"PLAN_RETRY_INTERVAL" envDefault:"50ms" validate:"gte=0"`

	CatalogPath      string        `env:"PLAN_CATALOG_PATH" envDefault:"plans.yaml" validate:"required"`
	CatalogCacheTTL  time.Duration `env:"PLAN_CATALOG_CACHE_TTL" envDefault:"5m" validate:"gte=0"`
	CatalogCacheSize int           `env:"PLAN_CATALOG_CACHE_SIZE" envDefault:"256" validate:"gte=0"` // 0 disables the cache

	NotifierDriver string        `env:"PLAN_NOTIFIER_DRIVER" envDefault:"bus" validate:"oneof=none bus nats"`
	NATSURL        string        `env:"PLAN_NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	NATSSubject    string        `env:"PLAN_NATS_SUBJECT" envDefault:"retailplan.sync"`
	OutboxWorkers  int           `env:"PLAN_OUTBOX_WORKERS" envDefault:"4" validate:"gte=1"`
	OutboxQueue    int           `env:"PLAN_OUTBOX_QUEUE" envDefault:"256" validate:"gte=1"`
	NotifyTimeout  time.Duration `env:"PLAN_NOTIFY_TIMEOUT" envDefault:"5s" validate:"gt=0"`
	StreamBuffer   int           `env:"PLAN_STREAM_BUFFER" envDefault:"16" validate:"gte=1"`

	MetricsNamespace string `env:"PLAN_METRICS_NAMESPACE" envDefault:"retailplan"`

	Postgres pg.Config
	Mongo    mongo.Config
	Redis    redis.Config
}

// Validate checks driver names and bounds.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	return nil
}
