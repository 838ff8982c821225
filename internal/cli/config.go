package cli

import (
	"time"

	"github.com/dmitrymomot/retailplan/pkg/config"
	"github.com/dmitrymomot/retailplan/pkg/httpserver"
	plansvc "github.com/dmitrymomot/retailplan/svc/subscription"
)

// Config is the planctl process configuration.
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"`

	MetricsPath   string        `env:"METRICS_PATH" envDefault:"/metrics"`
	HealthTimeout time.Duration `env:"HEALTH_TIMEOUT" envDefault:"2s"`

	HTTP httpserver.Config
	Plan plansvc.Config
}

func loadConfig(opts ...config.Option) (Config, error) {
	var cfg Config
	if err := config.Load(&cfg, opts...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
