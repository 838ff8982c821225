package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/retailplan/pkg/clientip"
	"github.com/dmitrymomot/retailplan/pkg/logger"
	"github.com/dmitrymomot/retailplan/pkg/requestid"
	plansvc "github.com/dmitrymomot/retailplan/svc/subscription"
)

// runtimeFunc provides a plan runtime for the duration of fn.
type runtimeFunc func(ctx context.Context, cfg plansvc.Config, log *slog.Logger, reg prometheus.Registerer, fn func(*plansvc.Runtime) error) error

type app struct {
	cfg         Config
	log         *slog.Logger
	logOut      io.Writer
	withRuntime runtimeFunc
}

func newApp(cfg Config, logOut io.Writer) *app {
	a := &app{cfg: cfg, logOut: logOut, withRuntime: openRuntime}
	a.configureLogger()
	return a
}

func (a *app) configureLogger() {
	opts := []logger.Option{
		logger.WithEnvironment(a.cfg.Env, "planctl"),
		logger.WithOutput(a.logOut),
		requestid.LoggerOption(),
		clientip.LoggerOption(),
	}
	if a.cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevelName(a.cfg.LogLevel))
	}
	a.log = logger.New(opts...)
}

func openRuntime(ctx context.Context, cfg plansvc.Config, log *slog.Logger, reg prometheus.Registerer, fn func(*plansvc.Runtime) error) (err error) {
	rt, err := plansvc.Open(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = fmt.Errorf("close runtime: %w", cerr)
		}
	}()
	return fn(rt)
}

func (a *app) run(ctx context.Context, fn func(*plansvc.Runtime) error) error {
	return a.withRuntime(ctx, a.cfg.Plan, a.log, nil, fn)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
