package cli

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/retailplan/modules/billing"
	"github.com/dmitrymomot/retailplan/pkg/clientip"
	"github.com/dmitrymomot/retailplan/pkg/httpserver"
	"github.com/dmitrymomot/retailplan/pkg/requestid"
	plansvc "github.com/dmitrymomot/retailplan/svc/subscription"
)

func newServeCmd(a *app) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the plan API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			return a.withRuntime(ctx, a.cfg.Plan, a.log, reg, func(rt *plansvc.Runtime) error {
				if migrate {
					if err := rt.Migrate(ctx, a.cfg.Plan); err != nil {
						return err
					}
				}

				srv := httpserver.NewFromConfig(a.cfg.HTTP, httpserver.WithLogger(a.log))
				return srv.Run(ctx, newRouter(rt, a.cfg, a.log, reg))
			})
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply storage migrations before serving")
	cmd.Flags().StringVar(&a.cfg.HTTP.Addr, "addr", a.cfg.HTTP.Addr, "listen address")
	return cmd
}

// newRouter mounts the plan API under /v1 next to health and metrics endpoints.
func newRouter(rt *plansvc.Runtime, cfg Config, log *slog.Logger, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware, clientip.Middleware, middleware.Recoverer)

	r.Get("/health/live", httpserver.HealthCheckHandler(log, 0, nil))
	r.Get("/health/ready", httpserver.HealthCheckHandler(log, cfg.HealthTimeout, rt.Health))
	if gatherer != nil {
		r.Handle(cfg.MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	opts := []billing.Option{
		billing.WithCatalog(rt.Catalog),
		billing.WithSellerRegistry(rt.Sellers),
		billing.WithLogger(log),
	}
	if rt.Bus != nil {
		opts = append(opts, billing.WithSyncEvents(rt.Bus))
	}
	r.Mount("/v1", billing.NewService(rt.Service, opts...).Handle())
	return r
}
