// Package httpserver runs an http.Server for the lifetime of a context and
// serves JSON health probes.
//
// Run listens, serves and returns once ctx is done and in-flight requests have
// drained or the shutdown timeout has passed. Request contexts derive from a
// base context that is cancelled when shutdown starts, which ends server-sent
// event streams promptly. Listen errors are wrapped with ErrStart and drain
// failures with ErrShutdown.
//
//	r := chi.NewRouter()
//	r.Get("/health/live", httpserver.HealthCheckHandler(log, 0, nil))
//	r.Get("/health/ready", httpserver.HealthCheckHandler(log, 2*time.Second, checks))
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, r); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// Config carries HTTP_* environment tags for use with the config package.
package httpserver
