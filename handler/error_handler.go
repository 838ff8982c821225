package handler

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/retailplan/pkg/logger"
	"github.com/dmitrymomot/retailplan/pkg/requestid"
)

// ErrorClassifier maps domain errors to an HTTPError. Returning false leaves
// the error to the default classification.
type ErrorClassifier func(err error) (HTTPError, bool)

// ErrorHandlerOption configures NewErrorHandler.
type ErrorHandlerOption func(*errorHandlerConfig)

type errorHandlerConfig struct {
	classifiers []ErrorClassifier
}

// WithClassifier adds a classifier. Classifiers run in order; the first match wins.
func WithClassifier(c ErrorClassifier) ErrorHandlerOption {
	return func(cfg *errorHandlerConfig) {
		if c != nil {
			cfg.classifiers = append(cfg.classifiers, c)
		}
	}
}

// NewErrorHandler logs the error and renders the JSON error envelope with the
// request ID in meta. Client errors log at warn, server errors at error.
func NewErrorHandler(log *slog.Logger, opts ...ErrorHandlerOption) ErrorHandler[Context] {
	if log == nil {
		log = slog.Default()
	}
	cfg := &errorHandlerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(ctx Context, err error) {
		r := ctx.Request()
		for _, classify := range cfg.classifiers {
			if httpErr, ok := classify(err); ok {
				err = httpErr.WithCause(err)
				break
			}
		}

		requestID := requestid.FromContext(r.Context())
		resp := &jsonResponse{}
		resp.body.Error = errorToDetail(err, &resp.status)
		if requestID != "" {
			resp.body.Meta = map[string]any{"request_id": requestID}
		}

		level := slog.LevelError
		if resp.status < http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		log.LogAttrs(r.Context(), level, "request failed",
			logger.Error(err),
			slog.Int("status", resp.status),
			slog.String("code", resp.body.Error.Code),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("http"),
		)

		if renderErr := resp.Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.WarnContext(r.Context(), "failed to write error response", logger.Error(renderErr))
		}
	}
}
