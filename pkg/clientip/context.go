package clientip

import (
	"context"

	"github.com/dmitrymomot/retailplan/pkg/logger"
)

// LogAttr is the attribute name client addresses are logged under.
const LogAttr = "client_ip"

type contextKey struct{}

// WithIP stores ip in ctx.
func WithIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKey{}, ip)
}

// FromContext returns the address stored by Middleware, or "".
func FromContext(ctx context.Context) string {
	ip, _ := ctx.Value(contextKey{}).(string)
	return ip
}

// LoggerOption attaches the stored client address to records logged with a request context.
func LoggerOption() logger.Option {
	return logger.WithContextValue(LogAttr, contextKey{})
}
