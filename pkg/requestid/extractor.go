package requestid

import (
	"github.com/dmitrymomot/retailplan/pkg/logger"
)

// LogAttr is the attribute name request IDs are logged under.
const LogAttr = "request_id"

// LoggerOption makes loggers built by logger.New attach the request ID
// stored by Middleware to every record logged with a request context.
func LoggerOption() logger.Option {
	return logger.WithContextValue(LogAttr, contextKey{})
}
