package subscription

import "errors"

var (
	ErrCatalogUnreadable   = errors.New("plan catalog is unreadable")
	ErrInvalidCatalog      = errors.New("plan catalog is invalid")
	ErrInvalidConfig       = errors.New("invalid plan engine configuration")
	ErrUnsupportedDriver   = errors.New("unsupported driver")
	ErrNotifierUnavailable = errors.New("sync notifier unavailable")
)
