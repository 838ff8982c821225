package logger

import (
	"log/slog"

	"github.com/google/uuid"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// SellerID records the seller identifier under the key "seller_id".
// A nil UUID yields an empty Attr.
func SellerID(id uuid.UUID) slog.Attr {
	if id == uuid.Nil {
		return slog.Attr{}
	}
	return slog.String("seller_id", id.String())
}

// SubscriptionID records the subscription identifier under the key "subscription_id".
// A nil UUID yields an empty Attr.
func SubscriptionID(id uuid.UUID) slog.Attr {
	if id == uuid.Nil {
		return slog.Attr{}
	}
	return slog.String("subscription_id", id.String())
}

// TemplateID records the plan template identifier under the key "template_id".
func TemplateID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("template_id", id)
}

// Resource records the quota resource under the key "resource".
func Resource[T ~string](res T) slog.Attr {
	return slog.String("resource", string(res))
}

// Operation records the engine operation name under the key "operation".
func Operation(name string) slog.Attr {
	return slog.String("operation", name)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}
