// Package logger builds *slog.Logger instances from functional options and
// provides attribute helpers that keep key names consistent across the engine,
// its stores and its transports.
//
//	log := logger.New(
//		logger.WithEnvironment("production", "planctl"),
//		logger.WithContextValue("request_id", requestIDKey{}),
//	)
//	log.InfoContext(ctx, "plan activated",
//		logger.SellerID(sellerID),
//		logger.SubscriptionID(subID),
//	)
//
// Error and the identifier helpers return an empty slog.Attr for nil values,
// so they can be passed unconditionally.
package logger
