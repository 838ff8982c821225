// Package handler turns typed request handlers into http.HandlerFunc values.
//
// A handler receives a Context and a request struct filled by the configured
// binders, and returns a Response. JSON wraps results in the
// {"data", "meta", "error"} envelope; SSE streams Server-Sent Events;
// Empty answers with a bare status.
//
// Errors flow to an ErrorHandler. NewErrorHandler classifies them through
// HTTPError, ValidationError and optional ErrorClassifier hooks, logs them
// with the request ID and renders the error envelope:
//
//	{"error":{"code":"insufficient_capacity","message":"..."},"meta":{"request_id":"..."}}
//
// Binding failures are reported as 400 bad_request, or 415 when the body
// has the wrong media type.
package handler
