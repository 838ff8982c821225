// Package requestid attaches a correlation ID to every HTTP request.
//
// Middleware reuses a well-formed "X-Request-ID" header supplied by the
// client or generates a UUIDv4, stores it in the request context and echoes
// it in the response header. Invalid client IDs are replaced silently.
//
//	log := logger.New(requestid.LoggerOption())
//	http.ListenAndServe(":8080", requestid.Middleware(router))
//
// Handlers read the ID with FromContext; error responses include it so a
// client report can be matched to the server log line.
package requestid
