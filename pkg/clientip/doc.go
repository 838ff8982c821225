// Package clientip resolves the originating client address of an HTTP request
// served behind reverse proxies.
//
// Headers listed in ProxyHeaders are examined in order and the first valid
// address wins; RemoteAddr is the fallback. Middleware stores the result in the
// request context and LoggerOption makes request-scoped log records carry it:
//
//	log := logger.New(clientip.LoggerOption())
//	r.Use(clientip.Middleware)
//
// GetIP never fails. It returns "" when no candidate parses as an IP.
package clientip
