package httpserver

import "errors"

var (
	ErrStart          = errors.New("failed to start http server")
	ErrShutdown       = errors.New("http server did not drain before the shutdown deadline")
	ErrAlreadyRunning = errors.New("http server is already running")
)
