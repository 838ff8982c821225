package handler

import "errors"

var (
	// ErrNilResponse indicates a handler returned nil instead of a Response.
	ErrNilResponse = errors.New("handler returned nil response")
	// ErrStreamingUnsupported indicates the ResponseWriter cannot flush.
	ErrStreamingUnsupported = errors.New("response writer does not support streaming")
)
