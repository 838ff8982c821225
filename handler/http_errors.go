package handler

import "net/http"

// HTTPError carries an HTTP status and a stable machine-readable code.
// The code is what clients switch on; the status only picks the transport
// semantics.
type HTTPError struct {
	Status int
	Code   string
}

func (e HTTPError) Error() string {
	return e.Code
}

var (
	ErrBadRequest           = HTTPError{Status: http.StatusBadRequest, Code: "bad_request"}
	ErrPaymentRequired      = HTTPError{Status: http.StatusPaymentRequired, Code: "payment_required"}
	ErrNotFound             = HTTPError{Status: http.StatusNotFound, Code: "not_found"}
	ErrConflict             = HTTPError{Status: http.StatusConflict, Code: "conflict"}
	ErrUnsupportedMediaType = HTTPError{Status: http.StatusUnsupportedMediaType, Code: "unsupported_media_type"}
	ErrUnprocessableEntity  = HTTPError{Status: http.StatusUnprocessableEntity, Code: "unprocessable_entity"}
	ErrInternalServerError  = HTTPError{Status: http.StatusInternalServerError, Code: "internal_error"}
	ErrServiceUnavailable   = HTTPError{Status: http.StatusServiceUnavailable, Code: "service_unavailable"}
)

// NewHTTPError creates a custom HTTP error.
//
//	ErrCapacity := handler.NewHTTPError(http.StatusConflict, "insufficient_capacity")
func NewHTTPError(status int, code string) HTTPError {
	return HTTPError{Status: status, Code: code}
}

// WithCause returns an error reporting err's message that matches both e and
// err under errors.Is and errors.As.
func (e HTTPError) WithCause(err error) error {
	if err == nil {
		return e
	}
	return causeError{status: e, cause: err}
}

type causeError struct {
	status HTTPError
	cause  error
}

func (c causeError) Error() string   { return c.cause.Error() }
func (c causeError) Unwrap() []error { return []error{c.status, c.cause} }
