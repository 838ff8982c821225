package billing

import (
	"net/http"

	"github.com/dmitrymomot/retailplan/handler"
	engine "github.com/dmitrymomot/retailplan/pkg/subscription"
)

var kindStatus = map[engine.Kind]int{
	engine.KindNotFound:             http.StatusNotFound,
	engine.KindNotAssigned:          http.StatusForbidden,
	engine.KindPaymentRequired:      http.StatusPaymentRequired,
	engine.KindExpired:              http.StatusConflict,
	engine.KindStillValid:           http.StatusConflict,
	engine.KindNotPaused:            http.StatusConflict,
	engine.KindNoPrimaryPlan:        http.StatusConflict,
	engine.KindNoPlan:               http.StatusConflict,
	engine.KindInsufficientCapacity: http.StatusConflict,
	engine.KindInvalid:              http.StatusUnprocessableEntity,
	engine.KindRetryable:            http.StatusServiceUnavailable,
}

// ClassifyError maps engine failures to HTTP errors whose code is the engine
// Kind. Internal failures are left unclassified so their detail stays out of
// responses.
func ClassifyError(err error) (handler.HTTPError, bool) {
	kind := engine.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		return handler.HTTPError{}, false
	}
	return handler.NewHTTPError(status, string(kind)), true
}
