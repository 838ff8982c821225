package subscription

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrSellerNotFound       = errors.New("seller not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrTemplateNotFound     = errors.New("plan template not found")
	ErrNoValidPlan          = errors.New("no other valid subscription to switch to")

	ErrNotAssigned     = errors.New("plan is not assigned to seller")
	ErrPaymentRequired = errors.New("plan requires completed payment")
	ErrPlanExpired     = errors.New("plan validity has expired")
	ErrPlanStillValid  = errors.New("current plan is still valid")
	ErrPlanNotPaused   = errors.New("current plan is not paused")
	ErrNoPrimaryPlan   = errors.New("seller has no current plan")
	ErrNoPlan          = errors.New("no eligible plan and no free plan to assign")

	ErrInsufficientCapacity = errors.New("insufficient plan capacity")
	ErrInvalidResource      = errors.New("invalid quota resource")
	ErrInvalidQuota         = errors.New("invalid quota value")
	ErrInvalidTarget        = errors.New("either template id or subscription id is required")

	ErrVersionConflict = errors.New("subscription record was modified concurrently")
	ErrStorage         = errors.New("subscription storage failure")
	ErrLockUnavailable = errors.New("seller lock unavailable")
)

// Kind is the machine-readable category of an engine failure.
// Callers map kinds to transport status codes.
type Kind string

const (
	KindNone                 Kind = ""
	KindNotFound             Kind = "not_found"
	KindNotAssigned          Kind = "not_assigned"
	KindPaymentRequired      Kind = "payment_required"
	KindExpired              Kind = "expired"
	KindStillValid           Kind = "still_valid"
	KindNotPaused            Kind = "not_paused"
	KindNoPrimaryPlan        Kind = "no_primary_plan"
	KindNoPlan               Kind = "no_plan"
	KindInsufficientCapacity Kind = "insufficient_capacity"
	KindInvalid              Kind = "invalid"
	KindRetryable            Kind = "retryable"
	KindInternal             Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrSellerNotFound, KindNotFound},
	{ErrSubscriptionNotFound, KindNotFound},
	{ErrTemplateNotFound, KindNotFound},
	{ErrNoValidPlan, KindNotFound},
	{ErrNotAssigned, KindNotAssigned},
	{ErrPaymentRequired, KindPaymentRequired},
	{ErrPlanExpired, KindExpired},
	{ErrPlanStillValid, KindStillValid},
	{ErrPlanNotPaused, KindNotPaused},
	{ErrNoPrimaryPlan, KindNoPrimaryPlan},
	{ErrNoPlan, KindNoPlan},
	{ErrInsufficientCapacity, KindInsufficientCapacity},
	{ErrInvalidResource, KindInvalid},
	{ErrInvalidQuota, KindInvalid},
	{ErrInvalidTarget, KindInvalid},
	{ErrVersionConflict, KindRetryable},
	{ErrLockUnavailable, KindRetryable},
	{context.DeadlineExceeded, KindRetryable},
	{context.Canceled, KindRetryable},
}

// KindOf classifies err. Storage failures and unknown errors are KindInternal;
// timeouts and exhausted conflict retries are KindRetryable.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	// Storage wraps driver errors, which may themselves carry context errors.
	if errors.Is(err, ErrStorage) {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return KindRetryable
		}
		return KindInternal
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsBusiness reports whether err is a business-rule outcome rather than an infrastructure failure.
func IsBusiness(err error) bool {
	switch KindOf(err) {
	case KindNone, KindInternal, KindRetryable:
		return false
	}
	return true
}

// CapacityError describes a quota allocation that could not be satisfied.
// It matches ErrInsufficientCapacity with errors.Is.
type CapacityError struct {
	Resource  Resource
	Requested int64
	Available int64 // amount that could have been applied
}

// Shortfall is the amount of capacity missing to satisfy the request.
func (e *CapacityError) Shortfall() int64 {
	return max(e.Requested-e.Available, 0)
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("insufficient %s capacity: requested %d, available %d, short by %d",
		e.Resource, e.Requested, e.Available, e.Shortfall())
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrInsufficientCapacity
}

// IsCapacityError reports whether err carries a *CapacityError.
func IsCapacityError(err error) bool {
	var e *CapacityError
	return errors.As(err, &e)
}

// storageError wraps an unexpected store failure, leaving domain sentinels untouched.
func storageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) || errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrSellerNotFound) || errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrTemplateNotFound) {
		return err
	}
	return errors.Join(ErrStorage, err)
}
