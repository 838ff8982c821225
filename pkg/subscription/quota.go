package subscription

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Quota is a per-resource limit: either unlimited or bounded by a non-negative count.
// The zero value is Bounded(0).
type Quota struct {
	n         int64
	unlimited bool
}

// Unlimited returns a quota with no upper bound.
func Unlimited() Quota {
	return Quota{unlimited: true}
}

// Bounded returns a quota capped at n. Negative values are clamped to zero.
func Bounded(n int64) Quota {
	return Quota{n: max(n, 0)}
}

// QuotaFromPtr converts the nullable storage representation (nil means unlimited).
func QuotaFromPtr(n *int64) Quota {
	if n == nil {
		return Unlimited()
	}
	return Bounded(*n)
}

// Ptr returns the nullable storage representation (nil means unlimited).
func (q Quota) Ptr() *int64 {
	if q.unlimited {
		return nil
	}
	n := q.n
	return &n
}

// IsUnlimited reports whether the quota has no upper bound.
func (q Quota) IsUnlimited() bool {
	return q.unlimited
}

// Limit returns the bound and true, or 0 and false for unlimited quotas.
func (q Quota) Limit() (int64, bool) {
	if q.unlimited {
		return 0, false
	}
	return q.n, true
}

// Spare returns the remaining headroom given current usage.
// The second value is false when the quota is unlimited.
func (q Quota) Spare(used int64) (int64, bool) {
	if q.unlimited {
		return 0, false
	}
	return max(q.n-used, 0), true
}

// Add sums two quotas. Anything plus unlimited is unlimited.
func (q Quota) Add(other Quota) Quota {
	if q.unlimited || other.unlimited {
		return Unlimited()
	}
	return Bounded(q.n + other.n)
}

func (q Quota) String() string {
	if q.unlimited {
		return "unlimited"
	}
	return strconv.FormatInt(q.n, 10)
}

// MarshalJSON encodes unlimited as null and bounded quotas as integers.
func (q Quota) MarshalJSON() ([]byte, error) {
	if q.unlimited {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, q.n, 10), nil
}

// UnmarshalJSON accepts null or the string "unlimited" as unlimited, and integers as bounds.
func (q *Quota) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`"unlimited"`)) {
		*q = Unlimited()
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return ErrInvalidQuota
	}
	if n < 0 {
		return ErrInvalidQuota
	}
	*q = Bounded(n)
	return nil
}
