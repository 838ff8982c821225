package subscription

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// PlanDuration returns the template's nominal validity. Zero for nil or non-positive durations.
func PlanDuration(t *Template) time.Duration {
	if t == nil || t.DurationDays <= 0 {
		return 0
	}
	return time.Duration(t.DurationDays) * day
}

// Consumed returns the validity used so far: time accumulated across past active
// periods plus the live span of the current one.
func Consumed(s *Subscription, now time.Time) time.Duration {
	used := max(s.AccumulatedUsed, 0)
	if s.Status == StatusActive && s.LastActivatedAt != nil {
		used += max(now.Sub(*s.LastActivatedAt), 0)
	}
	return used
}

// Remaining returns how much validity the subscription has left at now.
// The result is never negative and never exceeds the subscription's ValidityCap.
func Remaining(s *Subscription, t *Template, now time.Time) time.Duration {
	duration := PlanDuration(t)
	if s == nil || duration <= 0 {
		return 0
	}
	remaining := max(duration-Consumed(s, now), 0)
	if s.ValidityCap != nil {
		remaining = min(remaining, max(*s.ValidityCap, 0))
	}
	return remaining
}

// RemainingParts is a remaining duration split into whole units, each floored.
type RemainingParts struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

// FormatRemaining decomposes d into days, hours, minutes and seconds.
func FormatRemaining(d time.Duration) RemainingParts {
	if d <= 0 {
		return RemainingParts{}
	}
	return RemainingParts{
		Days:    int64(d / day),
		Hours:   int64(d % day / time.Hour),
		Minutes: int64(d % time.Hour / time.Minute),
		Seconds: int64(d % time.Minute / time.Second),
	}
}

func (p RemainingParts) String() string {
	return fmt.Sprintf("%dd %dh %dm %ds", p.Days, p.Hours, p.Minutes, p.Seconds)
}
