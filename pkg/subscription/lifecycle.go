package subscription

import "time"

// Pause stops the validity clock, folding the live active span into AccumulatedUsed.
// Expired subscriptions keep their status. Reports whether the subscription changed.
func Pause(s *Subscription, now time.Time) bool {
	changed := false
	if s.Status == StatusActive && s.LastActivatedAt != nil {
		s.AccumulatedUsed += max(now.Sub(*s.LastActivatedAt), 0)
		s.LastActivatedAt = nil
		changed = true
	}
	if s.Status != StatusExpired && s.Status != StatusPaused {
		s.Status = StatusPaused
		changed = true
	}
	return changed
}

// Refresh projects the expiry date from the remaining validity, or marks the
// subscription expired when nothing is left. An expired subscription is left as is,
// so its expiry date never moves again. Reports whether the subscription changed.
func Refresh(s *Subscription, t *Template, now time.Time, remaining time.Duration) bool {
	if s.Status == StatusExpired {
		return false
	}
	if remaining <= 0 {
		s.Status = StatusExpired
		if s.ExpiryDate == nil || s.ExpiryDate.After(now) {
			s.ExpiryDate = timePtr(now)
		}
		s.LastActivatedAt = nil
		s.AccumulatedUsed = PlanDuration(t)
		return true
	}
	expiry := now.Add(remaining)
	if s.ExpiryDate != nil && s.ExpiryDate.Equal(expiry) {
		return false
	}
	s.ExpiryDate = timePtr(expiry)
	return true
}

// Activate starts the validity clock at now and refreshes the expiry projection.
// A clock that is already running is folded into AccumulatedUsed first.
func Activate(s *Subscription, t *Template, now time.Time) {
	if s.Status == StatusActive && s.LastActivatedAt != nil {
		s.AccumulatedUsed += max(now.Sub(*s.LastActivatedAt), 0)
	}
	s.Status = StatusActive
	s.LastActivatedAt = timePtr(now)
	Refresh(s, t, now, Remaining(s, t, now))
}
