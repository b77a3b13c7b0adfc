// Package ratelimit implements per-subject sliding-window admission control.
// Windows live only in process memory; losing them merely resets limits.
package ratelimit

import (
	"sync"
	"time"
)

// Policy configures one action's window.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

type key struct {
	SubjectID int64
	Action    string
}

// window holds the attempt timestamps for one (subject, action) pair.
// Each window carries its own lock so distinct keys never contend.
type window struct {
	mu       sync.Mutex
	attempts []time.Time
}

// Limiter is a sliding-window rate limiter. The zero value is not usable;
// construct with New.
type Limiter struct {
	policies map[string]Policy
	now      func() time.Time

	mu      sync.Mutex
	windows map[key]*window
}

// New creates a limiter with the given per-action policies. Actions without
// a policy are never limited.
func New(policies map[string]Policy) *Limiter {
	return NewWithClock(policies, time.Now)
}

// NewWithClock creates a limiter with an injectable clock.
func NewWithClock(policies map[string]Policy, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	copied := make(map[string]Policy, len(policies))
	for action, policy := range policies {
		copied[action] = policy
	}
	return &Limiter{
		policies: copied,
		now:      now,
		windows:  make(map[key]*window),
	}
}

// Allow reports whether the subject may perform the action now, and if so
// records the attempt. Unconfigured actions are always allowed; the limiter
// never blocks and never returns an error.
func (l *Limiter) Allow(subjectID int64, action string) bool {
	policy, ok := l.policies[action]
	if !ok || policy.MaxAttempts <= 0 || policy.Window <= 0 {
		return true
	}

	w := l.window(subjectID, action)
	now := l.now()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.evict(now.Add(-policy.Window))
	if len(w.attempts) >= policy.MaxAttempts {
		return false
	}
	w.attempts = append(w.attempts, now)
	return true
}

// Reset clears the subject's window for the action.
func (l *Limiter) Reset(subjectID int64, action string) {
	l.mu.Lock()
	delete(l.windows, key{SubjectID: subjectID, Action: action})
	l.mu.Unlock()
}

// RemainingAttempts returns how many attempts are left in the current
// window. The second result is false for unconfigured actions. Reading
// never consumes an attempt.
func (l *Limiter) RemainingAttempts(subjectID int64, action string) (int, bool) {
	policy, ok := l.policies[action]
	if !ok || policy.MaxAttempts <= 0 || policy.Window <= 0 {
		return 0, false
	}

	w := l.window(subjectID, action)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evict(l.now().Add(-policy.Window))
	remaining := policy.MaxAttempts - len(w.attempts)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// TimeUntilReset returns how long until the oldest recorded attempt falls
// out of the window, or zero when the subject is not currently limited.
func (l *Limiter) TimeUntilReset(subjectID int64, action string) time.Duration {
	policy, ok := l.policies[action]
	if !ok || policy.MaxAttempts <= 0 || policy.Window <= 0 {
		return 0
	}

	w := l.window(subjectID, action)
	now := l.now()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.evict(now.Add(-policy.Window))
	if len(w.attempts) < policy.MaxAttempts {
		return 0
	}
	return w.attempts[0].Add(policy.Window).Sub(now)
}

func (l *Limiter) window(subjectID int64, action string) *window {
	k := key{SubjectID: subjectID, Action: action}
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[k]
	if !ok {
		w = &window{}
		l.windows[k] = w
	}
	return w
}

// evict drops attempts at or before the cutoff. Caller holds w.mu.
func (w *window) evict(cutoff time.Time) {
	idx := 0
	for idx < len(w.attempts) && !w.attempts[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		w.attempts = append(w.attempts[:0], w.attempts[idx:]...)
	}
}
