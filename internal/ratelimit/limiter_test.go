package ratelimit

import (
	"sync"
	"testing"
	"time"
)

const actionCreate = "create_ticket"

func newTestLimiter(max int, window time.Duration) (*Limiter, *time.Time) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(map[string]Policy{
		actionCreate: {MaxAttempts: max, Window: window},
	}, func() time.Time { return now })
	return l, &now
}

func TestAllowDeniesOverLimit(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow(1, actionCreate) {
			t.Fatalf("attempt %d denied, want allowed", i+1)
		}
	}
	if l.Allow(1, actionCreate) {
		t.Fatalf("attempt over the limit allowed")
	}
}

func TestWindowSlides(t *testing.T) {
	l, now := newTestLimiter(2, time.Minute)

	if !l.Allow(1, actionCreate) {
		t.Fatalf("first attempt denied")
	}
	*now = now.Add(30 * time.Second)
	if !l.Allow(1, actionCreate) {
		t.Fatalf("second attempt denied")
	}
	if l.Allow(1, actionCreate) {
		t.Fatalf("third attempt allowed inside window")
	}

	// Once the oldest attempt leaves the window, exactly one slot frees up.
	*now = now.Add(31 * time.Second)
	if !l.Allow(1, actionCreate) {
		t.Fatalf("attempt denied after window slid")
	}
	if l.Allow(1, actionCreate) {
		t.Fatalf("second slot should still be occupied")
	}
}

func TestSubjectsAreIsolated(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	if !l.Allow(1, actionCreate) {
		t.Fatalf("subject 1 denied")
	}
	if !l.Allow(2, actionCreate) {
		t.Fatalf("subject 2 throttled by subject 1's attempts")
	}
	if l.Allow(1, actionCreate) {
		t.Fatalf("subject 1 allowed over its limit")
	}
}

func TestUnconfiguredActionNeverLimited(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	for i := 0; i < 100; i++ {
		if !l.Allow(1, "unknown_action") {
			t.Fatalf("unconfigured action denied on attempt %d", i+1)
		}
	}
	if _, ok := l.RemainingAttempts(1, "unknown_action"); ok {
		t.Fatalf("RemainingAttempts reported a policy for an unconfigured action")
	}
}

func TestRemainingAttemptsDoesNotConsume(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)

	if !l.Allow(1, actionCreate) {
		t.Fatalf("attempt denied")
	}
	for i := 0; i < 5; i++ {
		remaining, ok := l.RemainingAttempts(1, actionCreate)
		if !ok || remaining != 2 {
			t.Fatalf("remaining = %d (ok=%v), want 2", remaining, ok)
		}
	}
}

func TestTimeUntilReset(t *testing.T) {
	l, now := newTestLimiter(2, time.Minute)

	if d := l.TimeUntilReset(1, actionCreate); d != 0 {
		t.Fatalf("unlimited subject reported reset wait %v", d)
	}

	l.Allow(1, actionCreate)
	l.Allow(1, actionCreate)
	*now = now.Add(10 * time.Second)
	if d := l.TimeUntilReset(1, actionCreate); d != 50*time.Second {
		t.Fatalf("TimeUntilReset = %v, want 50s", d)
	}
}

func TestReset(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	l.Allow(1, actionCreate)
	if l.Allow(1, actionCreate) {
		t.Fatalf("attempt over limit allowed")
	}
	l.Reset(1, actionCreate)
	if !l.Allow(1, actionCreate) {
		t.Fatalf("attempt denied after reset")
	}
}

func TestConcurrentAllowRespectsLimit(t *testing.T) {
	const max = 10
	l, _ := newTestLimiter(max, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow(1, actionCreate) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != max {
		t.Fatalf("allowed = %d, want exactly %d", allowed, max)
	}
}
