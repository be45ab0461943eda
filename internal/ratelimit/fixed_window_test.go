package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestAllowCapsHitsPerWindow(t *testing.T) {
	redis := miniredis.RunT(t)
	l, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "", 2, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}

	if !l.Allow("203.0.113.7") || !l.Allow("203.0.113.7") {
		t.Fatal("first two hits rejected")
	}
	if l.Allow("203.0.113.7") {
		t.Fatal("third hit within the window was allowed")
	}
	// Other keys have their own budget.
	if !l.Allow("198.51.100.1") {
		t.Fatal("distinct key rejected")
	}
}

func TestAllowResetsOnNextWindow(t *testing.T) {
	redis := miniredis.RunT(t)
	l, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "", 1, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	if !l.Allow("k") {
		t.Fatal("first hit rejected")
	}
	if l.Allow("k") {
		t.Fatal("second hit in same window allowed")
	}

	l.now = func() time.Time { return base.Add(time.Minute) }
	if !l.Allow("k") {
		t.Fatal("hit in next window rejected")
	}
}

func TestAllowFailsClosedWhenRedisDown(t *testing.T) {
	redis := miniredis.RunT(t)
	l, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "", 5, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	redis.Close()

	if l.Allow("k") {
		t.Fatal("limiter allowed a hit with redis unreachable")
	}
}

func TestNewLimiterValidatesInputs(t *testing.T) {
	if _, err := NewRedisFixedWindowLimiter("", "", "", 5, time.Minute); err == nil {
		t.Fatal("accepted empty addr")
	}
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", "", 0, time.Minute); err == nil {
		t.Fatal("accepted zero limit")
	}
}
