package ratelimit

import (
	"testing"
	"time"
)

func TestAllowConsumesBurst(t *testing.T) {
	l := New()
	for i := 0; i < 2; i++ {
		if !l.Allow("k", 2, 0.001) {
			t.Fatalf("Allow #%d = false, want true within burst", i+1)
		}
	}
	if l.Allow("k", 2, 0.001) {
		t.Fatal("Allow = true after burst exhausted")
	}
}

func TestAllowRefills(t *testing.T) {
	l := New()
	// empty bucket that has been idle long enough to earn one token back
	l.m["k"] = &bucket{tokens: 0, capacity: 1, refillRate: 2, last: time.Now().Add(-time.Second)}
	if !l.Allow("k", 1, 2) {
		t.Fatal("Allow = false after refill window")
	}
	if l.Allow("k", 1, 2) {
		t.Fatal("Allow = true with empty bucket")
	}
}

func TestAllowCapsRefillAtCapacity(t *testing.T) {
	l := New()
	// an hour idle at 1 token/s must not accumulate beyond capacity
	l.m["k"] = &bucket{tokens: 0, capacity: 2, refillRate: 1, last: time.Now().Add(-time.Hour)}
	for i := 0; i < 2; i++ {
		if !l.Allow("k", 2, 1) {
			t.Fatalf("Allow #%d = false, want capacity tokens available", i+1)
		}
	}
	if l.Allow("k", 2, 1) {
		t.Fatal("Allow = true beyond capacity, refill not capped")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0.001) {
		t.Fatal("Allow(a) = false")
	}
	if !l.Allow("b", 1, 0.001) {
		t.Fatal("Allow(b) = false, keys must not share buckets")
	}
}
