package clock

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	c := RealClock{}

	before := time.Now()
	now := c.Now()
	after := time.Now()

	if now.Before(before) {
		t.Errorf("clock time %v is before measurement time %v", now, before)
	}
	if now.After(after) {
		t.Errorf("clock time %v is after measurement time %v", now, after)
	}
}

func TestFixedClock_NowAndAdvance(t *testing.T) {
	start := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	c := &FixedClock{CurrentTime: start}

	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("expected %v, got %v", start, got)
	}
	if first, second := c.Now(), c.Now(); !first.Equal(second) {
		t.Fatalf("fixed clock drifted: %v vs %v", first, second)
	}

	c.Advance(90 * time.Minute)
	want := start.Add(90 * time.Minute)
	if got := c.Now(); !got.Equal(want) {
		t.Fatalf("after advance expected %v, got %v", want, got)
	}
}

func TestClockInterface(t *testing.T) {
	var _ Clock = RealClock{}
	var _ Clock = &FixedClock{}
}
