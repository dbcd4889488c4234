package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()
	if got.Before(before) || got.After(after) {
		t.Errorf("RealClock.Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestMockClock(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)

	if got := c.Now(); !got.Equal(base) {
		t.Errorf("Now() = %v, want %v", got, base)
	}

	c.Advance(90 * time.Second)
	if got := c.Now(); !got.Equal(base.Add(90 * time.Second)) {
		t.Errorf("Now() after Advance = %v, want %v", got, base.Add(90*time.Second))
	}

	if got := c.Since(base); got != 90*time.Second {
		t.Errorf("Since(base) = %v, want 90s", got)
	}

	reset := base.Add(time.Hour)
	c.Set(reset)
	if got := c.Now(); !got.Equal(reset) {
		t.Errorf("Now() after Set = %v, want %v", got, reset)
	}
}
