package radio

import (
	"math/rand"
	"testing"
	"time"
)

func TestBackoffDelayDeterministicNoJitter(t *testing.T) {
	b := Backoff{Initial: 10 * time.Millisecond, Multiplier: 2, Max: 50 * time.Millisecond}
	want := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		50 * time.Millisecond,
		50 * time.Millisecond,
	}
	for i, w := range want {
		if got := b.Delay(i+1, nil); got != w {
			t.Fatalf("attempt %d: delay = %v, want %v", i+1, got, w)
		}
	}
	if got := b.Delay(0, nil); got != 10*time.Millisecond {
		t.Fatalf("attempt 0 should clamp to first delay, got %v", got)
	}
}

func TestBackoffJitterRange(t *testing.T) {
	b := DefaultReadBackoff()
	rng := rand.New(rand.NewSource(7))
	for attempt := 1; attempt <= 10; attempt++ {
		base := Backoff{Initial: b.Initial, Multiplier: b.Multiplier, Max: b.Max}.Delay(attempt, nil)
		got := b.Delay(attempt, rng)
		if got < base/2 || got > base*3/2 {
			t.Fatalf("attempt %d: jittered %v outside [%v, %v]", attempt, got, base/2, base*3/2)
		}
	}
	if got := (Backoff{}).Delay(3, nil); got != 0 {
		t.Fatalf("zero backoff = %v", got)
	}
}
