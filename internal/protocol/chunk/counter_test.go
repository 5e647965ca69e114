package chunk

import (
	"errors"
	"math"
	"testing"
)

func TestCounterStartsAtOne(t *testing.T) {
	c := NewCounter(0)
	for want := uint64(1); want <= 3; want++ {
		got, err := c.Next()
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if got != want {
			t.Fatalf("counter = %d, want %d", got, want)
		}
	}
	if c.Peek() != 4 {
		t.Fatalf("peek = %d, want 4", c.Peek())
	}
}

func TestCounterRefusesToWrap(t *testing.T) {
	c := NewCounter(math.MaxUint64 - 1)
	for _, want := range []uint64{math.MaxUint64 - 1, math.MaxUint64} {
		got, err := c.Next()
		if err != nil || got != want {
			t.Fatalf("next = %d, %v; want %d", got, err, want)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := c.Next(); !errors.Is(err, ErrCounterExhausted) {
			t.Fatalf("expected ErrCounterExhausted, got %v", err)
		}
	}
}
