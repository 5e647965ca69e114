package radio

import (
	"math"
	"math/rand"
	"time"
)

// Backoff spaces out retries after a driver's receive path fails, so a
// missing serial device or closed socket does not spin.
type Backoff struct {
	Initial    time.Duration
	Multiplier float64
	Max        time.Duration
	Jitter     bool
}

func DefaultReadBackoff() Backoff {
	return Backoff{
		Initial:    10 * time.Millisecond,
		Multiplier: 2.0,
		Max:        time.Second,
		Jitter:     true,
	}
}

// Delay returns the wait before retry attempt n (1-based). A nil rng with
// Jitter set halves the delay.
func (b Backoff) Delay(attempt int, rng *rand.Rand) time.Duration {
	if b.Initial <= 0 {
		return 0
	}
	mult := b.Multiplier
	if mult < 1.0 {
		mult = 1.0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(b.Initial) * math.Pow(mult, float64(attempt-1))
	if b.Max > 0 && delay > float64(b.Max) {
		delay = float64(b.Max)
	}
	if b.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}
