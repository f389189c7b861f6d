package resilient

import (
	"math/rand"
	"time"
)

// RetryPolicy is the exponential-backoff-with-full-jitter schedule: base
// 500ms, factor 2, cap 30s.
type RetryPolicy struct {
	Base        time.Duration
	Factor      float64
	Cap         time.Duration
	MaxAttempts int
}

func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		Base:        500 * time.Millisecond,
		Factor:      2,
		Cap:         30 * time.Second,
		MaxAttempts: maxAttempts,
	}
}

// Backoff returns the jittered sleep duration before attempt number attempt
// (1-indexed: the delay preceding the 2nd try).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.Base)
	for i := 1; i < attempt; i++ {
		d *= p.Factor
		if time.Duration(d) > p.Cap {
			d = float64(p.Cap)
			break
		}
	}
	if time.Duration(d) > p.Cap {
		d = float64(p.Cap)
	}
	// full jitter: uniform in [0, d]
	return time.Duration(rand.Float64() * d)
}

// RetryAfter honors a provider's Retry-After hint (seconds), capped at max.
func RetryAfter(seconds int, max time.Duration) time.Duration {
	d := time.Duration(seconds) * time.Second
	if d <= 0 {
		return 0
	}
	if d > max {
		return max
	}
	return d
}
