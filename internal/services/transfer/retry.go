package transfer

import (
	"math"
	"math/rand"
	"time"

	"github.com/stridesync/stridesync/internal/models"
)

// RetryPolicy computes backoff delays: exponential doubling from the base,
// capped, with 50-150% jitter so concurrent retries spread out.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// randFloat is swappable in tests.
	randFloat func() float64
}

// NewRetryPolicy builds a policy from a job's retry snapshot.
func NewRetryPolicy(settings models.RetrySettings) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: settings.MaxAttempts,
		BaseDelay:   time.Duration(settings.BaseDelaySeconds * float64(time.Second)),
		MaxDelay:    time.Duration(settings.MaxDelaySeconds * float64(time.Second)),
		randFloat:   rand.Float64,
	}
}

// Delay returns the sleep before retry attempt n (1-based after the first
// failure): min(base * 2^(n-1), cap) * (0.5 + U[0,1)).
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if backoff > float64(p.MaxDelay) {
		backoff = float64(p.MaxDelay)
	}
	jitter := 0.5 + p.randFloat()
	return time.Duration(backoff * jitter)
}
