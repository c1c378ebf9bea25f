package spotify

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
)

// RetryPolicy controls the generic call wrapper.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy returns 3 retries starting at 1s, doubling up to 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

func (p RetryPolicy) validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries %d must be >= 0", p.MaxRetries)
	}
	if p.Multiplier < 1.0 {
		return fmt.Errorf("multiplier %v must be >= 1.0", p.Multiplier)
	}
	if p.InitialDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	return nil
}

// BaseDelay is the pre-jitter delay before retry number retry (0-based). It
// grows by Multiplier per retry and stops once it reaches MaxDelay.
func (p RetryPolicy) BaseDelay(retry int) time.Duration {
	delay := p.InitialDelay
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	for i := 0; i < retry; i++ {
		next := time.Duration(float64(delay) * p.Multiplier)
		if next >= p.MaxDelay || next < delay {
			return p.MaxDelay
		}
		delay = next
	}
	return delay
}

// jitter moves delay by a uniform offset in [0, delay/4), up or down with
// equal probability. The result is never negative.
func jitter(delay time.Duration, rng *rand.Rand) time.Duration {
	quarter := int64(delay / 4)
	if quarter <= 0 {
		return delay
	}
	var offset int64
	var up bool
	if rng != nil {
		offset = rng.Int64N(quarter)
		up = rng.IntN(2) == 0
	} else {
		offset = rand.Int64N(quarter)
		up = rand.IntN(2) == 0
	}
	if up {
		return delay + time.Duration(offset)
	}
	return delay - time.Duration(offset)
}

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// ClockSleeper returns a Sleeper driven by clock.
func ClockSleeper(clock clockwork.Clock) Sleeper {
	return func(ctx context.Context, d time.Duration) error {
		if d <= 0 {
			return ctx.Err()
		}
		timer := clock.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.Chan():
			return nil
		}
	}
}
