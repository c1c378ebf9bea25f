package spotify

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestBaseDelay_GrowsThenCaps(t *testing.T) {
	p := DefaultRetryPolicy()
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{12, 10 * time.Second},
		{-1, 1 * time.Second},
	}
	for _, tt := range tests {
		if got := p.BaseDelay(tt.retry); got != tt.want {
			t.Fatalf("BaseDelay(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

func TestBaseDelay_MonotonicAndBounded(t *testing.T) {
	policies := []RetryPolicy{
		DefaultRetryPolicy(),
		{MaxRetries: 5, InitialDelay: 300 * time.Millisecond, MaxDelay: 7 * time.Second, Multiplier: 1.5},
		{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 3},
		{MaxRetries: 5, InitialDelay: 5 * time.Second, MaxDelay: 2 * time.Second, Multiplier: 2},
		{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Hour, Multiplier: 1},
	}
	for _, p := range policies {
		prev := time.Duration(0)
		for retry := 0; retry < 64; retry++ {
			got := p.BaseDelay(retry)
			if got < prev {
				t.Fatalf("%+v: BaseDelay(%d) = %v, below previous %v", p, retry, got, prev)
			}
			if got > p.MaxDelay {
				t.Fatalf("%+v: BaseDelay(%d) = %v, above max %v", p, retry, got, p.MaxDelay)
			}
			prev = got
		}
	}
}

func TestJitter_WithinQuarterAndNonNegative(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for _, base := range []time.Duration{0, 1, 3, 4, time.Millisecond, time.Second, 10 * time.Second} {
		quarter := base / 4
		for i := 0; i < 500; i++ {
			got := jitter(base, rng)
			if got < 0 {
				t.Fatalf("jitter(%v) = %v, want >= 0", base, got)
			}
			if got <= base-quarter-1 || got >= base+quarter+1 {
				t.Fatalf("jitter(%v) = %v, want within (%v, %v)", base, got, base-quarter, base+quarter)
			}
		}
	}
}

func TestJitter_MovesBothWays(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	var above, below bool
	for i := 0; i < 200 && !(above && below); i++ {
		got := jitter(time.Second, rng)
		if got > time.Second {
			above = true
		}
		if got < time.Second {
			below = true
		}
	}
	if !above || !below {
		t.Fatalf("jitter never moved both ways: above=%v below=%v", above, below)
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		wantErr bool
	}{
		{"default", DefaultRetryPolicy(), false},
		{"zero retries", RetryPolicy{MaxRetries: 0, Multiplier: 1}, false},
		{"negative retries", RetryPolicy{MaxRetries: -1, Multiplier: 2}, true},
		{"shrinking multiplier", RetryPolicy{MaxRetries: 1, Multiplier: 0.5}, true},
		{"negative delay", RetryPolicy{InitialDelay: -time.Second, Multiplier: 1}, true},
	}
	for _, tt := range tests {
		err := tt.policy.validate()
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s: validate() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestClockSleeper_WaitsForClockOrContext(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sleep := ClockSleeper(clock)

	done := make(chan error, 1)
	go func() { done <- sleep(context.Background(), 2*time.Second) }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("sleeper never armed its timer: %v", err)
	}
	clock.Advance(2 * time.Second)
	if err := <-done; err != nil {
		t.Fatalf("sleep returned %v, want nil", err)
	}

	cctx, ccancel := context.WithCancel(context.Background())
	ccancel()
	if err := sleep(cctx, time.Hour); err == nil {
		t.Fatalf("sleep on canceled context returned nil, want error")
	}
}
