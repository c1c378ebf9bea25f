package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/five82/tagplayer/internal/logging"
	"github.com/five82/tagplayer/internal/machine"
	"github.com/five82/tagplayer/internal/spotify"
	"github.com/five82/tagplayer/internal/state"
)

// ErrRestart is returned by Run when the process should restart itself.
var ErrRestart = machine.ErrRestart

// ErrLoopStopped is returned by Do when the loop is no longer running.
var ErrLoopStopped = errors.New("host loop stopped")

const defaultTickInterval = 10 * time.Millisecond

// Ticker advances the application one step.
type Ticker interface {
	Tick(ctx context.Context) error
}

type job struct {
	fn   func(ctx context.Context, c *spotify.Client)
	done chan struct{}
}

// Loop is the single task that owns the API client. Each iteration ticks the
// machine, runs queued jobs, publishes the session to the store and waits for
// the next cadence tick.
type Loop struct {
	ticker   Ticker
	client   *spotify.Client
	store    *state.Store
	clock    clockwork.Clock
	interval time.Duration
	jobs     chan job
	restart  atomic.Bool
	running  atomic.Bool
	logger   zerolog.Logger
}

// NewLoop builds a host loop. A zero interval uses 10ms.
func NewLoop(t Ticker, client *spotify.Client, store *state.Store, clock clockwork.Clock, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = defaultTickInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Loop{
		ticker:   t,
		client:   client,
		store:    store,
		clock:    clock,
		interval: interval,
		jobs:     make(chan job, 16),
		logger:   logging.Component("loop"),
	}
}

// Serve implements suture.Service.
func (l *Loop) Serve(ctx context.Context) error {
	l.running.Store(true)
	defer l.running.Store(false)

	tick := l.clock.NewTicker(l.interval)
	defer tick.Stop()

	for {
		if err := l.step(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.Chan():
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (l *Loop) String() string {
	return "host-loop"
}

func (l *Loop) step(ctx context.Context) error {
	err := l.ticker.Tick(ctx)
	if err == nil && l.restart.Load() {
		l.logger.Warn().Msg("restart requested")
		err = ErrRestart
	}
	if errors.Is(err, ErrRestart) {
		return fmt.Errorf("%w: %w", err, suture.ErrTerminateSupervisorTree)
	}
	if err != nil {
		l.logger.Error().Err(err).Msg("tick failed")
	}

	l.drain(ctx)
	l.publish()
	return nil
}

func (l *Loop) drain(ctx context.Context) {
	for {
		select {
		case j := <-l.jobs:
			j.fn(ctx, l.client)
			close(j.done)
		default:
			return
		}
	}
}

func (l *Loop) publish() {
	if l.store == nil || l.client == nil {
		return
	}
	l.store.SetSession(state.Session{
		Authenticated:   l.client.IsAuthenticated(),
		DeviceAvailable: l.client.IsDeviceAvailable(),
		DeviceID:        l.client.DeviceID(),
		DeviceName:      l.client.DeviceName(),
	})
}

// Do runs fn on the loop goroutine after the next tick and waits for it to
// finish. fn must not call Do.
func (l *Loop) Do(ctx context.Context, fn func(ctx context.Context, c *spotify.Client)) error {
	if !l.running.Load() {
		return ErrLoopStopped
	}
	j := job{fn: fn, done: make(chan struct{})}
	select {
	case l.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestRestart makes the loop end the supervisor tree with ErrRestart on
// its next iteration.
func (l *Loop) RequestRestart() {
	l.restart.Store(true)
}
