package machine

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/five82/tagplayer/internal/feedback"
	"github.com/five82/tagplayer/internal/logging"
	"github.com/five82/tagplayer/internal/metrics"
	"github.com/five82/tagplayer/internal/spotify"
	"github.com/five82/tagplayer/internal/tag"
)

// ErrRestart is returned by Tick once ERROR_RECOVERY has cooled down. The
// process is expected to restart itself.
var ErrRestart = errors.New("restart requested")

// PlaybackClient is the subset of *spotify.Client the machine drives.
type PlaybackClient interface {
	SetCredentials(spotify.Credentials)
	HasCredentials() bool
	IsAuthenticated() bool
	IsDeviceAvailable() bool
	FetchAccessToken(ctx context.Context) bool
	DiscoverDevice(ctx context.Context) bool
	PlayURI(ctx context.Context, uri string) bool
}

// TagSource delivers taps.
type TagSource interface {
	Begin() error
	PollNewTag() bool
	ReadURI() tag.Result
}

// CredentialSource reports the current credentials. A version change means
// the credentials were replaced.
type CredentialSource interface {
	Current() (spotify.Credentials, uint64)
}

// Network answers whether the API is reachable.
type Network interface {
	Connected(ctx context.Context) bool
}

// Observer is told about state changes, cues and playback results.
type Observer interface {
	SetState(name string, since time.Time)
	SetCue(cue string)
	RecordPlayback(uri string, err error)
}

// Deps wires a Machine to its collaborators.
type Deps struct {
	Client      PlaybackClient
	Tags        TagSource
	Sink        feedback.Sink
	Credentials CredentialSource
	Network     Network
	Observer    Observer
	Clock       clockwork.Clock
	Timing      Timing
}

// Machine is the application state machine. It is driven by Tick from a
// single goroutine.
type Machine struct {
	client  PlaybackClient
	tags    TagSource
	sink    feedback.Sink
	creds   CredentialSource
	network Network
	obs     Observer
	clock   clockwork.Clock
	timing  Timing
	logger  zerolog.Logger

	state        State
	entered      time.Time
	entryPending bool
	lastTick     time.Time

	debounce    *rate.Limiter
	credVersion uint64
	apiReady    bool
	pendingURI  string
	tapID       string
	failure     error

	deadline     time.Time
	resumeAt     time.Time
	nextProbe    time.Time
	nextNetCheck time.Time
}

// New builds a Machine in BOOT.
func New(d Deps) *Machine {
	clock := d.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	obs := d.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	sink := d.Sink
	if sink == nil {
		sink = feedback.SinkFunc(func(feedback.Cue) {})
	}
	m := &Machine{
		client:       d.Client,
		tags:         d.Tags,
		sink:         sink,
		creds:        d.Credentials,
		network:      d.Network,
		obs:          obs,
		clock:        clock,
		timing:       d.Timing,
		logger:       logging.Component("machine"),
		state:        Boot,
		entered:      clock.Now(),
		entryPending: true,
		debounce:     rate.NewLimiter(rate.Every(d.Timing.Debounce), 1),
	}
	obs.SetState(Boot.String(), m.entered)
	return m
}

// State returns the active state.
func (m *Machine) State() State { return m.state }

// APIReady reports whether the last API initialization succeeded.
func (m *Machine) APIReady() bool { return m.apiReady }

// PendingURI returns the URI read from the current tap, if any.
func (m *Machine) PendingURI() string { return m.pendingURI }

// Tick advances the machine. Calls closer together than Timing.Tick do
// nothing, less a tenth of slack so a ticker firing right after a slow tick
// is not skipped. The entry action of a newly entered state runs once, before
// its per-tick action.
func (m *Machine) Tick(ctx context.Context) error {
	now := m.clock.Now()
	minGap := m.timing.Tick - m.timing.Tick/10
	if !m.lastTick.IsZero() && now.Sub(m.lastTick) < minGap {
		return nil
	}
	m.lastTick = now

	if m.entryPending {
		m.entryPending = false
		m.enter(now)
	}
	return m.step(ctx, now)
}

// transition moves to a new state. Moving to the active state is a no-op.
func (m *Machine) transition(to State) {
	if to == m.state {
		return
	}
	from := m.state
	m.state = to
	m.entered = m.clock.Now()
	m.entryPending = true

	ev := m.logger.Info().Str("from", from.String()).Str("to", to.String())
	if m.tapID != "" {
		ev = ev.Str("tap", m.tapID)
	}
	ev.Msg("state transition")
	metrics.RecordTransition(from.String(), to.String())
	m.obs.SetState(to.String(), m.entered)
}

func (m *Machine) show(c feedback.Cue) {
	m.sink.Show(c)
	m.obs.SetCue(string(c))
}

// syncCredentials hands new credentials to the client when the source
// version moved. It reports whether anything changed.
func (m *Machine) syncCredentials() bool {
	if m.creds == nil {
		return false
	}
	creds, version := m.creds.Current()
	if version == m.credVersion {
		return false
	}
	m.credVersion = version
	m.client.SetCredentials(creds)
	m.logger.Info().Uint64("version", version).Bool("complete", creds.Valid()).Msg("credentials applied")
	return true
}

func (m *Machine) credentialsChanged() bool {
	if m.creds == nil {
		return false
	}
	_, version := m.creds.Current()
	return version != m.credVersion
}

type nopObserver struct{}

func (nopObserver) SetState(string, time.Time) {}

func (nopObserver) SetCue(string) {}

func (nopObserver) RecordPlayback(string, error) {}
