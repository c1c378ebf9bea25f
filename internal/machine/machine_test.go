package machine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/five82/tagplayer/internal/feedback"
	"github.com/five82/tagplayer/internal/spotify"
	"github.com/five82/tagplayer/internal/tag"
)

var validCreds = spotify.Credentials{
	ClientID:     "id",
	ClientSecret: "secret",
	DeviceName:   "Den",
	RefreshToken: "refresh",
}

type fakeClient struct {
	creds          spotify.Credentials
	authed, device bool

	fetchOK, discoverOK, playOK bool

	fetches, discovers, plays int
	applied                   []spotify.Credentials
	lastURI                   string
}

func (f *fakeClient) SetCredentials(c spotify.Credentials) {
	f.creds = c
	f.authed = false
	f.device = false
	f.applied = append(f.applied, c)
}

func (f *fakeClient) HasCredentials() bool { return f.creds.Valid() }

func (f *fakeClient) IsAuthenticated() bool { return f.authed }

func (f *fakeClient) IsDeviceAvailable() bool { return f.device }

func (f *fakeClient) FetchAccessToken(context.Context) bool {
	f.fetches++
	if f.fetchOK {
		f.authed = true
	}
	return f.fetchOK
}

func (f *fakeClient) DiscoverDevice(context.Context) bool {
	f.discovers++
	if f.discoverOK {
		f.device = true
	}
	return f.discoverOK
}

func (f *fakeClient) PlayURI(_ context.Context, uri string) bool {
	f.plays++
	f.lastURI = uri
	return f.playOK
}

type fakeTags struct {
	beginErr error
	begun    int
	pending  bool
	result   tag.Result
}

func (f *fakeTags) Begin() error { f.begun++; return f.beginErr }

func (f *fakeTags) PollNewTag() bool {
	p := f.pending
	f.pending = false
	return p
}

func (f *fakeTags) ReadURI() tag.Result { return f.result }

func (f *fakeTags) tap(res tag.Result) {
	f.pending = true
	f.result = res
}

type fakeCreds struct {
	creds   spotify.Credentials
	version uint64
}

func (f *fakeCreds) Current() (spotify.Credentials, uint64) { return f.creds, f.version }

type fakeNet struct {
	up     bool
	probes int
}

func (f *fakeNet) Connected(context.Context) bool { f.probes++; return f.up }

type recordingObserver struct {
	states    []string
	playbacks []error
}

func (r *recordingObserver) SetState(name string, _ time.Time) { r.states = append(r.states, name) }

func (r *recordingObserver) SetCue(string) {}

func (r *recordingObserver) RecordPlayback(_ string, err error) {
	r.playbacks = append(r.playbacks, err)
}

func (r *recordingObserver) visited(name string) bool {
	for _, s := range r.states {
		if s == name {
			return true
		}
	}
	return false
}

type harness struct {
	m      *Machine
	clock  *clockwork.FakeClock
	client *fakeClient
	tags   *fakeTags
	creds  *fakeCreds
	net    *fakeNet
	cues   *feedback.Recorder
	obs    *recordingObserver
	timing Timing
}

func newHarness(t *testing.T, timing Timing, creds spotify.Credentials) *harness {
	t.Helper()
	h := &harness{
		clock:  clockwork.NewFakeClock(),
		client: &fakeClient{fetchOK: true, discoverOK: true, playOK: true},
		tags:   &fakeTags{},
		creds:  &fakeCreds{creds: creds, version: 1},
		net:    &fakeNet{up: true},
		cues:   &feedback.Recorder{},
		obs:    &recordingObserver{},
		timing: timing,
	}
	h.m = New(Deps{
		Client:      h.client,
		Tags:        h.tags,
		Sink:        h.cues,
		Credentials: h.creds,
		Network:     h.net,
		Observer:    h.obs,
		Clock:       h.clock,
		Timing:      timing,
	})
	return h
}

// tick runs one Tick and advances the clock by one interval.
func (h *harness) tick(t *testing.T) error {
	t.Helper()
	err := h.m.Tick(context.Background())
	h.clock.Advance(h.timing.Tick)
	return err
}

// runFor ticks for d of fake time and returns the first error.
func (h *harness) runFor(t *testing.T, d time.Duration) error {
	t.Helper()
	for elapsed := time.Duration(0); elapsed < d; elapsed += h.timing.Tick {
		if err := h.tick(t); err != nil {
			return err
		}
	}
	return nil
}

// runUntil ticks until the machine reaches want, failing after limit.
func (h *harness) runUntil(t *testing.T, want State, limit time.Duration) {
	t.Helper()
	for elapsed := time.Duration(0); elapsed < limit; elapsed += h.timing.Tick {
		if h.m.State() == want {
			return
		}
		if err := h.tick(t); err != nil {
			t.Fatalf("Tick returned %v while waiting for %s (in %s)", err, want, h.m.State())
		}
	}
	if h.m.State() != want {
		t.Fatalf("state = %s after %v, want %s", h.m.State(), limit, want)
	}
}

// settle runs enough ticks for pending entry actions to fire.
func (h *harness) settle(t *testing.T) {
	t.Helper()
	for i := 0; i < 3; i++ {
		if err := h.tick(t); err != nil {
			t.Fatalf("Tick returned %v", err)
		}
	}
}

func TestBootToIdleWithValidCredentials(t *testing.T) {
	h := newHarness(t, DefaultTiming(), validCreds)

	h.runUntil(t, Idle, 5*time.Second)
	h.settle(t)

	if h.obs.visited(ErrorRecovery.String()) {
		t.Fatalf("visited ERROR_RECOVERY: %v", h.obs.states)
	}
	if !h.client.IsAuthenticated() || !h.client.IsDeviceAvailable() || !h.m.APIReady() {
		t.Fatalf("authenticated=%v device=%v ready=%v, want all true", h.client.IsAuthenticated(), h.client.IsDeviceAvailable(), h.m.APIReady())
	}
	want := []string{"BOOT", "WIFI_CONNECTING", "WIFI_CONNECTED", "API_INITIALIZING", "IDLE"}
	if len(h.obs.states) != len(want) {
		t.Fatalf("states = %v, want %v", h.obs.states, want)
	}
	for i := range want {
		if h.obs.states[i] != want[i] {
			t.Fatalf("states = %v, want %v", h.obs.states, want)
		}
	}
	if h.tags.begun != 1 {
		t.Fatalf("tag source Begin calls = %d, want 1", h.tags.begun)
	}
	for _, c := range []feedback.Cue{feedback.CueStartup, feedback.CueConnecting, feedback.CueAPIConnecting, feedback.CueIdle} {
		if h.cues.Count(c) != 1 {
			t.Fatalf("cue %q shown %d times, want 1 (cues %v)", c, h.cues.Count(c), h.cues.Cues())
		}
	}
}

func TestBootWaitsForStartupDelay(t *testing.T) {
	h := newHarness(t, DefaultTiming(), validCreds)
	if err := h.runFor(t, 1400*time.Millisecond); err != nil {
		t.Fatalf("runFor: %v", err)
	}
	if h.m.State() != Boot {
		t.Fatalf("state = %s before boot delay, want BOOT", h.m.State())
	}
	h.runUntil(t, WiFiConnecting, 200*time.Millisecond)
}

func TestTickIsRateLimitedAndEntryRunsOnce(t *testing.T) {
	h := newHarness(t, DefaultTiming(), validCreds)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := h.m.Tick(ctx); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	if got := h.cues.Count(feedback.CueStartup); got != 1 {
		t.Fatalf("startup cue shown %d times, want 1", got)
	}

	h.runUntil(t, Idle, 5*time.Second)
	if err := h.runFor(t, 3*time.Second); err != nil {
		t.Fatalf("runFor: %v", err)
	}
	if got := h.cues.Count(feedback.CueIdle); got != 1 {
		t.Fatalf("idle cue shown %d times over repeated ticks, want 1", got)
	}
	if h.m.State() != Idle {
		t.Fatalf("state = %s, want IDLE", h.m.State())
	}
}

func TestTickAfterLateTickIsNotSkipped(t *testing.T) {
	h := newHarness(t, DefaultTiming(), validCreds)
	ctx := context.Background()

	if err := h.m.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	first := h.m.lastTick

	// A ticker fire that lands slightly early relative to a slow tick.
	h.clock.Advance(h.timing.Tick - h.timing.Tick/20)
	if err := h.m.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !h.m.lastTick.After(first) {
		t.Fatalf("tick %v after the previous one was skipped", h.timing.Tick-h.timing.Tick/20)
	}

	second := h.m.lastTick
	h.clock.Advance(h.timing.Tick / 2)
	if err := h.m.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !h.m.lastTick.Equal(second) {
		t.Fatalf("tick half an interval later ran, want it skipped")
	}
}

func TestTransitionToSameStateIsNoop(t *testing.T) {
	h := newHarness(t, DefaultTiming(), validCreds)
	h.runUntil(t, Idle, 5*time.Second)
	h.settle(t)
	before := len(h.obs.states)

	h.m.transition(Idle)
	h.settle(t)

	if len(h.obs.states) != before {
		t.Fatalf("states grew from %d to %d on same-state transition", before, len(h.obs.states))
	}
	if got := h.cues.Count(feedback.CueIdle); got != 1 {
		t.Fatalf("idle cue shown %d times, want 1", got)
	}
}

func TestBadTagFailsOnceAndReturnsToIdle(t *testing.T) {
	h := newHarness(t, DefaultTiming(), validCreds)
	h.runUntil(t, Idle, 5*time.Second)
	h.settle(t)
	mark := len(h.obs.states)

	h.tags.tap(tag.Result{Success: false, ErrorMessage: "No valid URI found on tag"})
	h.runUntil(t, PlaybackFailed, time.Second)
	h.runUntil(t, Idle, 3*time.Second)
	h.settle(t)

	got := h.obs.states[mark:]
	want := []string{"TAG_DETECTED", "TAG_READING", "PLAYBACK_FAILED", "IDLE"}
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states = %v, want %v", got, want)
		}
	}
	if n := h.cues.Count(feedback.CueFailure); n != 1 {
		t.Fatalf("failure cue shown %d times, want 1", n)
	}
	if h.client.plays != 0 {
		t.Fatalf("PlayURI calls = %d, want 0", h.client.plays)
	}
	if len(h.obs.playbacks) != 1 || h.obs.playbacks[0] == nil || h.obs.playbacks[0].Error() != "No valid URI found on tag" {
		t.Fatalf("recorded playbacks = %v, want one read failure", h.obs.playbacks)
	}
	if h.m.PendingURI() != "" {
		t.Fatalf("PendingURI = %q after feedback, want empty", h.m.PendingURI())
	}
}

func TestGoodTagPlays(t *testing.T) {
	h := newHarness(t, DefaultTiming(), validCreds)
	h.runUntil(t, Idle, 5*time.Second)

	h.tags.tap(tag.Result{Success: true, URI: "spotify:album:1"})
	h.runUntil(t, PlaybackSuccess, time.Second)
	if h.m.PendingURI() != "spotify:album:1" {
		t.Fatalf("PendingURI = %q, want spotify:album:1", h.m.PendingURI())
	}
	h.runUntil(t, Idle, 3*time.Second)
	h.settle(t)

	if h.client.plays != 1 || h.client.lastURI != "spotify:album:1" {
		t.Fatalf("plays=%d uri=%q, want 1 play of spotify:album:1", h.client.plays, h.client.lastURI)
	}
	if h.cues.Count(feedback.CueSuccess) != 1 || h.cues.Count(feedback.CueTagProcessing) != 1 {
		t.Fatalf("cues = %v, want one tag-processing and one success", h.cues.Cues())
	}
	if h.m.PendingURI() != "" {
		t.Fatalf("PendingURI = %q after feedback, want empty", h.m.PendingURI())
	}
}

func TestProcessingFailures(t *testing.T) {
	tests := []struct {
		name      string
		prepare   func(*fakeClient)
		wantPlays int
		wantErr   error
	}{
		{"no device", func(c *fakeClient) { c.device = false }, 0, errNoDevice},
		{"token refresh fails", func(c *fakeClient) { c.authed = false; c.fetchOK = false }, 0, errNoToken},
		{"play fails", func(c *fakeClient) { c.playOK = false }, 1, errPlay},
	}
	for _, tt := range tests {
		h := newHarness(t, DefaultTiming(), validCreds)
		h.runUntil(t, Idle, 5*time.Second)
		h.settle(t)
		tt.prepare(h.client)

		h.tags.tap(tag.Result{Success: true, URI: "spotify:album:1"})
		h.runUntil(t, PlaybackFailed, time.Second)
		h.settle(t)

		if h.client.plays != tt.wantPlays {
			t.Fatalf("%s: plays = %d, want %d", tt.name, h.client.plays, tt.wantPlays)
		}
		if len(h.obs.playbacks) != 1 || !errors.Is(h.obs.playbacks[0], tt.wantErr) {
			t.Fatalf("%s: recorded = %v, want %v", tt.name, h.obs.playbacks, tt.wantErr)
		}
	}
}

func TestDebounceDropsTapsInsideWindow(t *testing.T) {
	timing := DefaultTiming()
	timing.Feedback = 50 * time.Millisecond
	timing.Debounce = 500 * time.Millisecond
	h := newHarness(t, timing, validCreds)
	h.runUntil(t, Idle, 5*time.Second)

	h.tags.tap(tag.Result{Success: true, URI: "spotify:album:1"})
	h.runUntil(t, PlaybackSuccess, time.Second)
	h.runUntil(t, Idle, time.Second)

	// Back in IDLE well inside the debounce window.
	h.tags.tap(tag.Result{Success: true, URI: "spotify:album:2"})
	if err := h.runFor(t, 50*time.Millisecond); err != nil {
		t.Fatalf("runFor: %v", err)
	}
	if h.m.State() != Idle || h.client.plays != 1 {
		t.Fatalf("state=%s plays=%d, want tap dropped in IDLE", h.m.State(), h.client.plays)
	}
	if h.tags.pending {
		t.Fatalf("debounced tap was not drained")
	}

	if err := h.runFor(t, 500*time.Millisecond); err != nil {
		t.Fatalf("runFor: %v", err)
	}
	h.tags.tap(tag.Result{Success: true, URI: "spotify:album:3"})
	h.runUntil(t, PlaybackSuccess, time.Second)
	if h.client.plays != 2 || h.client.lastURI != "spotify:album:3" {
		t.Fatalf("plays=%d uri=%q, want second play of album:3", h.client.plays, h.client.lastURI)
	}
}

func TestMissingCredentialsDegradesToIdle(t *testing.T) {
	h := newHarness(t, DefaultTiming(), spotify.Credentials{ClientID: "id"})
	h.runUntil(t, Idle, 5*time.Second)
	h.settle(t)

	if h.m.APIReady() {
		t.Fatalf("APIReady() = true without credentials")
	}
	if h.client.fetches != 0 {
		t.Fatalf("token fetches = %d, want 0", h.client.fetches)
	}
	if h.cues.Count(feedback.CueAPIError) != 1 || h.cues.Count(feedback.CueIdle) != 0 {
		t.Fatalf("cues = %v, want api-error instead of idle", h.cues.Cues())
	}
}

func TestCredentialUpdateInIdleReinitializes(t *testing.T) {
	h := newHarness(t, DefaultTiming(), spotify.Credentials{})
	h.runUntil(t, Idle, 5*time.Second)
	h.settle(t)

	next := spotify.Credentials{ClientID: "new-id", ClientSecret: "new-secret", DeviceName: "Kitchen", RefreshToken: "new-refresh"}
	h.creds.creds = next
	h.creds.version = 2

	h.runUntil(t, APIInitializing, time.Second)
	h.runUntil(t, Idle, 5*time.Second)
	h.settle(t)

	if !h.m.APIReady() {
		t.Fatalf("APIReady() = false after valid credentials arrived")
	}
	last := h.client.applied[len(h.client.applied)-1]
	if last != next {
		t.Fatalf("applied credentials = %+v, want %+v", last, next)
	}
	if h.client.fetches != 1 || h.client.discovers != 1 {
		t.Fatalf("fetches=%d discovers=%d, want one each with new credentials", h.client.fetches, h.client.discovers)
	}
}

func TestClearedCredentialsInIdleShowAPIError(t *testing.T) {
	h := newHarness(t, DefaultTiming(), validCreds)
	h.runUntil(t, Idle, 5*time.Second)
	h.settle(t)
	fetches := h.client.fetches

	h.creds.creds = spotify.Credentials{}
	h.creds.version = 2
	h.settle(t)

	if h.m.State() != Idle || h.obs.visited(ErrorRecovery.String()) {
		t.Fatalf("state = %s, want IDLE", h.m.State())
	}
	if h.m.APIReady() {
		t.Fatalf("APIReady() = true after credentials were cleared")
	}
	if last := h.client.applied[len(h.client.applied)-1]; last != (spotify.Credentials{}) {
		t.Fatalf("applied credentials = %+v, want empty", last)
	}
	if h.client.IsAuthenticated() || h.client.IsDeviceAvailable() {
		t.Fatalf("session kept after credentials were cleared")
	}
	if h.client.fetches != fetches {
		t.Fatalf("token fetches = %d, want no new fetch", h.client.fetches)
	}
	if got := h.cues.Count(feedback.CueAPIError); got != 1 {
		t.Fatalf("api-error cue shown %d times, want 1", got)
	}
}

func TestAPIInitRetriesThenTimesOut(t *testing.T) {
	h := newHarness(t, DefaultTiming(), validCreds)
	h.client.fetchOK = false

	h.runUntil(t, APIInitializing, 5*time.Second)
	start := h.clock.Now()
	h.runUntil(t, Idle, 40*time.Second)
	h.settle(t)

	if elapsed := h.clock.Since(start); elapsed < 30*time.Second {
		t.Fatalf("left API_INITIALIZING after %v, want >= 30s", elapsed)
	}
	// One attempt every 2s across a 30s window.
	if h.client.fetches < 14 || h.client.fetches > 16 {
		t.Fatalf("token fetches = %d, want about 15", h.client.fetches)
	}
	if h.m.APIReady() || h.obs.visited(ErrorRecovery.String()) {
		t.Fatalf("ready=%v states=%v, want degraded IDLE", h.m.APIReady(), h.obs.states)
	}
	if h.cues.Count(feedback.CueAPIError) != 1 {
		t.Fatalf("api-error cue shown %d times, want 1", h.cues.Count(feedback.CueAPIError))
	}
}

func TestAPIInitOneUnitPerTick(t *testing.T) {
	h := newHarness(t, DefaultTiming(), validCreds)
	h.runUntil(t, APIInitializing, 5*time.Second)

	if err := h.tick(t); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.client.fetches != 1 || h.client.discovers != 0 {
		t.Fatalf("after first tick fetches=%d discovers=%d, want 1/0", h.client.fetches, h.client.discovers)
	}
	if err := h.tick(t); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.client.discovers != 1 || h.m.State() != Idle {
		t.Fatalf("after second tick discovers=%d state=%s, want 1/IDLE", h.client.discovers, h.m.State())
	}
}

func TestConnectTimeoutRestarts(t *testing.T) {
	timing := DefaultTiming()
	h := newHarness(t, timing, validCreds)
	h.net.up = false

	h.runUntil(t, WiFiConnecting, 2*time.Second)
	h.runUntil(t, ErrorRecovery, timing.ConnectTimeout+time.Second)

	// Probes are spaced by ProbeInterval, not issued every tick.
	if h.net.probes > int(timing.ConnectTimeout/timing.ProbeInterval)+2 {
		t.Fatalf("probes = %d, want about one per second", h.net.probes)
	}

	err := h.runFor(t, timing.RecoveryCooldown+time.Second)
	if !errors.Is(err, ErrRestart) {
		t.Fatalf("Tick error = %v, want ErrRestart", err)
	}
	if h.cues.Count(feedback.CueRestarting) != 1 {
		t.Fatalf("restarting cue shown %d times, want 1", h.cues.Count(feedback.CueRestarting))
	}
}

func TestConnectivityLossAndRecovery(t *testing.T) {
	timing := DefaultTiming()
	h := newHarness(t, timing, validCreds)
	h.runUntil(t, Idle, 5*time.Second)
	h.settle(t)

	h.net.up = false
	h.runUntil(t, WiFiReconnecting, timing.NetCheckInterval+time.Second)

	if err := h.runFor(t, 5*time.Second); err != nil {
		t.Fatalf("runFor: %v", err)
	}
	h.net.up = true
	h.runUntil(t, Idle, 2*time.Second)
	h.settle(t)

	if h.cues.Count(feedback.CueIdle) != 2 {
		t.Fatalf("idle cue shown %d times, want 2", h.cues.Count(feedback.CueIdle))
	}
}

func TestReconnectTimeoutRestarts(t *testing.T) {
	timing := DefaultTiming()
	h := newHarness(t, timing, validCreds)
	h.runUntil(t, Idle, 5*time.Second)

	h.net.up = false
	h.runUntil(t, WiFiReconnecting, timing.NetCheckInterval+time.Second)
	start := h.clock.Now()
	h.runUntil(t, ErrorRecovery, timing.ReconnectTimeout+time.Second)
	if elapsed := h.clock.Since(start); elapsed < timing.ReconnectTimeout {
		t.Fatalf("gave up after %v, want >= %v", elapsed, timing.ReconnectTimeout)
	}

	if err := h.runFor(t, timing.RecoveryCooldown+time.Second); !errors.Is(err, ErrRestart) {
		t.Fatalf("Tick error = %v, want ErrRestart", err)
	}
}

func TestTagSourceInitFailureOnlyWarns(t *testing.T) {
	h := newHarness(t, DefaultTiming(), validCreds)
	h.tags.beginErr = tag.ErrNoInput
	h.runUntil(t, Idle, 5*time.Second)
	if !h.m.APIReady() {
		t.Fatalf("APIReady() = false, want init to continue past tag source failure")
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		Boot:             "BOOT",
		APIInitializing:  "API_INITIALIZING",
		WiFiReconnecting: "WIFI_RECONNECTING",
		State(99):        "UNKNOWN",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
