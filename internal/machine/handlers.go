package machine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/five82/tagplayer/internal/feedback"
	"github.com/five82/tagplayer/internal/metrics"
)

var (
	errNoDevice = errors.New("no playback device resolved")
	errNoToken  = errors.New("access token refresh failed")
	errPlay     = errors.New("play request failed")
)

// enter runs the entry action of the active state.
func (m *Machine) enter(now time.Time) {
	switch m.state {
	case Boot:
		m.show(feedback.CueStartup)
	case WiFiConnecting:
		m.show(feedback.CueConnecting)
		m.deadline = m.entered.Add(m.timing.ConnectTimeout)
		m.nextProbe = now
	case APIInitializing:
		m.show(feedback.CueAPIConnecting)
		m.syncCredentials()
		m.apiReady = false
		m.deadline = m.entered.Add(m.timing.APIInitTimeout)
		m.resumeAt = time.Time{}
	case Idle:
		if m.apiReady {
			m.show(feedback.CueIdle)
		} else {
			m.show(feedback.CueAPIError)
		}
		m.tapID = ""
		m.nextNetCheck = m.entered.Add(m.timing.NetCheckInterval)
	case TagDetected:
		m.tapID = uuid.NewString()
		m.show(feedback.CueTagReading)
	case TagProcessing:
		m.show(feedback.CueTagProcessing)
	case PlaybackSuccess:
		m.show(feedback.CueSuccess)
		m.obs.RecordPlayback(m.pendingURI, nil)
	case PlaybackFailed:
		m.show(feedback.CueFailure)
		m.obs.RecordPlayback(m.pendingURI, m.failure)
	case ErrorRecovery:
		m.show(feedback.CueRestarting)
		m.logger.Error().Dur("cooldown", m.timing.RecoveryCooldown).Msg("unrecoverable, restarting after cooldown")
	case WiFiReconnecting:
		m.show(feedback.CueConnectionError)
		m.deadline = m.entered.Add(m.timing.ReconnectTimeout)
		m.nextProbe = now
	}
}

// step runs the per-tick action of the active state.
func (m *Machine) step(ctx context.Context, now time.Time) error {
	switch m.state {
	case Boot:
		if now.Sub(m.entered) >= m.timing.BootDelay {
			m.transition(WiFiConnecting)
		}
	case WiFiConnecting:
		m.stepConnecting(ctx, now, WiFiConnected)
	case WiFiConnected:
		if err := m.tags.Begin(); err != nil {
			m.logger.Warn().Err(err).Msg("tag source init failed, continuing")
		}
		m.transition(APIInitializing)
	case APIInitializing:
		m.stepAPIInit(ctx, now)
	case Idle:
		m.stepIdle(ctx, now)
	case TagDetected:
		m.transition(TagReading)
	case TagReading:
		m.stepReading()
	case TagProcessing:
		m.stepProcessing(ctx)
	case PlaybackSuccess, PlaybackFailed:
		if now.Sub(m.entered) >= m.timing.Feedback {
			m.pendingURI = ""
			m.failure = nil
			m.transition(Idle)
		}
	case ErrorRecovery:
		if now.Sub(m.entered) >= m.timing.RecoveryCooldown {
			m.logger.Warn().Msg("restarting")
			return ErrRestart
		}
	case WiFiReconnecting:
		m.stepConnecting(ctx, now, Idle)
	}
	return nil
}

// stepConnecting probes the network every ProbeInterval until it answers or
// the state deadline passes.
func (m *Machine) stepConnecting(ctx context.Context, now time.Time, next State) {
	if !now.Before(m.nextProbe) {
		m.nextProbe = now.Add(m.timing.ProbeInterval)
		if m.network.Connected(ctx) {
			m.transition(next)
			return
		}
	}
	if !now.Before(m.deadline) {
		m.logger.Error().Str("state", m.state.String()).Msg("network did not come up in time")
		m.show(feedback.CueConnectionError)
		m.transition(ErrorRecovery)
	}
}

// stepAPIInit does one unit of work per tick: a token fetch while
// unauthenticated, then device discovery. A failed unit is retried after
// APIInitRetry.
func (m *Machine) stepAPIInit(ctx context.Context, now time.Time) {
	if !m.client.HasCredentials() {
		m.logger.Warn().Msg("no credentials configured, playback disabled")
		m.transition(Idle)
		return
	}
	if !now.Before(m.deadline) {
		m.logger.Warn().Dur("timeout", m.timing.APIInitTimeout).Msg("api init timed out, playback disabled")
		m.transition(Idle)
		return
	}
	if now.Before(m.resumeAt) {
		return
	}

	if !m.client.IsAuthenticated() {
		if !m.client.FetchAccessToken(ctx) {
			m.resumeAt = m.clock.Now().Add(m.timing.APIInitRetry)
		}
		return
	}
	if !m.client.IsDeviceAvailable() && !m.client.DiscoverDevice(ctx) {
		m.resumeAt = m.clock.Now().Add(m.timing.APIInitRetry)
		return
	}
	m.apiReady = true
	m.transition(Idle)
}

func (m *Machine) stepIdle(ctx context.Context, now time.Time) {
	if m.credentialsChanged() {
		m.syncCredentials()
		m.apiReady = false
		if m.client.HasCredentials() {
			m.transition(APIInitializing)
			return
		}
		m.show(feedback.CueAPIError)
	}

	if !now.Before(m.nextNetCheck) {
		m.nextNetCheck = now.Add(m.timing.NetCheckInterval)
		if !m.network.Connected(ctx) {
			m.logger.Warn().Msg("connectivity lost")
			m.transition(WiFiReconnecting)
			return
		}
	}

	if !m.tags.PollNewTag() {
		return
	}
	if !m.debounce.AllowN(now, 1) {
		metrics.RecordTap(false)
		m.logger.Debug().Msg("tap ignored inside debounce window")
		return
	}
	metrics.RecordTap(true)
	m.transition(TagDetected)
}

func (m *Machine) stepReading() {
	res := m.tags.ReadURI()
	if !res.Success {
		m.failure = errors.New(res.ErrorMessage)
		m.logger.Warn().Str("tap", m.tapID).Str("error", res.ErrorMessage).Msg("tag read failed")
		m.transition(PlaybackFailed)
		return
	}
	m.pendingURI = res.URI
	m.logger.Info().Str("tap", m.tapID).Str("uri", res.URI).Msg("tag read")
	m.transition(TagProcessing)
}

func (m *Machine) stepProcessing(ctx context.Context) {
	switch {
	case !m.client.IsDeviceAvailable():
		m.failure = errNoDevice
	case !m.client.IsAuthenticated() && !m.client.FetchAccessToken(ctx):
		m.failure = errNoToken
	case !m.client.PlayURI(ctx, m.pendingURI):
		m.failure = errPlay
	default:
		m.transition(PlaybackSuccess)
		return
	}
	m.logger.Warn().Str("tap", m.tapID).Err(m.failure).Msg("playback failed")
	m.transition(PlaybackFailed)
}
