// Package feedback carries named status cues from the state machine to
// whatever renders them.
package feedback

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/five82/tagplayer/internal/logging"
)

// Cue is a named status notification.
type Cue string

const (
	CueStartup         Cue = "startup"
	CueConnecting      Cue = "connecting"
	CueConnectionError Cue = "connection-error"
	CueAPIConnecting   Cue = "api-connecting"
	CueAPIError        Cue = "api-error"
	CueIdle            Cue = "idle"
	CueTagReading      Cue = "tag-reading"
	CueTagProcessing   Cue = "tag-processing"
	CueSuccess         Cue = "success"
	CueFailure         Cue = "failure"
	CueDeviceSelected  Cue = "device-selected"
	CueRestarting      Cue = "restarting"
)

// Sink renders cues. Show must not block the caller.
type Sink interface {
	Show(Cue)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Cue)

// Show calls f(c).
func (f SinkFunc) Show(c Cue) { f(c) }

// LogSink writes every cue to the log.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink returns a Sink that logs cues under the "feedback" component.
func NewLogSink() *LogSink {
	return &LogSink{logger: logging.Component("feedback")}
}

// Show logs the cue. Error cues log at warn.
func (s *LogSink) Show(c Cue) {
	ev := s.logger.Info()
	switch c {
	case CueConnectionError, CueAPIError, CueFailure, CueRestarting:
		ev = s.logger.Warn()
	}
	ev.Str("cue", string(c)).Msg("feedback")
}

// Multi fans cues out to several sinks. Sinks can be added after
// construction, which lets the TUI attach once it starts.
type Multi struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewMulti returns a fan-out over sinks.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Add attaches another sink.
func (m *Multi) Add(s Sink) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

// Show forwards c to every sink.
func (m *Multi) Show(c Cue) {
	m.mu.RLock()
	sinks := append([]Sink(nil), m.sinks...)
	m.mu.RUnlock()
	for _, s := range sinks {
		s.Show(c)
	}
}

// Recorder keeps every cue it is shown. Useful in tests.
type Recorder struct {
	mu   sync.Mutex
	cues []Cue
}

// Show records c.
func (r *Recorder) Show(c Cue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cues = append(r.cues, c)
}

// Cues returns a copy of the recorded cues.
func (r *Recorder) Cues() []Cue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Cue(nil), r.cues...)
}

// Count returns how many times c was shown.
func (r *Recorder) Count(c Cue) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.cues {
		if got == c {
			n++
		}
	}
	return n
}
