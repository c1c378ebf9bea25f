package ui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/thejerf/suture/v4"

	"github.com/five82/tagplayer/internal/feedback"
)

const sinkBuffer = 16

// Sink forwards cues to a running status panel. Show never blocks; when the
// panel falls behind the oldest queued cue is dropped.
type Sink struct {
	ch chan feedback.Cue
}

// NewSink returns an empty Sink.
func NewSink() *Sink {
	return &Sink{ch: make(chan feedback.Cue, sinkBuffer)}
}

// Show queues c for the panel.
func (s *Sink) Show(c feedback.Cue) {
	for {
		select {
		case s.ch <- c:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Service runs the status panel under a supervisor.
type Service struct {
	opts        Options
	sink        *Sink
	programOpts []tea.ProgramOption
}

// NewService builds the panel service. Extra program options are appended
// after the defaults.
func NewService(opts Options, sink *Sink, programOpts ...tea.ProgramOption) *Service {
	return &Service{opts: opts, sink: sink, programOpts: programOpts}
}

// Serve implements suture.Service. Quitting the panel does not restart it.
func (s *Service) Serve(ctx context.Context) error {
	p := tea.NewProgram(New(s.opts), s.programOptions(ctx)...)

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case c := <-s.sink.ch:
				p.Send(cueMsg(c))
			}
		}
	}()

	_, err := p.Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("status panel: %w", err)
	}
	return suture.ErrDoNotRestart
}

func (s *Service) programOptions(ctx context.Context) []tea.ProgramOption {
	options := []tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}
	if s.opts.NoKeys {
		options = append(options, tea.WithInput(nil))
	}
	return append(options, s.programOpts...)
}

// String implements fmt.Stringer for suture logging.
func (s *Service) String() string {
	return "status-panel"
}
