// Package tag turns NFC reader input into Spotify context URIs.
//
// Readers that emulate a keyboard (or a bridge writing to a FIFO) deliver one
// tag payload per line. A background goroutine scans those lines and raises
// a single atomic "detected" flag; the state machine drains the flag once per
// idle tick and then reads the pending payload.
package tag

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/five82/tagplayer/internal/logging"
)

// ErrNoURI is reported for payloads that contain no usable URI.
var ErrNoURI = errors.New("No valid URI found on tag")

// ErrNoInput is returned by Begin when no line source is configured.
var ErrNoInput = errors.New("no tag input configured")

// Result is the outcome of reading the pending tag.
type Result struct {
	Success      bool
	URI          string
	ErrorMessage string
}

// Reader is a TagSource backed by a line-oriented input and by Inject.
type Reader struct {
	input io.Reader

	detected atomic.Bool
	started  atomic.Bool

	mu      sync.Mutex
	payload string

	logger zerolog.Logger
}

// NewReader returns a Reader over input. A nil input only sees injected taps.
func NewReader(input io.Reader) *Reader {
	return &Reader{input: input, logger: logging.Component("tag")}
}

// OpenInput resolves the configured input name: "stdin", "" / "none" for no
// line input, or a path to a device or FIFO. The returned closer is nil when
// there is nothing to close.
func OpenInput(name string) (io.Reader, io.Closer, error) {
	if IsStdin(name) {
		return os.Stdin, nil, nil
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return nil, nil, nil
	}
	f, err := os.Open(strings.TrimSpace(name))
	if err != nil {
		return nil, nil, fmt.Errorf("open tag input: %w", err)
	}
	return f, f, nil
}

// IsStdin reports whether name selects standard input.
func IsStdin(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "stdin", "-":
		return true
	}
	return false
}

// Begin starts scanning the input. Calling it again is a no-op.
func (r *Reader) Begin() error {
	if r.input == nil {
		return ErrNoInput
	}
	if !r.started.CompareAndSwap(false, true) {
		return nil
	}
	go r.scan()
	return nil
}

func (r *Reader) scan() {
	scanner := bufio.NewScanner(r.input)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		r.Inject(line)
	}
	if err := scanner.Err(); err != nil {
		r.logger.Warn().Err(err).Msg("tag input closed")
		return
	}
	r.logger.Info().Msg("tag input reached end of stream")
}

// Inject records a tap carrying payload.
func (r *Reader) Inject(payload string) {
	r.mu.Lock()
	r.payload = payload
	r.mu.Unlock()
	r.detected.Store(true)
	r.logger.Debug().Int("bytes", len(payload)).Msg("tag detected")
}

// PollNewTag reports whether a tap arrived since the last poll and clears
// the flag.
func (r *Reader) PollNewTag() bool {
	return r.detected.Swap(false)
}

// ReadURI consumes the pending payload and normalizes it.
func (r *Reader) ReadURI() Result {
	r.mu.Lock()
	payload := r.payload
	r.payload = ""
	r.mu.Unlock()

	uri, err := Normalize(payload)
	if err != nil {
		return Result{ErrorMessage: err.Error()}
	}
	return Result{Success: true, URI: uri}
}
