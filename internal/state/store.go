package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/tagplayer/internal/spotify"
)

// Snapshot is the latest view of the player for observers.
type Snapshot struct {
	State      string
	StateSince time.Time
	LastCue    string

	Authenticated   bool
	DeviceAvailable bool
	DeviceID        string
	DeviceName      string
	Devices         []spotify.Device

	LastURI             string
	LastError           error
	LastPlayback        time.Time
	Playbacks           int
	ConsecutiveFailures int // playback failures since the last success

	LastUpdated time.Time
}

// IsFailing reports whether playback has failed several times in a row.
func (s Snapshot) IsFailing() bool {
	return s.ConsecutiveFailures >= 2
}

// Session is the part of the API client state observers care about.
type Session struct {
	Authenticated   bool
	DeviceAvailable bool
	DeviceID        string
	DeviceName      string
}

// Store coordinates concurrent updates to the snapshot. The host loop writes;
// the web API and TUI read.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// SetState records a state change.
func (s *Store) SetState(name string, since time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.State = name
	s.snapshot.StateSince = since
	s.snapshot.LastUpdated = time.Now()
}

// SetCue records the most recent feedback cue.
func (s *Store) SetCue(cue string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.LastCue = cue
}

// SetSession replaces the session fields.
func (s *Store) SetSession(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Authenticated = sess.Authenticated
	s.snapshot.DeviceAvailable = sess.DeviceAvailable
	s.snapshot.DeviceID = sess.DeviceID
	s.snapshot.DeviceName = sess.DeviceName
	s.snapshot.LastUpdated = time.Now()
}

// SetDevices stores the latest device listing.
func (s *Store) SetDevices(devices []spotify.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Devices = cloneDevices(devices)
	s.snapshot.LastUpdated = time.Now()
}

// RecordPlayback records the result of a tap. When err is non-nil the
// failure streak grows; a success resets it.
func (s *Store) RecordPlayback(uri string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.snapshot.LastURI = uri
	s.snapshot.LastPlayback = now
	s.snapshot.LastUpdated = now
	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.ConsecutiveFailures++
		return
	}
	s.snapshot.LastError = nil
	s.snapshot.Playbacks++
	s.snapshot.ConsecutiveFailures = 0
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Devices = cloneDevices(s.snapshot.Devices)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneDevices(devices []spotify.Device) []spotify.Device {
	if len(devices) == 0 {
		return nil
	}
	dup := make([]spotify.Device, len(devices))
	copy(dup, devices)
	return dup
}
