// Package netcheck answers whether the host can reach the API.
package netcheck

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/tagplayer/internal/logging"
)

const defaultDialTimeout = 3 * time.Second

// Monitor probes connectivity by opening a TCP connection to an address.
type Monitor struct {
	address string
	timeout time.Duration
	dialer  func(ctx context.Context, network, address string) (net.Conn, error)
	logger  zerolog.Logger

	mu   sync.Mutex
	last bool
	seen bool
}

// New returns a Monitor probing address ("host:port").
func New(address string, timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	d := &net.Dialer{}
	return &Monitor{
		address: address,
		timeout: timeout,
		dialer:  d.DialContext,
		logger:  logging.Component("netcheck"),
	}
}

// Connected dials the probe address and reports whether it answered.
// Changes in reachability are logged once.
func (m *Monitor) Connected(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	conn, err := m.dialer(ctx, "tcp", m.address)
	ok := err == nil
	if ok {
		_ = conn.Close()
	}

	m.mu.Lock()
	changed := !m.seen || m.last != ok
	m.last, m.seen = ok, true
	m.mu.Unlock()

	if changed {
		if ok {
			m.logger.Info().Str("address", m.address).Msg("network reachable")
		} else {
			m.logger.Warn().Err(err).Str("address", m.address).Msg("network unreachable")
		}
	}
	return ok
}

// Address returns the probed "host:port".
func (m *Monitor) Address() string { return m.address }

// Last returns the result of the most recent probe.
func (m *Monitor) Last() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
