// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package wifi joins the wireless network for a wake cycle.
package wifi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/wneessen/epaper-weather/internal/logger"
	"github.com/wneessen/epaper-weather/internal/netevent"
)

const (
	// DefaultConnectTimeout bounds Manager.Connect if no timeout was configured.
	DefaultConnectTimeout = time.Second * 30

	eventBufferSize = 8
	maskedSecret    = "******"
)

var (
	ErrTimeout           = errors.New("timed out waiting for network connection")
	ErrInvalidState      = errors.New("connect not allowed in current state")
	ErrSubscriptionEnded = errors.New("network event subscription ended")
)

// State is the association state of the station within one wake cycle.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// canTransition reports whether the state machine may move from s to next. Leaving
// StateConnected or StateFailed other than through a disconnect event requires
// Manager.Disconnect.
func (s State) canTransition(next State) bool {
	switch s {
	case StateIdle:
		return next == StateConnecting
	case StateConnecting:
		return next == StateConnecting || next == StateConnected || next == StateFailed
	case StateConnected:
		return next == StateConnecting
	default:
		return false
	}
}

// Credentials identify the access point to join.
type Credentials struct {
	SSID       string
	Passphrase string
}

// LogValue keeps the passphrase out of log output.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(slog.String("ssid", c.SSID), slog.String("passphrase", maskedSecret))
}

// Station is the wireless stack of the platform. Start brings the interface up and
// publishes netevent.EventStationStarted on bus once it is ready; Associate starts
// joining the access point. Progress is reported as netevent.EventGotIP or
// netevent.EventDisconnected events. The stack retries associations on its own.
type Station interface {
	Start(ctx context.Context, creds Credentials, bus *netevent.Bus) error
	Associate(ctx context.Context) error
	Stop() error
}

// Manager turns the event-driven station into a blocking, bounded connect call.
type Manager struct {
	station Station
	bus     *netevent.Bus
	logger  *logger.Logger
	timeout time.Duration

	mu    sync.RWMutex
	state State
	addr  netip.Addr
}

// NewManager returns a Manager for station that listens on bus. A non-positive timeout
// selects DefaultConnectTimeout.
func NewManager(station Station, bus *netevent.Bus, log *logger.Logger, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	return &Manager{
		station: station,
		bus:     bus,
		logger:  log,
		timeout: timeout,
		state:   StateIdle,
	}
}

// Connect starts the station and blocks until it acquired an address, the timeout expired
// or ctx was cancelled. On expiry it returns an error wrapping ErrTimeout. The event
// subscription is removed before Connect returns.
func (m *Manager) Connect(ctx context.Context, creds Credentials) error {
	switch state := m.State(); state {
	case StateConnected:
		return nil
	case StateIdle:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidState, state)
	}

	events, unsub := m.bus.Subscribe(eventBufferSize)
	defer unsub()

	ctxConn, cancelConn := context.WithTimeout(ctx, m.timeout)
	defer cancelConn()

	m.transition(StateConnecting)
	m.logger.Info("starting wireless station", slog.Any("credentials", creds))
	if err := m.station.Start(ctxConn, creds, m.bus); err != nil {
		m.transition(StateFailed)
		return fmt.Errorf("failed to start wireless station: %w", err)
	}

	m.logger.Info("waiting for wireless connection", slog.Duration("timeout", m.timeout))
	for {
		select {
		case <-ctxConn.Done():
			m.transition(StateFailed)
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("%w: no address after %s", ErrTimeout, m.timeout)
		case event, ok := <-events:
			if !ok {
				m.transition(StateFailed)
				return ErrSubscriptionEnded
			}
			if m.handleEvent(ctxConn, event) {
				return nil
			}
		}
	}
}

// handleEvent applies a single event and returns true once the station is connected.
func (m *Manager) handleEvent(ctx context.Context, event netevent.Event) bool {
	switch event.Kind {
	case netevent.EventStationStarted:
		if err := m.station.Associate(ctx); err != nil {
			m.logger.Error("failed to associate with access point", logger.Err(err))
		}
	case netevent.EventDisconnected:
		m.mu.Lock()
		m.addr = netip.Addr{}
		m.mu.Unlock()
		m.transition(StateConnecting)
		m.logger.Info("connect to the access point failed", slog.String("reason", event.Reason))
	case netevent.EventGotIP:
		m.mu.Lock()
		m.addr = event.Addr
		m.mu.Unlock()
		m.transition(StateConnected)
		m.logger.Info("got ip", slog.String("interface", event.Interface),
			slog.String("addr", event.Addr.String()))
		return true
	default:
		m.logger.Debug("event not supported", slog.String("event", event.Kind.String()))
	}
	return false
}

// Disconnect stops the station and resets the manager to StateIdle.
func (m *Manager) Disconnect() error {
	err := m.station.Stop()
	m.mu.Lock()
	m.state = StateIdle
	m.addr = netip.Addr{}
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to stop wireless station: %w", err)
	}
	return nil
}

// State returns the current association state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Addr returns the acquired address while connected.
func (m *Manager) Addr() netip.Addr {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.addr
}

func (m *Manager) transition(next State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.canTransition(next) {
		m.logger.Warn("ignoring invalid wireless state transition", slog.String("from", m.state.String()),
			slog.String("to", next.String()))
		return
	}
	m.state = next
}
