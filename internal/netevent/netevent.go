// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package netevent delivers wireless station events from the network stack to the
// parts of a wake cycle that wait for them.
package netevent

import (
	"errors"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/wneessen/epaper-weather/internal/logger"
)

// Kind identifies the type of an Event.
type Kind int

const (
	// EventStationStarted is published once the station interface is up and configured.
	EventStationStarted Kind = iota + 1
	// EventDisconnected is published when the station lost or failed its association.
	EventDisconnected
	// EventGotIP is published when the station acquired an address.
	EventGotIP
)

var ErrLoggerRequired = errors.New("logger is required")

func (k Kind) String() string {
	switch k {
	case EventStationStarted:
		return "station-started"
	case EventDisconnected:
		return "disconnected"
	case EventGotIP:
		return "got-ip"
	default:
		return "unknown"
	}
}

// Event is a single notification from the wireless stack.
type Event struct {
	Kind      Kind
	Interface string
	Addr      netip.Addr
	Reason    string
	At        time.Time
}

// Bus fans out published events to all current subscribers.
type Bus struct {
	mu          sync.RWMutex
	logger      *logger.Logger
	subscribers map[chan Event]struct{}
}

// New initializes and returns a new event Bus.
func New(log *logger.Logger) (*Bus, error) {
	if log == nil {
		return nil, ErrLoggerRequired
	}
	return &Bus{
		logger:      log,
		subscribers: make(map[chan Event]struct{}),
	}, nil
}

// Subscribe registers a listener with the given buffer size, returning an event channel and
// an unsubscribe function. The unsubscribe function closes the channel and may be called
// more than once.
func (b *Bus) Subscribe(size int) (<-chan Event, func()) {
	eventChan := make(chan Event, size)
	b.mu.Lock()
	b.subscribers[eventChan] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, eventChan)
			b.mu.Unlock()
			close(eventChan)
		})
	}

	return eventChan, unsub
}

// Publish delivers e to every subscriber without blocking. Subscribers with a full buffer
// miss the event.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			b.logger.Warn("dropping network event for slow subscriber", slog.String("event", e.Kind.String()))
		}
	}
}

// Subscribers returns the number of registered listeners.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
