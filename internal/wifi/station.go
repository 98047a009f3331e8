// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package wifi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/mdlayher/wifi"

	"github.com/wneessen/epaper-weather/internal/job"
	"github.com/wneessen/epaper-weather/internal/logger"
	"github.com/wneessen/epaper-weather/internal/netevent"
)

// DefaultPollInterval is how often the station checks association and addresses.
const DefaultPollInterval = time.Millisecond * 500

var (
	ErrNoInterface = errors.New("no wireless station interface found")
	ErrNotStarted  = errors.New("wireless station not started")
)

// wlanClient is the subset of the nl80211 client the station uses.
type wlanClient interface {
	Interfaces() ([]*wifi.Interface, error)
	Connect(ifi *wifi.Interface, ssid string) error
	ConnectWPAPSK(ifi *wifi.Interface, ssid, psk string) error
	Disconnect(ifi *wifi.Interface) error
	BSS(ifi *wifi.Interface) (*wifi.BSS, error)
	Close() error
}

// NL80211Station drives a Linux wireless interface through nl80211. The kernel reports
// association and DHCP progress asynchronously, so the station polls for both and
// publishes the changes as events.
type NL80211Station struct {
	logger       *logger.Logger
	ifaceName    string
	pollInterval time.Duration
	newClient    func() (wlanClient, error)
	addrs        func(name string) ([]netip.Addr, error)

	mu         sync.Mutex
	client     wlanClient
	iface      *wifi.Interface
	creds      Credentials
	bus        *netevent.Bus
	cancelPoll context.CancelFunc
	pollDone   chan struct{}
	associated bool
	addr       netip.Addr
}

// NewNL80211Station returns a station for the named interface. An empty name selects the
// first interface in station mode.
func NewNL80211Station(log *logger.Logger, ifaceName string, pollInterval time.Duration) *NL80211Station {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &NL80211Station{
		logger:       log,
		ifaceName:    ifaceName,
		pollInterval: pollInterval,
		newClient: func() (wlanClient, error) {
			return wifi.New()
		},
		addrs: interfaceAddrs,
	}
}

// Start opens the nl80211 client, selects the interface and starts polling. It publishes
// netevent.EventStationStarted once done.
func (s *NL80211Station) Start(ctx context.Context, creds Credentials, bus *netevent.Bus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}

	client, err := s.newClient()
	if err != nil {
		return fmt.Errorf("failed to create wifi client: %w", err)
	}
	iface, err := s.findInterface(client)
	if err != nil {
		if cerr := client.Close(); cerr != nil {
			s.logger.Error("failed to close wifi client", logger.Err(cerr))
		}
		return err
	}

	s.client = client
	s.iface = iface
	s.creds = creds
	s.bus = bus
	s.associated = false
	s.addr = netip.Addr{}

	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelPoll = cancel
	s.pollDone = make(chan struct{})
	poller := job.New(s.pollInterval, s.poll, job.WithImmediateRun())
	go func(done chan struct{}) {
		defer close(done)
		poller.Start(pollCtx)
	}(s.pollDone)

	s.logger.Debug("wireless station started", slog.String("interface", iface.Name))
	bus.Publish(netevent.Event{Kind: netevent.EventStationStarted, Interface: iface.Name})
	return nil
}

// Associate asks the kernel to join the configured access point. Open networks are
// joined when no passphrase is configured.
func (s *NL80211Station) Associate(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return ErrNotStarted
	}

	var err error
	if s.creds.Passphrase == "" {
		err = s.client.Connect(s.iface, s.creds.SSID)
	} else {
		err = s.client.ConnectWPAPSK(s.iface, s.creds.SSID, s.creds.Passphrase)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to %q: %w", s.creds.SSID, err)
	}
	return nil
}

// Stop ends polling, leaves the network and releases the nl80211 client. Calling Stop on
// a station that is not started is a no-op.
func (s *NL80211Station) Stop() error {
	s.mu.Lock()
	if s.client == nil {
		s.mu.Unlock()
		return nil
	}
	cancel, done := s.cancelPoll, s.pollDone
	s.mu.Unlock()

	// The poll task takes the lock, so wait for it outside of it
	cancel()
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if err := s.client.Disconnect(s.iface); err != nil {
		errs = append(errs, fmt.Errorf("failed to disconnect: %w", err))
	}
	if err := s.client.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close wifi client: %w", err))
	}
	s.client = nil
	s.iface = nil
	s.bus = nil
	s.associated = false
	s.addr = netip.Addr{}
	return errors.Join(errs...)
}

// poll compares the current association and address with the last known ones and
// publishes the difference.
func (s *NL80211Station) poll(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return
	}

	bss, err := s.client.BSS(s.iface)
	associated := err == nil && bss != nil && bss.Status == wifi.BSSStatusAssociated
	if !associated {
		if s.associated || s.addr.IsValid() {
			reason := "association lost"
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				reason = err.Error()
			}
			s.bus.Publish(netevent.Event{Kind: netevent.EventDisconnected, Interface: s.iface.Name, Reason: reason})
		}
		s.associated = false
		s.addr = netip.Addr{}
		return
	}
	s.associated = true
	if s.addr.IsValid() {
		return
	}

	addrs, err := s.addrs(s.iface.Name)
	if err != nil {
		s.logger.Debug("failed to read interface addresses", logger.Err(err))
		return
	}
	addr, ok := pickAddr(addrs)
	if !ok {
		return
	}
	s.addr = addr
	s.bus.Publish(netevent.Event{Kind: netevent.EventGotIP, Interface: s.iface.Name, Addr: addr})
}

func (s *NL80211Station) findInterface(client wlanClient) (*wifi.Interface, error) {
	ifaces, err := client.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Type != wifi.InterfaceTypeStation {
			continue
		}
		if s.ifaceName == "" || iface.Name == s.ifaceName {
			return iface, nil
		}
	}
	if s.ifaceName != "" {
		return nil, fmt.Errorf("%w: %s", ErrNoInterface, s.ifaceName)
	}
	return nil, ErrNoInterface
}

// pickAddr returns the first usable unicast address, preferring IPv4.
func pickAddr(addrs []netip.Addr) (netip.Addr, bool) {
	var fallback netip.Addr
	for _, addr := range addrs {
		if !addr.IsGlobalUnicast() {
			continue
		}
		if addr.Is4() {
			return addr, true
		}
		if !fallback.IsValid() {
			fallback = addr
		}
	}
	return fallback, fallback.IsValid()
}

func interfaceAddrs(name string) ([]netip.Addr, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, err
	}
	list := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if addr, ok := netip.AddrFromSlice(ipnet.IP); ok {
			list = append(list, addr.Unmap())
		}
	}
	return list, nil
}
