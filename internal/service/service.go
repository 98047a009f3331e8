// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package service runs the wake-fetch-render-sleep cycle of the weather display.
package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/vorlif/spreak"

	"github.com/wneessen/epaper-weather/internal/config"
	"github.com/wneessen/epaper-weather/internal/display"
	"github.com/wneessen/epaper-weather/internal/http"
	"github.com/wneessen/epaper-weather/internal/i18n"
	"github.com/wneessen/epaper-weather/internal/logger"
	"github.com/wneessen/epaper-weather/internal/platform"
	"github.com/wneessen/epaper-weather/internal/power"
	"github.com/wneessen/epaper-weather/internal/wifi"
	"github.com/wneessen/epaper-weather/internal/wttr"
)

var (
	ErrPlatformInit    = errors.New("platform initialization failed")
	ErrSleepFailed     = errors.New("failed to enter deep sleep")
	ErrMissingHardware = errors.New("hardware driver missing")
)

// Hardware bundles the platform drivers a wake cycle operates on.
type Hardware struct {
	Panel   display.Panel
	Station wifi.Station
	Sleeper power.Sleeper
}

// Fetcher retrieves the weather report for a location. A nil report without error
// means that no data is available.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (*wttr.Report, error)
}

// Renderer draws either a report or the no-data placeholder.
type Renderer interface {
	RenderReport(panel display.Panel, fb *image.Gray, text string, temperature int) error
	RenderNoData(panel display.Panel, fb *image.Gray, temperature int) error
}

type Service struct {
	config   *config.Config
	logger   *logger.Logger
	hardware Hardware
	clock    clockwork.Clock
	signals  signalSource

	fetcher  Fetcher
	renderer Renderer
	initFn   func(*logger.Logger, string) (uint64, error)

	sleepLock   sync.Mutex
	cancelSleep context.CancelFunc
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	httpClient *http.Client
}

// WithHTTPClient makes the weather fetcher use client instead of a client built from
// the configured fetch timeout and host-name verification.
func WithHTTPClient(client *http.Client) Option {
	return func(o *serviceOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// New returns a Service for the given configuration and hardware.
func New(conf *config.Config, log *logger.Logger, t *spreak.Localizer, hw Hardware, opts ...Option) (*Service, error) {
	if hw.Panel == nil || hw.Station == nil || hw.Sleeper == nil {
		return nil, ErrMissingHardware
	}

	options := &serviceOptions{}
	for _, opt := range opts {
		opt(options)
	}
	httpClient := options.httpClient
	if httpClient == nil {
		httpClient = http.New(log, http.WithTimeout(conf.Intervals.FetchTimeout),
			http.WithHostnameVerification(conf.Weather.VerifyHostname))
	}
	fetcher := wttr.New(wttr.NewHTTPOpener(httpClient), log,
		wttr.WithHost(conf.Weather.Host),
		wttr.WithQuery(conf.Weather.Query),
		wttr.WithMaxBodySize(conf.Weather.MaxBodySize),
		wttr.WithMaxLocationLen(conf.Weather.MaxLocationLen),
	)

	var footerOpts []display.FooterOption
	if conf.HasCoordinates() {
		footerOpts = append(footerOpts, display.WithCoordinates(conf.Coordinates.Latitude, conf.Coordinates.Longitude))
	}
	footer := display.NewFooter(t, i18n.Tag(conf.Locale), conf.Intervals.Wakeup, footerOpts...)

	return &Service{
		config:   conf,
		logger:   log,
		hardware: hw,
		clock:    clockwork.NewRealClock(),
		signals:  stdLibSignalSource{},
		fetcher:  fetcher,
		renderer: display.NewRenderer(log, t, display.WithFooter(footer)),
		initFn:   platform.Init,
	}, nil
}

// Serve runs wake cycles until ctx is cancelled. With power.oneshot set it returns after
// the first cycle. Platform initialization failures end the loop.
func (s *Service) Serve(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	s.signals.Notify(sigChan, syscall.SIGUSR1)
	defer s.signals.Stop(sigChan)
	go s.handleRefreshSignal(ctx, sigChan)

	for {
		err := s.Run(ctx)
		if errors.Is(err, ErrPlatformInit) {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		if s.config.Power.Oneshot {
			return err
		}
		if err == nil {
			continue
		}

		s.logger.Error("wake cycle failed", logger.Err(err))
		if errors.Is(err, ErrSleepFailed) {
			// Without a working sleep the loop would spin, idle for one interval instead
			select {
			case <-ctx.Done():
				return nil
			case <-s.clock.After(s.config.Intervals.Wakeup):
			}
		}
	}
}

// Run executes a single wake cycle. Only a platform initialization failure aborts the
// cycle; everything after that is logged and the cycle always ends with exactly one
// attempt to enter deep sleep.
func (s *Service) Run(ctx context.Context) error {
	cycle, err := s.newCycle()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPlatformInit, err)
	}
	defer cycle.release()
	log := cycle.Logger
	log.Info("wake cycle started")

	s.prepareDisplay(cycle)

	manager := wifi.NewManager(s.hardware.Station, cycle.Events, log, s.config.Intervals.ConnectTimeout)
	cycle.Report = s.fetchReport(ctx, cycle, manager)
	s.render(cycle)
	cycle.Report.Release()

	s.shutdownDisplay(cycle)
	if err = manager.Disconnect(); err != nil {
		log.Error("failed to stop wireless", logger.Err(err))
	}

	return s.sleep(ctx, cycle)
}

// prepareDisplay powers the panel, clears it and hands the framebuffer to the cycle.
func (s *Service) prepareDisplay(cycle *WakeCycleContext) {
	if err := cycle.Panel.PowerOn(); err != nil {
		cycle.Logger.Error("failed to power on display", logger.Err(err))
		return
	}
	if err := cycle.Panel.FullClear(cycle.Temperature); err != nil {
		cycle.Logger.Error("failed to clear display", logger.Err(err))
	}
	cycle.Framebuffer = cycle.Panel.Framebuffer()
}

// fetchReport joins the network and fetches the report. Any failure degrades to no data.
func (s *Service) fetchReport(ctx context.Context, cycle *WakeCycleContext, manager *wifi.Manager) *wttr.Report {
	creds := wifi.Credentials{SSID: s.config.WiFi.SSID, Passphrase: s.config.WiFi.Passphrase}
	if err := manager.Connect(ctx, creds); err != nil {
		cycle.Logger.Error("failed to connect to wireless network", logger.Err(err))
		return nil
	}

	report, err := s.fetcher.Fetch(ctx, s.config.Location)
	if err != nil {
		cycle.Logger.Error("failed to fetch weather report", logger.Err(err),
			slog.String("location", s.config.Location))
		return nil
	}
	if report == nil {
		cycle.Logger.Warn("no weather data available", slog.String("location", s.config.Location))
		return nil
	}
	cycle.Logger.Info("weather report fetched", slog.Int("length", report.Len()))
	return report
}

func (s *Service) render(cycle *WakeCycleContext) {
	if cycle.Framebuffer == nil {
		cycle.Logger.Error("skipping render", logger.Err(display.ErrNoFramebuffer))
		return
	}

	var err error
	switch {
	case cycle.Report != nil:
		err = s.renderer.RenderReport(cycle.Panel, cycle.Framebuffer, cycle.Report.String(), cycle.Temperature)
	default:
		err = s.renderer.RenderNoData(cycle.Panel, cycle.Framebuffer, cycle.Temperature)
	}
	if err != nil {
		cycle.Logger.Error("failed to render weather report", logger.Err(err))
	}
}

// shutdownDisplay powers the panel off. The framebuffer is invalid afterwards.
func (s *Service) shutdownDisplay(cycle *WakeCycleContext) {
	cycle.Framebuffer = nil
	if err := cycle.Panel.PowerOff(); err != nil {
		cycle.Logger.Error("failed to power off display", logger.Err(err))
	}
}

// sleep arms the wake timer and enters deep sleep. A refresh signal ends the sleep early.
func (s *Service) sleep(ctx context.Context, cycle *WakeCycleContext) error {
	sleeper := s.hardware.Sleeper
	if err := sleeper.ScheduleTimerWake(s.config.Intervals.Wakeup); err != nil {
		cycle.Logger.Error("failed to schedule timer wake-up", logger.Err(err))
	}

	ctxSleep, cancel := context.WithCancel(ctx)
	defer cancel()
	s.sleepLock.Lock()
	s.cancelSleep = cancel
	s.sleepLock.Unlock()
	defer func() {
		s.sleepLock.Lock()
		s.cancelSleep = nil
		s.sleepLock.Unlock()
	}()

	err := sleeper.EnterDeepSleep(ctxSleep)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled) && ctx.Err() == nil:
		cycle.Logger.Info("woken up by refresh signal")
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fmt.Errorf("%w: %w", ErrSleepFailed, err)
	}
}

// wakeNow ends a sleep that is in progress.
func (s *Service) wakeNow() {
	s.sleepLock.Lock()
	defer s.sleepLock.Unlock()
	if s.cancelSleep != nil {
		s.cancelSleep()
	}
}
