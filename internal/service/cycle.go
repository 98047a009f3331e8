// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"image"

	"github.com/wneessen/epaper-weather/internal/display"
	"github.com/wneessen/epaper-weather/internal/logger"
	"github.com/wneessen/epaper-weather/internal/netevent"
	"github.com/wneessen/epaper-weather/internal/wttr"
)

// WakeCycleContext holds the resources of one wake cycle. It is created when the cycle
// starts and everything it holds is released before the device goes to sleep.
type WakeCycleContext struct {
	Wake        uint64
	Logger      *logger.Logger
	Events      *netevent.Bus
	Panel       display.Panel
	Framebuffer *image.Gray
	Temperature int
	Report      *wttr.Report
}

// newCycle initializes the platform services and creates the context for the next cycle.
func (s *Service) newCycle() (*WakeCycleContext, error) {
	wake, err := s.initFn(s.logger, s.config.Platform.StateDir)
	if err != nil {
		return nil, err
	}
	log := s.logger.WithWake(wake)
	bus, err := netevent.New(log)
	if err != nil {
		return nil, err
	}
	return &WakeCycleContext{
		Wake:        wake,
		Logger:      log,
		Events:      bus,
		Panel:       s.hardware.Panel,
		Temperature: s.config.Display.Temperature,
	}, nil
}

// release drops the report and the framebuffer reference. It is safe to call more than
// once.
func (c *WakeCycleContext) release() {
	c.Report.Release()
	c.Report = nil
	c.Framebuffer = nil
}
