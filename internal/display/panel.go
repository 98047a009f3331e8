// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package display draws weather reports onto the e-paper panel.
package display

import (
	"errors"
	"image"
)

const (
	// Width and Height of the 4.7" panel in pixels.
	Width  = 960
	Height = 540

	// DefaultTemperature is the ambient temperature in °C used to pick the panel waveform.
	DefaultTemperature = 25
)

var (
	ErrPanelOff      = errors.New("display panel is powered off")
	ErrNoFramebuffer = errors.New("no framebuffer")
)

// Mode selects the waveform used to commit the framebuffer to the panel.
type Mode int

const (
	// ModeDU is a fast, monochrome update.
	ModeDU Mode = iota + 1
	// ModeGL16 is a 16 gray level update that keeps the white background untouched.
	ModeGL16
	// ModeGC16 is a full 16 gray level update with flashing. It gives the cleanest result.
	ModeGC16
)

func (m Mode) String() string {
	switch m {
	case ModeDU:
		return "DU"
	case ModeGL16:
		return "GL16"
	case ModeGC16:
		return "GC16"
	default:
		return "unknown"
	}
}

// Panel is the e-paper display driver. The framebuffer is owned by the panel and stays
// valid until the panel is powered off.
type Panel interface {
	PowerOn() error
	PowerOff() error
	FullClear(temperature int) error
	Framebuffer() *image.Gray
	Update(mode Mode, temperature int) error
}
