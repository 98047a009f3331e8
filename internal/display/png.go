// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package display

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/wneessen/epaper-weather/internal/logger"
)

// PNGPanel is a Panel that writes every committed frame to a PNG file. It stands in for
// the e-paper driver on development hosts.
type PNGPanel struct {
	logger *logger.Logger
	path   string
	width  int
	height int

	mu      sync.Mutex
	fb      *image.Gray
	powered bool
	updates int
}

// NewPNGPanel returns a powered-off panel of the given size that writes to path.
func NewPNGPanel(log *logger.Logger, path string, width, height int) *PNGPanel {
	return &PNGPanel{
		logger: log,
		path:   path,
		width:  width,
		height: height,
	}
}

// PowerOn allocates the framebuffer.
func (p *PNGPanel) PowerOn() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.powered {
		return nil
	}
	p.fb = image.NewGray(image.Rect(0, 0, p.width, p.height))
	p.powered = true
	return nil
}

// PowerOff releases the framebuffer.
func (p *PNGPanel) PowerOff() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fb = nil
	p.powered = false
	return nil
}

func (p *PNGPanel) FullClear(temperature int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.powered {
		return ErrPanelOff
	}
	draw.Draw(p.fb, p.fb.Bounds(), image.White, image.Point{}, draw.Src)
	p.logger.Debug("panel cleared", slog.Int("temperature", temperature))
	return nil
}

// Framebuffer returns the draw buffer or nil while the panel is powered off.
func (p *PNGPanel) Framebuffer() *image.Gray {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fb
}

// Update encodes the framebuffer to the output file. The file is replaced atomically so
// that viewers never see a partial image.
func (p *PNGPanel) Update(mode Mode, temperature int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.powered {
		return ErrPanelOff
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".frame-*.png")
	if err != nil {
		return fmt.Errorf("failed to create frame file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if err = png.Encode(tmp, p.fb); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err = os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("failed to replace frame file: %w", err)
	}

	p.updates++
	p.logger.Debug("panel updated", slog.String("mode", mode.String()), slog.Int("temperature", temperature),
		slog.String("output", p.path))
	return nil
}

// Updates returns the number of committed frames.
func (p *PNGPanel) Updates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updates
}
