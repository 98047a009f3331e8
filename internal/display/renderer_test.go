// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package display

import (
	"bytes"
	"errors"
	"image"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/wneessen/epaper-weather/internal/i18n"
	"github.com/wneessen/epaper-weather/internal/logger"
)

const testReport = `Weather report: Frasso Telesino

     \  /       Partly cloudy
   _ /"".-.     +21(23) °C
     \_(   ).   ↗ 11 km/h
     /(___(__)  10 km
                0.0 mm
`

func TestNewRenderer(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		r := NewRenderer(testLogger(), nil)
		if r.origin != DefaultOrigin {
			t.Errorf("expected origin to be %v, got %v", DefaultOrigin, r.origin)
		}
		if r.mode != ModeGC16 {
			t.Errorf("expected mode to be %s, got %s", ModeGC16, r.mode)
		}
		if r.face == nil {
			t.Error("expected a default font face")
		}
	})
	t.Run("options", func(t *testing.T) {
		footer := NewFooter(nil, defaultLang, 0)
		r := NewRenderer(testLogger(), nil, WithOrigin(image.Pt(4, 16)), WithFooter(footer), WithFace(nil))
		if r.origin != image.Pt(4, 16) {
			t.Errorf("expected origin to be (4,16), got %v", r.origin)
		}
		if r.footer != footer {
			t.Error("expected footer to be set")
		}
		if r.face == nil {
			t.Error("expected nil face to keep the default")
		}
	})
}

func TestRenderer_RenderReport(t *testing.T) {
	t.Run("report is drawn at the cursor origin and committed", func(t *testing.T) {
		panel := newFakePanel()
		r := NewRenderer(testLogger(), nil)
		if err := r.RenderReport(panel, panel.fb, testReport, DefaultTemperature); err != nil {
			t.Fatalf("failed to render report: %s", err)
		}
		if len(panel.updates) != 1 {
			t.Fatalf("expected one panel update, got %d", len(panel.updates))
		}
		if panel.updates[0].mode != ModeGC16 {
			t.Errorf("expected update mode to be %s, got %s", ModeGC16, panel.updates[0].mode)
		}
		if panel.updates[0].temperature != DefaultTemperature {
			t.Errorf("expected temperature to be %d, got %d", DefaultTemperature, panel.updates[0].temperature)
		}
		// First line ascends from the baseline at y=24
		if !hasInk(panel.fb, image.Rect(DefaultOrigin.X, 10, 400, 27)) {
			t.Error("expected the first line to be drawn near the cursor origin")
		}
		if hasInk(panel.fb, image.Rect(0, 0, DefaultOrigin.X, Height)) {
			t.Error("expected nothing to be drawn left of the cursor origin")
		}
	})
	t.Run("long lines are truncated at the right margin", func(t *testing.T) {
		panel := newFakePanel()
		r := NewRenderer(testLogger(), nil)
		if err := r.RenderReport(panel, panel.fb, strings.Repeat("W", 500), DefaultTemperature); err != nil {
			t.Fatalf("failed to render report: %s", err)
		}
		if hasInk(panel.fb, image.Rect(Width-DefaultOrigin.X, 0, Width, Height)) {
			t.Error("expected nothing to be drawn in the right margin")
		}
	})
	t.Run("lines exceeding the panel height are dropped", func(t *testing.T) {
		buf := bytes.NewBuffer(nil)
		panel := newFakePanel()
		r := NewRenderer(logger.NewLogger(slog.LevelDebug, buf), nil)
		text := strings.Repeat("line\n", 100)
		if err := r.RenderReport(panel, panel.fb, text, DefaultTemperature); err != nil {
			t.Fatalf("failed to render report: %s", err)
		}
		if !strings.Contains(buf.String(), "dropping lines") {
			t.Errorf("expected dropped lines to be logged, got: %q", buf.String())
		}
		if hasInk(panel.fb, image.Rect(0, Height-DefaultOrigin.X+3, Width, Height)) {
			t.Error("expected the bottom margin to stay blank")
		}
	})
	t.Run("empty report still updates the panel", func(t *testing.T) {
		panel := newFakePanel()
		r := NewRenderer(testLogger(), nil)
		if err := r.RenderReport(panel, panel.fb, "", DefaultTemperature); err != nil {
			t.Fatalf("failed to render report: %s", err)
		}
		if len(panel.updates) != 1 {
			t.Errorf("expected one panel update, got %d", len(panel.updates))
		}
		if hasInk(panel.fb, panel.fb.Bounds()) {
			t.Error("expected an empty frame")
		}
	})
	t.Run("previous frame content is cleared", func(t *testing.T) {
		panel := newFakePanel()
		panel.fb.Pix[len(panel.fb.Pix)-1] = 0
		r := NewRenderer(testLogger(), nil)
		if err := r.RenderReport(panel, panel.fb, "", DefaultTemperature); err != nil {
			t.Fatalf("failed to render report: %s", err)
		}
		if panel.fb.Pix[len(panel.fb.Pix)-1] != 0xff {
			t.Error("expected framebuffer to be cleared before drawing")
		}
	})
	t.Run("footer is drawn at the bottom", func(t *testing.T) {
		panel := newFakePanel()
		footer := NewFooter(nil, defaultLang, 0, WithClock(testClock()))
		r := NewRenderer(testLogger(), nil, WithFooter(footer))
		if err := r.RenderReport(panel, panel.fb, "", DefaultTemperature); err != nil {
			t.Fatalf("failed to render report: %s", err)
		}
		if !hasInk(panel.fb, image.Rect(0, Height-60, Width, Height)) {
			t.Error("expected the footer to be drawn")
		}
	})
	t.Run("nil framebuffer fails without update", func(t *testing.T) {
		panel := newFakePanel()
		r := NewRenderer(testLogger(), nil)
		if err := r.RenderReport(panel, nil, testReport, DefaultTemperature); !errors.Is(err, ErrNoFramebuffer) {
			t.Errorf("expected error to be %s, got %s", ErrNoFramebuffer, err)
		}
		if len(panel.updates) != 0 {
			t.Errorf("expected no panel update, got %d", len(panel.updates))
		}
	})
	t.Run("update errors are returned", func(t *testing.T) {
		panel := newFakePanel()
		panel.updateErr = errors.New("busy line stuck")
		r := NewRenderer(testLogger(), nil)
		if err := r.RenderReport(panel, panel.fb, testReport, DefaultTemperature); !errors.Is(err, panel.updateErr) {
			t.Errorf("expected error to be %s, got %s", panel.updateErr, err)
		}
	})
}

func TestRenderer_RenderNoData(t *testing.T) {
	t.Run("placeholder is drawn and committed", func(t *testing.T) {
		panel := newFakePanel()
		r := NewRenderer(testLogger(), nil)
		if err := r.RenderNoData(panel, panel.fb, DefaultTemperature); err != nil {
			t.Fatalf("failed to render placeholder: %s", err)
		}
		if len(panel.updates) != 1 || panel.updates[0].mode != ModeGC16 {
			t.Errorf("expected one GC16 update, got %v", panel.updates)
		}
		if !hasInk(panel.fb, image.Rect(DefaultOrigin.X, 10, 400, 27)) {
			t.Error("expected the placeholder to be drawn at the cursor origin")
		}
	})
	t.Run("placeholder is localized", func(t *testing.T) {
		localizer, err := i18n.New("de")
		if err != nil {
			t.Fatalf("failed to create localizer: %s", err)
		}
		r := NewRenderer(testLogger(), localizer)
		if got := r.get(NoDataMessage); got != "Keine Wetterdaten verfügbar" {
			t.Errorf("expected german placeholder, got %q", got)
		}
	})
	t.Run("nil framebuffer fails", func(t *testing.T) {
		r := NewRenderer(testLogger(), nil)
		if err := r.RenderNoData(newFakePanel(), nil, DefaultTemperature); !errors.Is(err, ErrNoFramebuffer) {
			t.Errorf("expected error to be %s, got %s", ErrNoFramebuffer, err)
		}
	})
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"only newlines", "\n\n", nil},
		{"single line", "sunny", []string{"sunny"}},
		{"trailing newline", "a\nb\n", []string{"a", "b"}},
		{"inner blank lines are kept", "a\n\nb", []string{"a", "", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"tabs", "a\tb", []string{"a    b"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := splitLines(tc.text)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d lines, got %d: %q", len(tc.want), len(got), got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("line %d: expected %q, got %q", i, tc.want[i], got[i])
				}
			}
		})
	}
}

func TestMode_String(t *testing.T) {
	tests := map[Mode]string{ModeDU: "DU", ModeGL16: "GL16", ModeGC16: "GC16", Mode(0): "unknown"}
	for mode, want := range tests {
		if mode.String() != want {
			t.Errorf("expected %q, got %q", want, mode.String())
		}
	}
}

func testLogger() *logger.Logger {
	return logger.NewLogger(slog.LevelDebug, io.Discard)
}

// hasInk reports whether any pixel inside rect is darker than white.
func hasInk(fb *image.Gray, rect image.Rectangle) bool {
	rect = rect.Intersect(fb.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if fb.GrayAt(x, y).Y != 0xff {
				return true
			}
		}
	}
	return false
}

type panelUpdate struct {
	mode        Mode
	temperature int
}

type fakePanel struct {
	fb        *image.Gray
	updates   []panelUpdate
	updateErr error
}

func newFakePanel() *fakePanel {
	fb := image.NewGray(image.Rect(0, 0, Width, Height))
	for i := range fb.Pix {
		fb.Pix[i] = 0xff
	}
	return &fakePanel{fb: fb}
}

func (f *fakePanel) PowerOn() error           { return nil }
func (f *fakePanel) PowerOff() error          { return nil }
func (f *fakePanel) FullClear(int) error      { return nil }
func (f *fakePanel) Framebuffer() *image.Gray { return f.fb }

func (f *fakePanel) Update(mode Mode, temperature int) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, panelUpdate{mode: mode, temperature: temperature})
	return nil
}
