// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package display

import (
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/vorlif/spreak"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/wneessen/epaper-weather/internal/logger"
)

// NoDataMessage is shown when no weather report could be obtained.
const NoDataMessage = "No weather data available"

// DefaultOrigin is the baseline position of the first report line.
var DefaultOrigin = image.Point{X: 12, Y: 24}

// Renderer lays out text on a framebuffer and commits it to the panel.
type Renderer struct {
	logger    *logger.Logger
	localizer *spreak.Localizer
	footer    *Footer
	face      font.Face
	origin    image.Point
	mode      Mode
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithFooter draws the status footer at the bottom of every render.
func WithFooter(footer *Footer) RendererOption {
	return func(r *Renderer) {
		r.footer = footer
	}
}

func WithFace(face font.Face) RendererOption {
	return func(r *Renderer) {
		if face != nil {
			r.face = face
		}
	}
}

func WithOrigin(origin image.Point) RendererOption {
	return func(r *Renderer) {
		r.origin = origin
	}
}

// NewRenderer returns a Renderer that uses basicfont.Face7x13 and commits with ModeGC16.
func NewRenderer(log *logger.Logger, t *spreak.Localizer, opts ...RendererOption) *Renderer {
	renderer := &Renderer{
		logger:    log,
		localizer: t,
		face:      basicfont.Face7x13,
		origin:    DefaultOrigin,
		mode:      ModeGC16,
	}
	for _, opt := range opts {
		opt(renderer)
	}
	return renderer
}

// RenderReport draws the report text line by line starting at the cursor origin and
// updates the panel. Lines wider than the panel are truncated.
func (r *Renderer) RenderReport(panel Panel, fb *image.Gray, text string, temperature int) error {
	lines := splitLines(text)
	r.logger.Debug("rendering weather report", slog.Int("lines", len(lines)))
	return r.render(panel, fb, lines, temperature)
}

// RenderNoData draws the localized no-data placeholder and updates the panel.
func (r *Renderer) RenderNoData(panel Panel, fb *image.Gray, temperature int) error {
	r.logger.Debug("rendering no-data placeholder")
	return r.render(panel, fb, []string{r.get(NoDataMessage)}, temperature)
}

func (r *Renderer) render(panel Panel, fb *image.Gray, lines []string, temperature int) error {
	if fb == nil {
		return ErrNoFramebuffer
	}
	draw.Draw(fb, fb.Bounds(), image.White, image.Point{}, draw.Src)

	var footer []string
	if r.footer != nil {
		footer = r.footer.Lines()
	}
	// The footer sits on the bottom margin, which equals the left margin
	lineHeight := r.face.Metrics().Height.Ceil()
	bottom := fb.Bounds().Max.Y - r.origin.X
	footerTop := bottom - len(footer)*lineHeight

	maxLines := 0
	if avail := footerTop - r.origin.Y; avail >= 0 {
		maxLines = avail/lineHeight + 1
	}
	if len(lines) > maxLines {
		r.logger.Warn("report does not fit onto the panel, dropping lines",
			slog.Int("lines", len(lines)), slog.Int("max_lines", maxLines))
		lines = lines[:maxLines]
	}
	r.drawLines(fb, lines, r.origin)
	if len(footer) > 0 {
		r.drawLines(fb, footer, image.Point{X: r.origin.X, Y: footerTop + lineHeight})
	}

	if err := panel.Update(r.mode, temperature); err != nil {
		return fmt.Errorf("failed to update panel: %w", err)
	}
	return nil
}

func (r *Renderer) drawLines(fb *image.Gray, lines []string, origin image.Point) {
	drawer := &font.Drawer{Dst: fb, Src: image.Black, Face: r.face}
	cols := r.columns(fb)
	lineHeight := r.face.Metrics().Height.Ceil()
	for i, line := range lines {
		drawer.Dot = fixed.P(origin.X, origin.Y+i*lineHeight)
		drawer.DrawString(runewidth.Truncate(line, cols, ""))
	}
}

// columns returns the number of cells that fit between the origin and the right margin.
func (r *Renderer) columns(fb *image.Gray) int {
	advance, ok := r.face.GlyphAdvance('0')
	if !ok || advance <= 0 {
		return 0
	}
	width := fb.Bounds().Dx() - 2*r.origin.X
	if width <= 0 {
		return 0
	}
	return width / advance.Ceil()
}

func (r *Renderer) get(msg string) string {
	if r.localizer == nil {
		return msg
	}
	return r.localizer.Get(msg)
}

// splitLines splits the report into lines without trailing empty lines. Carriage returns
// and tabs are normalized since the glyph face can't draw them.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.ReplaceAll(text, "\t", "    ")
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
