// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nathan-osman/go-sunrise"
	"github.com/vorlif/humanize"
	"github.com/vorlif/humanize/locale/de"
	"github.com/vorlif/humanize/locale/it"
	"github.com/vorlif/spreak"
	"github.com/vorlif/spreak/localize"
	"github.com/wneessen/go-moonphase"
	"golang.org/x/text/language"
)

const timeLayout = "15:04"

var moonPhaseNames = map[string]localize.MsgID{
	"new moon":        "New moon",
	"waxing crescent": "Waxing crescent",
	"first quarter":   "First quarter",
	"waxing gibbous":  "Waxing gibbous",
	"full moon":       "Full moon",
	"waning gibbous":  "Waning gibbous",
	"third quarter":   "Third quarter",
	"waning crescent": "Waning crescent",
}

// Footer builds the status lines shown below the report.
type Footer struct {
	localizer *spreak.Localizer
	humanizer *humanize.Humanizer
	clock     clockwork.Clock
	interval  time.Duration

	hasCoordinates bool
	latitude       float64
	longitude      float64
}

// FooterOption configures a Footer.
type FooterOption func(*Footer)

// WithCoordinates enables the sunrise and sunset line.
func WithCoordinates(latitude, longitude float64) FooterOption {
	return func(f *Footer) {
		f.hasCoordinates = true
		f.latitude = latitude
		f.longitude = longitude
	}
}

func WithClock(clock clockwork.Clock) FooterOption {
	return func(f *Footer) {
		if clock != nil {
			f.clock = clock
		}
	}
}

// NewFooter returns a Footer for a device that wakes up every interval.
func NewFooter(t *spreak.Localizer, lang language.Tag, interval time.Duration, opts ...FooterOption) *Footer {
	collection := humanize.MustNew(humanize.WithLocale(de.New(), it.New()))
	footer := &Footer{
		localizer: t,
		humanizer: collection.CreateHumanizer(lang),
		clock:     clockwork.NewRealClock(),
		interval:  interval,
	}
	for _, opt := range opts {
		opt(footer)
	}
	return footer
}

// Lines returns the footer text for the current time.
func (f *Footer) Lines() []string {
	now := f.clock.Now()
	next := now.Add(f.interval)

	// NaturalTime is relative to the wall clock, not to the footer clock
	natural := f.humanizer.NaturalTime(time.Now().Add(f.interval))
	lines := []string{
		f.getf("Updated at %s, next update %s (%s)", now.Format(timeLayout), natural, next.Format(timeLayout)),
	}

	phase := f.moonPhase(now)
	if !f.hasCoordinates {
		return append(lines, f.getf("Moon phase: %s", phase))
	}

	rise, set := sunrise.SunriseSunset(f.latitude, f.longitude, now.Year(), now.Month(), now.Day())
	if rise.IsZero() || set.IsZero() {
		// Polar day or night
		return append(lines, f.getf("Moon phase: %s", phase))
	}
	return append(lines, f.getf("Moon phase: %s, sunrise %s, sunset %s", phase,
		rise.In(now.Location()).Format(timeLayout), set.In(now.Location()).Format(timeLayout)))
}

func (f *Footer) moonPhase(at time.Time) string {
	name := moonphase.New(at).PhaseName()
	if msg, ok := moonPhaseNames[strings.ToLower(name)]; ok {
		return f.get(msg)
	}
	return name
}

func (f *Footer) get(msg string) string {
	if f.localizer == nil {
		return msg
	}
	return f.localizer.Get(msg)
}

func (f *Footer) getf(format string, args ...any) string {
	if f.localizer == nil {
		return fmt.Sprintf(format, args...)
	}
	return f.localizer.Getf(format, args...)
}
