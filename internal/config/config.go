// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kkyr/fig"
)

const (
	configEnv = "EPDWEATHER"
	appName   = "epaper-weather"

	PowerModeRTC       = "rtc"
	PowerModeScheduler = "scheduler"
)

// Config represents the application's configuration structure.
type Config struct {
	LogLevel slog.Level `fig:"loglevel" default:"0"`
	Locale   string     `fig:"locale"`
	Location string     `fig:"location" default:"Frasso Telesino"`

	// Optional, only used for the sunrise and sunset times in the display footer
	Coordinates struct {
		Latitude  float64 `fig:"latitude"`
		Longitude float64 `fig:"longitude"`
	} `fig:"coordinates"`

	WiFi struct {
		Interface  string `fig:"interface"`
		SSID       string `fig:"ssid"`
		Passphrase string `fig:"passphrase"`
	} `fig:"wifi"`

	Weather struct {
		Host           string `fig:"host" default:"wttr.in"`
		Query          string `fig:"query" default:"1&n&q&T&F?A"`
		MaxBodySize    int64  `fig:"max_body_size" default:"8192"`
		MaxLocationLen int    `fig:"max_location_len" default:"256"`
		VerifyHostname bool   `fig:"verify_hostname"`
	} `fig:"weather"`

	Intervals struct {
		Wakeup         time.Duration `fig:"wakeup" default:"30m"`
		ConnectTimeout time.Duration `fig:"connect_timeout" default:"30s"`
		FetchTimeout   time.Duration `fig:"fetch_timeout" default:"10s"`
		StationPoll    time.Duration `fig:"station_poll" default:"500ms"`
	} `fig:"intervals"`

	Display struct {
		// Ambient temperature in °C used to select the panel waveform
		Temperature int    `fig:"temperature" default:"25"`
		Output      string `fig:"output"`
	} `fig:"display"`

	Power struct {
		// Allowed values: rtc, scheduler
		Mode      string `fig:"mode" default:"rtc"`
		WakeAlarm string `fig:"wakealarm" default:"/sys/class/rtc/rtc0/wakealarm"`
		Oneshot   bool   `fig:"oneshot"`
	} `fig:"power"`

	Platform struct {
		StateDir string `fig:"state_dir"`
	} `fig:"platform"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	_, err := os.Stat(filepath.Join(path, file))
	if err != nil {
		return conf, fmt.Errorf("failed to read Config: %w", err)
	}
	if err = fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load Config: %w", err)
	}

	return conf, conf.Validate()
}

// LoadEnvFile reads KEY=value pairs from file into the process environment so that
// secrets like the Wi-Fi passphrase don't have to live in the config file. Variables
// that are already set take precedence. A missing file is not an error.
func LoadEnvFile(file string) error {
	if file == "" {
		return nil
	}
	if err := godotenv.Load(file); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Locale == "" {
		c.Locale = getLocale()
	}
	if c.Location == "" {
		return errors.New("location must not be empty")
	}
	if c.WiFi.SSID == "" {
		return errors.New("ssid must not be empty")
	}
	if c.Weather.MaxLocationLen < 1 {
		return fmt.Errorf("invalid max location length: %d", c.Weather.MaxLocationLen)
	}
	if len(c.Location) > c.Weather.MaxLocationLen {
		return fmt.Errorf("location exceeds %d bytes", c.Weather.MaxLocationLen)
	}
	if c.Weather.MaxBodySize < 0 {
		return fmt.Errorf("invalid max body size: %d", c.Weather.MaxBodySize)
	}
	if c.Weather.Host == "" {
		return errors.New("weather host must not be empty")
	}
	if c.Coordinates.Latitude < -90 || c.Coordinates.Latitude > 90 {
		return fmt.Errorf("invalid latitude: %f", c.Coordinates.Latitude)
	}
	if c.Coordinates.Longitude < -180 || c.Coordinates.Longitude > 180 {
		return fmt.Errorf("invalid longitude: %f", c.Coordinates.Longitude)
	}
	if c.Intervals.Wakeup <= 0 {
		return fmt.Errorf("invalid wakeup interval: %s", c.Intervals.Wakeup)
	}
	if c.Intervals.ConnectTimeout <= 0 {
		return fmt.Errorf("invalid connect timeout: %s", c.Intervals.ConnectTimeout)
	}
	if c.Intervals.FetchTimeout <= 0 {
		return fmt.Errorf("invalid fetch timeout: %s", c.Intervals.FetchTimeout)
	}
	if c.Intervals.StationPoll <= 0 {
		return fmt.Errorf("invalid station poll interval: %s", c.Intervals.StationPoll)
	}
	c.Power.Mode = strings.ToLower(c.Power.Mode)
	if c.Power.Mode != PowerModeRTC && c.Power.Mode != PowerModeScheduler {
		return fmt.Errorf("invalid power mode: %s", c.Power.Mode)
	}
	if c.Platform.StateDir == "" {
		home, _ := os.UserHomeDir()
		c.Platform.StateDir = filepath.Join(home, ".local", "state", appName)
	}
	if c.Display.Output == "" {
		c.Display.Output = filepath.Join(c.Platform.StateDir, appName+".png")
	}

	return nil
}

// HasCoordinates returns true if a latitude/longitude pair was configured.
func (c *Config) HasCoordinates() bool {
	return c.Coordinates.Latitude != 0 || c.Coordinates.Longitude != 0
}

func getLocale() string {
	locale := os.Getenv("LC_MESSAGES")
	if idx := strings.Index(locale, "."); idx != -1 {
		lang := locale[:idx]
		return strings.ReplaceAll(lang, "_", "-")
	}
	return locale
}
