// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	const (
		expectLogLevel       = slog.LevelInfo
		expectLocation       = "Frasso Telesino"
		expectHost           = "wttr.in"
		expectQuery          = "1&n&q&T&F?A"
		expectMaxBodySize    = 8192
		expectMaxLocationLen = 256
		expectWakeup         = time.Second * 1800
		expectConnectTimeout = time.Second * 30
		expectTemperature    = 25
		expectSSID           = "weather-station"
	)
	t.Setenv("EPDWEATHER_WIFI_SSID", expectSSID)
	t.Run("new config with all defaults set", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		conf, err := New()
		if err != nil {
			t.Errorf("failed to load config: %s", err)
		}
		if conf.LogLevel != expectLogLevel {
			t.Errorf("expected log level to be: %s, got %s", expectLogLevel, conf.LogLevel)
		}
		if conf.WiFi.SSID != expectSSID {
			t.Errorf("expected ssid to be: %s, got %s", expectSSID, conf.WiFi.SSID)
		}
		if conf.Location != expectLocation {
			t.Errorf("expected location to be: %s, got %s", expectLocation, conf.Location)
		}
		if conf.Weather.Host != expectHost {
			t.Errorf("expected weather host to be: %s, got %s", expectHost, conf.Weather.Host)
		}
		if conf.Weather.Query != expectQuery {
			t.Errorf("expected weather query to be: %s, got %s", expectQuery, conf.Weather.Query)
		}
		if conf.Weather.MaxBodySize != expectMaxBodySize {
			t.Errorf("expected max body size to be: %d, got %d", expectMaxBodySize, conf.Weather.MaxBodySize)
		}
		if conf.Weather.MaxLocationLen != expectMaxLocationLen {
			t.Errorf("expected max location length to be: %d, got %d", expectMaxLocationLen,
				conf.Weather.MaxLocationLen)
		}
		if conf.Weather.VerifyHostname {
			t.Error("expected hostname verification to be disabled by default")
		}
		if conf.Intervals.Wakeup != expectWakeup {
			t.Errorf("expected wakeup interval to be: %s, got %s", expectWakeup, conf.Intervals.Wakeup)
		}
		if conf.Intervals.ConnectTimeout != expectConnectTimeout {
			t.Errorf("expected connect timeout to be: %s, got %s", expectConnectTimeout,
				conf.Intervals.ConnectTimeout)
		}
		if conf.Display.Temperature != expectTemperature {
			t.Errorf("expected display temperature to be: %d, got %d", expectTemperature, conf.Display.Temperature)
		}
		if conf.Power.Mode != PowerModeRTC {
			t.Errorf("expected power mode to be: %s, got %s", PowerModeRTC, conf.Power.Mode)
		}
		if !strings.HasSuffix(conf.Platform.StateDir, filepath.Join(".local", "state", "epaper-weather")) {
			t.Errorf("unexpected state dir: %s", conf.Platform.StateDir)
		}
		if filepath.Dir(conf.Display.Output) != conf.Platform.StateDir {
			t.Errorf("expected display output to live in the state dir, got %s", conf.Display.Output)
		}
		if conf.HasCoordinates() {
			t.Error("expected no coordinates to be configured")
		}
	})
	t.Run("power mode is case insensitive", func(t *testing.T) {
		t.Setenv("EPDWEATHER_POWER_MODE", "Scheduler")
		conf, err := New()
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		if conf.Power.Mode != PowerModeScheduler {
			t.Errorf("expected power mode to be: %s, got %s", PowerModeScheduler, conf.Power.Mode)
		}
	})
	t.Run("new config with invalid values from env", func(t *testing.T) {
		t.Setenv("EPDWEATHER_LOGLEVEL", "invalid")
		_, err := New()
		if err == nil {
			t.Error("expected config to fail, but didn't")
		}
	})
	t.Run("config validation fails", func(t *testing.T) {
		tests := []struct {
			name  string
			key   string
			value string
		}{
			{"location too long", "EPDWEATHER_LOCATION", strings.Repeat("a", 257)},
			{"negative max location length", "EPDWEATHER_WEATHER_MAX_LOCATION_LEN", "-1"},
			{"negative max body size", "EPDWEATHER_WEATHER_MAX_BODY_SIZE", "-1"},
			{"latitude out of range", "EPDWEATHER_COORDINATES_LATITUDE", "91"},
			{"longitude out of range", "EPDWEATHER_COORDINATES_LONGITUDE", "-181"},
			{"negative wakeup interval", "EPDWEATHER_INTERVALS_WAKEUP", "-30m"},
			{"negative connect timeout", "EPDWEATHER_INTERVALS_CONNECT_TIMEOUT", "-1s"},
			{"negative station poll", "EPDWEATHER_INTERVALS_STATION_POLL", "-500ms"},
			{"unsupported power mode", "EPDWEATHER_POWER_MODE", "hibernate"},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				t.Setenv(tc.key, tc.value)
				_, err := New()
				if err == nil {
					t.Error("expected config to fail, but didn't")
				}
			})
		}
	})
	t.Run("validating an empty location fails", func(t *testing.T) {
		conf, err := New()
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		conf.Location = ""
		if err = conf.Validate(); err == nil {
			t.Error("expected config validation to fail, but didn't")
		}
	})
	t.Run("validating an empty ssid fails", func(t *testing.T) {
		conf, err := New()
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		conf.WiFi.SSID = ""
		err = conf.Validate()
		if err == nil {
			t.Fatal("expected config validation to fail, but didn't")
		}
		if !strings.Contains(err.Error(), "ssid must not be empty") {
			t.Errorf("expected ssid error, got: %s", err)
		}
	})
}

func TestNewFromFile(t *testing.T) {
	t.Run("reading config from valid file succeeds", func(t *testing.T) {
		conf, err := NewFromFile("../../etc", "config.toml")
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		if conf.WiFi.SSID != "weather-station" {
			t.Errorf("expected ssid to be: %s, got %s", "weather-station", conf.WiFi.SSID)
		}
		if !conf.HasCoordinates() {
			t.Error("expected coordinates to be configured")
		}
		if conf.Intervals.Wakeup != time.Minute*30 {
			t.Errorf("expected wakeup interval to be: %s, got %s", time.Minute*30, conf.Intervals.Wakeup)
		}
	})
	t.Run("reading config from non-existent file fails", func(t *testing.T) {
		_, err := NewFromFile("../../etc", "non-existent.toml")
		if err == nil {
			t.Error("expected config to fail, but didn't")
		}
	})
	t.Run("reading invalid config file fails", func(t *testing.T) {
		_, err := NewFromFile("../../testdata", "invalid.toml")
		if err == nil {
			t.Error("expected config to fail, but didn't")
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("secrets from env file are picked up by the config", func(t *testing.T) {
		t.Setenv("EPDWEATHER_WIFI_SSID", "")
		t.Setenv("EPDWEATHER_WIFI_PASSPHRASE", "")
		if err := os.Unsetenv("EPDWEATHER_WIFI_SSID"); err != nil {
			t.Fatalf("failed to unset env: %s", err)
		}
		if err := os.Unsetenv("EPDWEATHER_WIFI_PASSPHRASE"); err != nil {
			t.Fatalf("failed to unset env: %s", err)
		}
		if err := LoadEnvFile("../../testdata/secrets.env"); err != nil {
			t.Fatalf("failed to load env file: %s", err)
		}
		conf, err := New()
		if err != nil {
			t.Fatalf("failed to load config: %s", err)
		}
		if conf.WiFi.SSID != "test-network" {
			t.Errorf("expected ssid to be: %s, got %s", "test-network", conf.WiFi.SSID)
		}
		if conf.WiFi.Passphrase != "correct horse battery staple" {
			t.Errorf("expected passphrase to be loaded from env file, got %q", conf.WiFi.Passphrase)
		}
	})
	t.Run("missing env file is not an error", func(t *testing.T) {
		if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
			t.Errorf("expected missing env file to be ignored, got: %s", err)
		}
	})
	t.Run("empty file name is a no-op", func(t *testing.T) {
		if err := LoadEnvFile(""); err != nil {
			t.Errorf("expected empty file name to be ignored, got: %s", err)
		}
	})
}
