// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

//go:build linux

// Package main implements the epaper-weather service.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/wneessen/epaper-weather/internal/config"
	"github.com/wneessen/epaper-weather/internal/display"
	"github.com/wneessen/epaper-weather/internal/i18n"
	"github.com/wneessen/epaper-weather/internal/logger"
	"github.com/wneessen/epaper-weather/internal/power"
	"github.com/wneessen/epaper-weather/internal/service"
	"github.com/wneessen/epaper-weather/internal/wifi"
)

const appName = "epaper-weather"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGABRT, os.Interrupt)
	defer cancel()

	// Initialize Logger
	log := logger.New(slog.LevelError)

	confPath := flag.String("config", "", "path to the config file")
	envPath := flag.String("env", defaultEnvFile(), "path to the env file holding secrets")
	flag.Parse()

	// Secrets have to be in the environment before the config is read
	if err := config.LoadEnvFile(*envPath); err != nil {
		log.Error("failed to load env file", logger.Err(err))
		os.Exit(1)
	}

	// Without a config file everything has to come from defaults and the environment
	path, file := findConfigFile()
	if *confPath != "" {
		path, file = filepath.Dir(*confPath), filepath.Base(*confPath)
	}
	var conf *config.Config
	var err error
	switch {
	case file != "":
		conf, err = config.NewFromFile(path, file)
	default:
		conf, err = config.New()
	}
	if err != nil {
		log.Error("failed to load config", logger.Err(err))
		os.Exit(1)
	}

	log = logger.New(conf.LogLevel)
	t, err := i18n.New(conf.Locale)
	if err != nil {
		log.Error("failed to initialize localizer", logger.Err(err))
		os.Exit(1)
	}

	var sleeper power.Sleeper
	switch conf.Power.Mode {
	case config.PowerModeScheduler:
		sleeper = power.NewSchedulerSleeper(log, nil)
	default:
		sleeper = power.NewRTCSleeper(log, conf.Power.WakeAlarm)
	}
	hw := service.Hardware{
		Panel:   display.NewPNGPanel(log, conf.Display.Output, display.Width, display.Height),
		Station: wifi.NewNL80211Station(log, conf.WiFi.Interface, conf.Intervals.StationPoll),
		Sleeper: sleeper,
	}

	serv, err := service.New(conf, log, t, hw)
	if err != nil {
		log.Error("failed to initialize epaper-weather service", logger.Err(err))
		os.Exit(1)
	}

	log.Info(t.Get("starting epaper-weather"), slog.String("version", version),
		slog.String("commit", commit), slog.String("date", date), slog.String("power_mode", conf.Power.Mode))
	if err = serv.Serve(ctx); err != nil {
		log.Error("epaper-weather service failed", logger.Err(err))
		os.Exit(1)
	}
	log.Info(t.Get("shutting down epaper-weather"))
}

func findConfigFile() (string, string) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}
	exts := []string{"toml", "yaml", "yml", "json"}
	for _, ext := range exts {
		path := filepath.Join(homedir, ".config", appName, "config."+ext)
		if _, err = os.Stat(path); err == nil {
			return filepath.Dir(path), filepath.Base(path)
		}
	}
	return "", ""
}

func defaultEnvFile() string {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homedir, ".config", appName, "secrets.env")
}
