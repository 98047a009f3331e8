// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package platform prepares the persistent storage used across wake cycles.
package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wneessen/epaper-weather/internal/logger"
)

const wakeCounterFile = "wakes"

var ErrNoStateDir = errors.New("state directory not configured")

// Init creates the state directory and increments the persisted wake counter. It returns
// the number of the wake cycle that is starting, beginning with 1. A corrupt counter is
// reset instead of failing the cycle.
func Init(log *logger.Logger, stateDir string) (uint64, error) {
	if stateDir == "" {
		return 0, ErrNoStateDir
	}
	if err := os.MkdirAll(stateDir, 0o750); err != nil {
		return 0, fmt.Errorf("failed to create state directory: %w", err)
	}

	path := filepath.Join(stateDir, wakeCounterFile)
	wakes, err := readCounter(path)
	if err != nil {
		log.Warn("wake counter unreadable, resetting", slog.String("path", path), logger.Err(err))
		wakes = 0
	}
	wakes++
	if err = writeCounter(path, wakes); err != nil {
		return 0, err
	}
	return wakes, nil
}

func readCounter(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read wake counter: %w", err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return 0, nil
	}
	wakes, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse wake counter: %w", err)
	}
	return wakes, nil
}

// writeCounter replaces the counter file atomically.
func writeCounter(path string, wakes uint64) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+wakeCounterFile+"-*")
	if err != nil {
		return fmt.Errorf("failed to create wake counter: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err = tmp.WriteString(strconv.FormatUint(wakes, 10) + "\n"); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write wake counter: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to write wake counter: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace wake counter: %w", err)
	}
	return nil
}
