// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides the package-level structured logger used across
// routertrap, backed by charmbracelet/log. A syslog sink can be layered on
// top via NewSyslogWriter for deployments that forward decoy telemetry to a
// central collector.
package logging

import (
	"io"
	"os"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

var (
	mu     sync.RWMutex
	stderr io.Writer = os.Stderr
	logger           = charmlog.NewWithOptions(stderr, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02T15:04:05Z07:00",
	})
)

// SetLevel adjusts the minimum level emitted. Valid names: debug, info,
// warn, error.
func SetLevel(name string) {
	mu.Lock()
	defer mu.Unlock()
	lvl, err := charmlog.ParseLevel(name)
	if err != nil {
		lvl = charmlog.InfoLevel
	}
	logger.SetLevel(lvl)
}

// AddWriter fans log output out to an additional io.Writer, such as a
// syslog connection.
func AddWriter(w *SyslogWriter) {
	mu.Lock()
	defer mu.Unlock()
	stderr = io.MultiWriter(stderr, w)
	logger.SetOutput(stderr)
}

func Debug(msg string, kv ...any) {
	mu.RLock()
	defer mu.RUnlock()
	logger.Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	mu.RLock()
	defer mu.RUnlock()
	logger.Info(msg, kv...)
}

func Warn(msg string, kv ...any) {
	mu.RLock()
	defer mu.RUnlock()
	logger.Warn(msg, kv...)
}

func Error(msg string, kv ...any) {
	mu.RLock()
	defer mu.RUnlock()
	logger.Error(msg, kv...)
}

// With returns a child logger carrying the given key/value pairs, for a
// single component (a responder, a CLI session) to attach context to every
// line it emits.
func With(kv ...any) *charmlog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger.With(kv...)
}
