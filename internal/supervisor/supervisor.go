// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package supervisor decides whether routertrapd should come up in safe
// mode. A decoy that crash-loops with auto-blocking enabled can poison
// its own block map faster than an operator can react, so the daemon
// keeps a short exit history across restarts and disables auto-blocking
// when the last few runs ended badly. Only real crashes count: a clean
// exit or a requested stop never pushes the decoy toward safe mode.
package supervisor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/term"

	"routertrap/internal/clock"
	"routertrap/internal/config"
)

const historyFileName = "crash_history.json"

// ExitRecord is one remembered process exit.
type ExitRecord struct {
	At       time.Time      `json:"at"`
	ExitCode int            `json:"exit_code"`
	Signal   syscall.Signal `json:"signal"`
	Panicked bool           `json:"panicked"`
}

// Crashed reports whether the exit was involuntary. Requested stops
// (SIGTERM/SIGINT/SIGHUP) and clean exits are not crashes; a recovered
// panic always is, and so is any fatal signal or non-zero exit.
func (r ExitRecord) Crashed() bool {
	if r.Panicked {
		return true
	}
	switch r.Signal {
	case syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP:
		return false
	case syscall.SIGKILL, syscall.SIGSEGV, syscall.SIGBUS, syscall.SIGABRT:
		return true
	}
	return r.ExitCode != 0
}

// Supervisor tracks exit history under a state directory and answers the
// single question main asks at startup: is it safe to auto-block?
type Supervisor struct {
	dir       string
	threshold int
	window    time.Duration
	clk       clock.Clock

	history []ExitRecord
}

// New loads any persisted exit history from dir. Crash threshold and
// window come from the detection config, since safe mode is a detection
// behavior (it disables auto-blocking, not the decoy surfaces).
func New(dir string, cfg config.DetectionConfig, clk clock.Clock) *Supervisor {
	if clk == nil {
		clk = clock.Default
	}
	s := &Supervisor{
		dir:       dir,
		threshold: cfg.CrashThreshold,
		window:    cfg.CrashWindow,
		clk:       clk,
	}
	if s.threshold <= 0 {
		s.threshold = 3
	}
	if s.window <= 0 {
		s.window = 5 * time.Minute
	}
	s.load()
	return s
}

// SafeMode reports whether the recent crash count has reached the
// threshold within the window.
func (s *Supervisor) SafeMode() bool {
	s.prune()
	crashes := 0
	for _, r := range s.history {
		if r.Crashed() {
			crashes++
		}
	}
	return crashes >= s.threshold
}

// RecordExit appends one exit to the persisted history. panicked should
// be true when a panic was recovered on the way out.
func (s *Supervisor) RecordExit(exitCode int, signal syscall.Signal, panicked bool) error {
	s.history = append(s.history, ExitRecord{
		At:       s.clk.Now(),
		ExitCode: exitCode,
		Signal:   signal,
		Panicked: panicked,
	})
	s.prune()
	return s.save()
}

// Reset clears the history, forgiving past crashes.
func (s *Supervisor) Reset() error {
	s.history = nil
	return s.save()
}

// ScheduleReset clears the history once the process has stayed up for a
// full crash window, so an old bad streak doesn't haunt a now-stable
// deployment.
func (s *Supervisor) ScheduleReset() {
	time.AfterFunc(s.window, func() {
		_ = s.Reset()
	})
}

// Interactive reports whether this process looks like a developer run
// rather than a supervised service: explicit test mode, a terminal on
// stdin, or no init/systemd parent. Interactive runs skip the crash
// bookkeeping so a laptop session never flips a production state file.
func Interactive() bool {
	if os.Getenv("ROUTERTRAP_TEST_MODE") != "" {
		return true
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return true
	}
	// INVOCATION_ID is set by systemd for service invocations.
	return os.Getppid() != 1 && os.Getenv("INVOCATION_ID") == ""
}

// prune drops records older than the window.
func (s *Supervisor) prune() {
	cutoff := s.clk.Now().Add(-s.window)
	kept := s.history[:0]
	for _, r := range s.history {
		if r.At.After(cutoff) {
			kept = append(kept, r)
		}
	}
	s.history = kept
}

func (s *Supervisor) path() string {
	return filepath.Join(s.dir, historyFileName)
}

func (s *Supervisor) load() {
	data, err := os.ReadFile(s.path())
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &s.history); err != nil {
		// Corrupt history is forgotten, not fatal.
		s.history = nil
	}
}

func (s *Supervisor) save() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	data, err := json.Marshal(s.history)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(), data, 0644)
}
