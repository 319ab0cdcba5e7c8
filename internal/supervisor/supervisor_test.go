// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package supervisor

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"routertrap/internal/clock"
	"routertrap/internal/config"
)

func testConfig() config.DetectionConfig {
	return config.DetectionConfig{CrashThreshold: 3, CrashWindow: time.Minute}
}

func TestExitRecordCrashed(t *testing.T) {
	cases := []struct {
		name    string
		record  ExitRecord
		crashed bool
	}{
		{"clean exit", ExitRecord{ExitCode: 0}, false},
		{"sigterm is a requested stop", ExitRecord{Signal: syscall.SIGTERM}, false},
		{"sigint is a requested stop", ExitRecord{Signal: syscall.SIGINT}, false},
		{"sigkill", ExitRecord{Signal: syscall.SIGKILL}, true},
		{"sigsegv", ExitRecord{Signal: syscall.SIGSEGV}, true},
		{"recovered panic", ExitRecord{Panicked: true}, true},
		{"non-zero exit", ExitRecord{ExitCode: 1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.crashed, tc.record.Crashed())
		})
	}
}

func TestSafeModeNeedsThresholdCrashes(t *testing.T) {
	fake := clock.NewFake(time.Unix(1000, 0))
	sup := New(t.TempDir(), testConfig(), fake)

	require.False(t, sup.SafeMode())

	require.NoError(t, sup.RecordExit(0, syscall.SIGKILL, false))
	require.NoError(t, sup.RecordExit(0, syscall.SIGSEGV, false))
	require.False(t, sup.SafeMode())

	// A clean exit in between does not count toward the threshold.
	require.NoError(t, sup.RecordExit(0, 0, false))
	require.False(t, sup.SafeMode())

	require.NoError(t, sup.RecordExit(0, syscall.SIGKILL, false))
	require.True(t, sup.SafeMode())
}

func TestResetForgivesCrashes(t *testing.T) {
	fake := clock.NewFake(time.Unix(1000, 0))
	sup := New(t.TempDir(), testConfig(), fake)

	for i := 0; i < 3; i++ {
		require.NoError(t, sup.RecordExit(0, syscall.SIGKILL, false))
	}
	require.True(t, sup.SafeMode())

	require.NoError(t, sup.Reset())
	require.False(t, sup.SafeMode())
}

func TestHistorySurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	fake := clock.NewFake(time.Unix(1000, 0))

	sup1 := New(dir, testConfig(), fake)
	require.NoError(t, sup1.RecordExit(0, syscall.SIGKILL, false))

	sup2 := New(dir, testConfig(), fake)
	require.Len(t, sup2.history, 1)
	require.True(t, sup2.history[0].Crashed())
}

func TestOldCrashesAgeOutOfTheWindow(t *testing.T) {
	fake := clock.NewFake(time.Unix(1000, 0))
	sup := New(t.TempDir(), testConfig(), fake)

	for i := 0; i < 3; i++ {
		require.NoError(t, sup.RecordExit(0, syscall.SIGKILL, false))
	}
	require.True(t, sup.SafeMode())

	fake.Advance(2 * time.Minute)
	require.False(t, sup.SafeMode())
}

func TestInteractiveHonorsTestMode(t *testing.T) {
	t.Setenv("ROUTERTRAP_TEST_MODE", "1")
	require.True(t, Interactive())
}
