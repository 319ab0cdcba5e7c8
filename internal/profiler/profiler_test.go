// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package profiler

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"routertrap/internal/clock"
	"routertrap/internal/wire"
)

func TestAmplificationFactorIsExactNoDrift(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	p := New(fake)
	addr := netip.MustParseAddr("203.0.113.7")

	p.Record(addr, wire.ProtocolNTP, 8, 440)
	p.Record(addr, wire.ProtocolNTP, 8, 440)
	p.Record(addr, wire.ProtocolNTP, 8, 440)

	prof, ok := p.Profile(addr)
	require.True(t, ok)
	require.Equal(t, uint64(24), prof.TotalRequestBytes)
	require.Equal(t, uint64(1320), prof.TotalResponseBytes)
	require.InDelta(t, 1320.0/24.0, prof.AmplificationFactor(), 1e-9)
}

func TestRecordVerdictNeedsRatioAndSampleSize(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	p := New(fake)
	p.SetPolicy(2.0, 5)
	addr := netip.MustParseAddr("203.0.113.8")

	// High ratio from the start, but the verdict stays false until the
	// source has crossed the minimum sample size.
	for i := 0; i < 5; i++ {
		require.False(t, p.Record(addr, wire.ProtocolNTP, 8, 440))
	}
	require.True(t, p.Record(addr, wire.ProtocolNTP, 8, 440))
}

func TestRecordTracksHistogramAndFirstSeen(t *testing.T) {
	fake := clock.NewFake(time.Unix(100, 0))
	p := New(fake)
	addr := netip.MustParseAddr("203.0.113.11")

	p.Record(addr, wire.ProtocolDNS, 30, 300)
	fake.Advance(time.Minute)
	p.Record(addr, wire.ProtocolDNS, 30, 300)
	p.Record(addr, wire.ProtocolNTP, 8, 48)

	prof, ok := p.Profile(addr)
	require.True(t, ok)
	require.Equal(t, uint64(2), prof.ProtocolHistogram[wire.ProtocolDNS])
	require.Equal(t, uint64(1), prof.ProtocolHistogram[wire.ProtocolNTP])
	require.Equal(t, time.Unix(100, 0), prof.FirstSeen)
	require.Equal(t, time.Unix(160, 0), prof.LastSeen)
}

func TestTopAttackersSortedDescending(t *testing.T) {
	p := New(nil)
	low := netip.MustParseAddr("10.0.0.1")
	high := netip.MustParseAddr("10.0.0.2")

	p.Record(low, wire.ProtocolDNS, 100, 200)
	p.Record(high, wire.ProtocolNTP, 10, 4000)

	top := p.TopAttackers(2)
	require.Len(t, top, 2)
	require.Equal(t, high, top[0].Addr)
	require.Equal(t, low, top[1].Addr)
}

func TestCleanupRemovesStaleProfiles(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	p := New(fake)
	addr := netip.MustParseAddr("198.51.100.1")
	p.Record(addr, wire.ProtocolSNMP, 50, 500)

	fake.Advance(2 * time.Hour)
	removed := p.Cleanup(1 * time.Hour)
	require.Equal(t, 1, removed)

	_, ok := p.Profile(addr)
	require.False(t, ok)
}
