// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package detection

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"routertrap/internal/clock"
	"routertrap/internal/config"
	"routertrap/internal/datapath"
	"routertrap/internal/profiler"
	"routertrap/internal/wire"
)

func newTestController() (*Controller, *datapath.BlockMap, *profiler.Profiler, *clock.Fake) {
	fake := clock.NewFake(time.Unix(1000, 0))
	blocks := datapath.NewBlockMap(16, fake)
	prof := profiler.New(fake)
	cfg := config.DetectionConfig{
		Enabled:                     true,
		AutoBlock:                   true,
		AmplificationRatioThreshold: 10,
		MinRequestCount:             5,
		ScanProtocolThreshold:       4,
		BlockDuration:               time.Hour,
	}
	return NewController(cfg, blocks, prof, fake), blocks, prof, fake
}

func TestKnownExploitFlagBlocksImmediately(t *testing.T) {
	ctrl, blocks, prof, _ := newTestController()
	addr := netip.MustParseAddr("203.0.113.5")
	prof.Record(addr, wire.ProtocolNTP, 8, 8)

	ctrl.evaluate(Observation{Addr: addr, Protocol: wire.ProtocolNTP, Flag: "ntp_monlist"})

	require.True(t, blocks.Contains(ipMustUint32(addr)))
}

func TestAmplificationRuleRequiresBothConditions(t *testing.T) {
	ctrl, blocks, prof, _ := newTestController()
	addr := netip.MustParseAddr("203.0.113.9")

	// High ratio, but below min request count: must not block yet.
	for i := 0; i < 3; i++ {
		prof.Record(addr, wire.ProtocolDNS, 10, 2000)
	}
	ctrl.evaluate(Observation{Addr: addr, Protocol: wire.ProtocolDNS})
	require.False(t, blocks.Contains(ipMustUint32(addr)))

	for i := 0; i < 3; i++ {
		prof.Record(addr, wire.ProtocolDNS, 10, 2000)
	}
	ctrl.evaluate(Observation{Addr: addr, Protocol: wire.ProtocolDNS})
	require.True(t, blocks.Contains(ipMustUint32(addr)))
}

func TestAutoBlockDisabledNeverWrites(t *testing.T) {
	ctrl, blocks, prof, _ := newTestController()
	ctrl.cfg.AutoBlock = false
	addr := netip.MustParseAddr("203.0.113.10")
	prof.Record(addr, wire.ProtocolNTP, 1, 1)

	ctrl.evaluate(Observation{Addr: addr, Flag: "ntp_monlist"})
	require.False(t, blocks.Contains(ipMustUint32(addr)))
}

func TestEventChannelScanDetectionCoversResponderlessPorts(t *testing.T) {
	ctrl, blocks, _, _ := newTestController()
	addr := netip.MustParseAddr("203.0.113.20")
	ipBytes := addr.As4()

	tags := []wire.ProtocolTag{wire.ProtocolLDAP, wire.ProtocolMDNS, wire.ProtocolWSDiscovery, wire.ProtocolCharGen}
	for _, tag := range tags {
		ctrl.observeEvent(wire.PacketEvent{
			SrcIP: beUint32(ipBytes),
			Tag:   tag,
		})
	}

	require.True(t, blocks.Contains(ipMustUint32(addr)))
}

func TestEventChannelIgnoresBlockedAndUnknownTraffic(t *testing.T) {
	ctrl, blocks, _, _ := newTestController()
	addr := netip.MustParseAddr("203.0.113.21")
	ipBytes := addr.As4()

	ctrl.observeEvent(wire.PacketEvent{SrcIP: beUint32(ipBytes), Tag: wire.ProtocolUnknown})
	ctrl.observeEvent(wire.PacketEvent{SrcIP: beUint32(ipBytes), Tag: wire.ProtocolLDAP, Flags: wire.FlagBlocked})

	require.False(t, blocks.Contains(ipMustUint32(addr)))
}

func beUint32(b [4]byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func ipMustUint32(addr netip.Addr) uint32 {
	v, _ := ipv4Uint32(addr)
	return v
}
