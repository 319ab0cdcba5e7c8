// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package datapath

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"routertrap/internal/wire"
)

func buildIPv4UDPFrame(srcIP, dstIP uint32, srcPort, dstPort uint16, payloadLen int) []byte {
	frame := make([]byte, ethHeaderLen+minIPv4Header+8+payloadLen)
	binary.BigEndian.PutUint16(frame[12:14], ethTypeIPv4)

	ip := frame[ethHeaderLen:]
	ip[0] = 0x45 // version 4, IHL 5
	binary.BigEndian.PutUint16(ip[2:4], uint16(minIPv4Header+8+payloadLen))
	ip[9] = protoUDP
	binary.BigEndian.PutUint32(ip[12:16], srcIP)
	binary.BigEndian.PutUint32(ip[16:20], dstIP)

	udp := ip[minIPv4Header:]
	binary.BigEndian.PutUint16(udp[0:2], srcPort)
	binary.BigEndian.PutUint16(udp[2:4], dstPort)

	return frame
}

func TestClassifyTagsKnownProtocol(t *testing.T) {
	blocks := NewBlockMap(16, nil)
	stats := NewStatsMap()
	events := NewEventChannel(4)
	c := NewClassifier(blocks, stats, events)

	frame := buildIPv4UDPFrame(0x0A000001, 0x0A000002, 40000, 123, 40)
	v := c.Classify(frame, 1000)
	require.Equal(t, wire.VerdictPass, v)

	ev := <-events.C()
	require.Equal(t, wire.ProtocolNTP, ev.Tag)
	require.Equal(t, uint32(0x0A000001), ev.SrcIP)
	require.Equal(t, uint64(1), stats.Get(wire.StatIndexFor(wire.ProtocolNTP)))
}

func TestClassifyDropsBlockedSource(t *testing.T) {
	blocks := NewBlockMap(16, nil)
	stats := NewStatsMap()
	events := NewEventChannel(4)
	c := NewClassifier(blocks, stats, events)

	blocks.Insert(0x0A000001, 9999999999, wire.BlockReasonManual)

	frame := buildIPv4UDPFrame(0x0A000001, 0x0A000002, 40000, 123, 40)
	v := c.Classify(frame, 1000)
	require.Equal(t, wire.VerdictDrop, v)
	require.Equal(t, uint64(1), stats.Get(wire.StatBlockedPackets))
	// A dropped packet never reaches userspace as an event, and its
	// protocol counter stays untouched.
	require.Empty(t, events.C())
	require.Equal(t, uint64(0), stats.Get(wire.StatIndexFor(wire.ProtocolNTP)))
}

func TestClassifyUnknownPortPassesWithoutEvent(t *testing.T) {
	stats := NewStatsMap()
	events := NewEventChannel(4)
	c := NewClassifier(NewBlockMap(16, nil), stats, events)

	frame := buildIPv4UDPFrame(0x0A000001, 0x0A000002, 40000, 9999, 40)
	v := c.Classify(frame, 1000)
	require.Equal(t, wire.VerdictPass, v)
	require.Empty(t, events.C())
}

func TestClassifyFailsOpenOnShortFrame(t *testing.T) {
	c := NewClassifier(nil, nil, nil)
	v := c.Classify([]byte{0x00, 0x01, 0x02}, 1000)
	require.Equal(t, wire.VerdictPass, v)
}

func TestClassifyFailsOpenOnTruncatedIP(t *testing.T) {
	c := NewClassifier(nil, nil, nil)
	frame := make([]byte, ethHeaderLen+10)
	binary.BigEndian.PutUint16(frame[12:14], ethTypeIPv4)
	frame[ethHeaderLen] = 0x45
	v := c.Classify(frame, 1000)
	require.Equal(t, wire.VerdictPass, v)
}

func TestClassifyIgnoresNonIPv4(t *testing.T) {
	c := NewClassifier(nil, nil, nil)
	frame := make([]byte, ethHeaderLen+minIPv4Header)
	binary.BigEndian.PutUint16(frame[12:14], 0x86DD) // IPv6
	v := c.Classify(frame, 1000)
	require.Equal(t, wire.VerdictPass, v)
}
