// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectProtocolMatchesPortTable(t *testing.T) {
	require.Equal(t, ProtocolBGP, DetectProtocol(6, 179))
	require.Equal(t, ProtocolSSH, DetectProtocol(6, 22))
	require.Equal(t, ProtocolDNS, DetectProtocol(17, 53))
	require.Equal(t, ProtocolNTP, DetectProtocol(17, 123))
	require.Equal(t, ProtocolSNMP, DetectProtocol(17, 161))
	require.Equal(t, ProtocolMemcached, DetectProtocol(17, 11211))
	require.Equal(t, ProtocolSSDP, DetectProtocol(17, 1900))
	require.Equal(t, ProtocolUnknown, DetectProtocol(6, 9999))
}

func TestPacketEventRoundTrip(t *testing.T) {
	ev := PacketEvent{
		SrcIP:             0xC0A80101,
		DstIP:             0xC0A80102,
		SrcPort:           53000,
		DstPort:           53,
		IPProto:           17,
		Tag:               ProtocolDNS,
		PacketSize:        512,
		Flags:             FlagPassed,
		TimestampUnixNano: 123456789,
	}

	buf, err := ev.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, buf, PacketEventSize)

	var got PacketEvent
	require.NoError(t, got.UnmarshalBinary(buf))
	require.Equal(t, ev, got)
}

func TestUnmarshalBinaryRejectsShortBuffer(t *testing.T) {
	var ev PacketEvent
	require.Error(t, ev.UnmarshalBinary(make([]byte, 4)))
}

func TestBlockEntryExpired(t *testing.T) {
	e := BlockEntry{ExpiresAtUnix: 1000, Reason: BlockReasonAmplification}
	require.False(t, e.Expired(999))
	require.True(t, e.Expired(1000))
	require.True(t, e.Expired(1001))
}
