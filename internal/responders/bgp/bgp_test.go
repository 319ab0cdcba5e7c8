// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bgp

import (
	"encoding/binary"
	"io"
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildOpenHasMarkerAndCorrectLength(t *testing.T) {
	s := &Service{asn: 65001, routerID: netip.MustParseAddr("10.0.0.1")}
	msg := s.buildOpen()

	for _, b := range msg[0:16] {
		require.Equal(t, byte(0xFF), b)
	}
	require.Equal(t, byte(msgOpen), msg[18])
	require.Equal(t, len(msg), int(binary.BigEndian.Uint16(msg[16:18])))
	require.Equal(t, byte(version4), msg[19])
}

func TestBuildKeepaliveIsHeaderOnly(t *testing.T) {
	msg := buildKeepalive()
	require.Len(t, msg, headerSize)
	require.Equal(t, byte(msgKeepalive), msg[18])
}

func TestHandshakeOpenThenKeepalive(t *testing.T) {
	s := &Service{asn: 65001, routerID: netip.MustParseAddr("192.168.1.1")}
	server, client := net.Pipe()
	defer client.Close()

	go s.handle(server)

	// The decoy speaks first: a 29-byte OPEN (19 header + 10 body).
	open := make([]byte, 29)
	_, err := io.ReadFull(client, open)
	require.NoError(t, err)
	require.Equal(t, byte(msgOpen), open[18])
	require.Equal(t, byte(version4), open[19])
	require.Equal(t, uint16(65001), binary.BigEndian.Uint16(open[20:22]))
	require.Equal(t, uint16(180), binary.BigEndian.Uint16(open[22:24]))
	require.Equal(t, []byte{192, 168, 1, 1}, open[24:28])
	require.Equal(t, byte(0), open[28]) // no optional parameters

	// Peer OPEN draws a KEEPALIVE.
	peerOpen := (&Service{asn: 65002, routerID: netip.MustParseAddr("10.0.0.2")}).buildOpen()
	_, err = client.Write(peerOpen)
	require.NoError(t, err)

	keepalive := make([]byte, headerSize)
	_, err = io.ReadFull(client, keepalive)
	require.NoError(t, err)
	require.Equal(t, byte(msgKeepalive), keepalive[18])
}
