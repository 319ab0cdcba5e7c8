// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ntp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"routertrap/internal/config"
)

func TestBuildMonlistResponseShape(t *testing.T) {
	resp := buildMonlistResponse()
	require.Equal(t, byte(0x1a), resp[0])
	require.Equal(t, byte(reqMonGetlist), resp[2])
	require.Equal(t, 8+6*72, len(resp))
}

func TestMonlistAmplificationOverUDP(t *testing.T) {
	s := New(config.ResponderConfig{Enabled: true, Listen: "127.0.0.1:0"}, true, nil, nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	client, err := net.Dial("udp", s.conn.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	req := make([]byte, 8)
	req[0] = 0x17
	req[2] = reqMonGetlist
	_, err = client.Write(req)
	require.NoError(t, err)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 2048)
	n, err := client.Read(buf)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 440)
	require.GreaterOrEqual(t, float64(n)/float64(len(req)), 50.0)
}

func TestBuildNTPResponseEchoesOriginateTimestamp(t *testing.T) {
	req := make([]byte, packetSize)
	req[0] = (0 << 6) | (4 << 3) | modeClient
	copy(req[40:48], []byte{1, 2, 3, 4, 5, 6, 7, 8})

	resp := buildNTPResponse(req)
	require.Len(t, resp, packetSize)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, resp[24:32])
	require.Equal(t, "LOCL", string(resp[12:16]))
}
