// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package memcached

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"routertrap/internal/config"
)

func TestBuildStatsResponseAmplifiesRequest(t *testing.T) {
	resp := buildStatsResponse(1, 1)
	require.Greater(t, len(resp), 1000)
	require.Contains(t, string(resp), "END\r\n")
}

func TestBuildStoredResponse(t *testing.T) {
	resp := buildStoredResponse(7, 0)
	require.Equal(t, "STORED\r\n", string(resp[8:]))
}

func TestStatsAmplificationOverUDP(t *testing.T) {
	s := New(config.ResponderConfig{Enabled: true, Listen: "127.0.0.1:0"}, true, nil, nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	client, err := net.Dial("udp", s.conn.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	// 8-byte framing header (request id 1, seq 0, total 1) + "stats\r\n".
	req := append([]byte{0, 1, 0, 0, 0, 1, 0, 0}, "stats\r\n"...)
	_, err = client.Write(req)
	require.NoError(t, err)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64*1024)
	n, err := client.Read(buf)
	require.NoError(t, err)
	resp := buf[:n]

	require.Greater(t, n, 1024)
	require.Equal(t, req[:4], resp[:4]) // request id and sequence echoed
	require.GreaterOrEqual(t, strings.Count(string(resp), "STAT "), 30)
	require.True(t, strings.HasSuffix(string(resp), "END\r\n"))
}
