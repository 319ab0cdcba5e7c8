// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dns

import (
	"context"
	"net"
	"testing"
	"time"

	miekgdns "github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"routertrap/internal/config"
)

func TestBuildSimpleResponseAnswersWithA(t *testing.T) {
	req := new(miekgdns.Msg)
	req.SetQuestion("example.com.", miekgdns.TypeA)

	s := &Service{}
	resp := s.buildSimpleResponse(req)

	require.True(t, resp.Response)
	require.Len(t, resp.Answer, 1)
	a, ok := resp.Answer[0].(*miekgdns.A)
	require.True(t, ok)
	require.Equal(t, "192.168.1.1", a.A.String())
}

func TestResponseFlagsAreResponseAuthoritative(t *testing.T) {
	req := new(miekgdns.Msg)
	req.SetQuestion("example.com.", miekgdns.TypeA)
	req.RecursionDesired = true
	req.Id = 0xBEEF

	s := &Service{}
	packed, err := s.buildSimpleResponse(req).Pack()
	require.NoError(t, err)

	// Transaction ID echoed, flags pinned to 0x8400.
	require.Equal(t, []byte{0xBE, 0xEF}, packed[0:2])
	require.Equal(t, []byte{0x84, 0x00}, packed[2:4])
}

func TestAnyQueryAmplificationOverUDP(t *testing.T) {
	s := New(config.DNSResponderConfig{
		ResponderConfig: config.ResponderConfig{Enabled: true, Listen: "127.0.0.1:0"},
		AllowRecursion:  true,
	}, nil, nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	client, err := net.Dial("udp", s.conn.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	q := new(miekgdns.Msg)
	q.SetQuestion("example.com.", miekgdns.TypeANY)
	q.RecursionDesired = true
	q.Id = 0x1234
	packed, err := q.Pack()
	require.NoError(t, err)
	_, err = client.Write(packed)
	require.NoError(t, err)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 4096)
	n, err := client.Read(buf)
	require.NoError(t, err)

	require.Greater(t, n, 250)
	require.Equal(t, packed[0:2], buf[0:2]) // transaction ID preserved

	var resp miekgdns.Msg
	require.NoError(t, resp.Unpack(buf[:n]))
	require.GreaterOrEqual(t, len(resp.Answer), 10)
}

func TestAnyQueryRecursionDisabledSendsNoResponse(t *testing.T) {
	s := New(config.DNSResponderConfig{
		ResponderConfig: config.ResponderConfig{Enabled: true, Listen: "127.0.0.1:0"},
		AllowRecursion:  false,
	}, nil, nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	client, err := net.Dial("udp", s.conn.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	q := new(miekgdns.Msg)
	q.SetQuestion("example.com.", miekgdns.TypeANY)
	packed, err := q.Pack()
	require.NoError(t, err)
	_, err = client.Write(packed)
	require.NoError(t, err)

	// The decoy goes quiet on ANY when recursion is off: the read must
	// time out with nothing on the wire.
	require.NoError(t, client.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	buf := make([]byte, 512)
	_, err = client.Read(buf)
	require.Error(t, err)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	require.True(t, netErr.Timeout())

	// An ordinary A query from the same client still gets its answer.
	a := new(miekgdns.Msg)
	a.SetQuestion("example.com.", miekgdns.TypeA)
	packed, err = a.Pack()
	require.NoError(t, err)
	_, err = client.Write(packed)
	require.NoError(t, err)
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := client.Read(buf)
	require.NoError(t, err)
	require.Greater(t, n, 12)
}

func TestBuildLargeResponseHasTenAlternatingRecords(t *testing.T) {
	req := new(miekgdns.Msg)
	req.SetQuestion("example.com.", miekgdns.TypeANY)

	s := &Service{}
	resp := s.buildLargeResponse(req)

	require.Len(t, resp.Answer, 10)
	for i, rr := range resp.Answer {
		if i%2 == 0 {
			require.IsType(t, &miekgdns.TXT{}, rr)
		} else {
			require.IsType(t, &miekgdns.MX{}, rr)
		}
	}
}
