// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package memcached emulates a memcached server reachable over UDP,
// the transport at the center of CVE-2018-1000115: a few-byte "stats"
// or "get" command draws a response that can run to hundreds of
// kilobytes.
package memcached

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"routertrap/internal/config"
	"routertrap/internal/detection"
	"routertrap/internal/logging"
	"routertrap/internal/profiler"
	"routertrap/internal/services"
	"routertrap/internal/wire"
)

var statLines = []string{
	"STAT pid 12345\r\n",
	"STAT uptime 3600000\r\n",
	"STAT time 1699999999\r\n",
	"STAT version 1.4.15\r\n",
	"STAT pointer_size 64\r\n",
	"STAT curr_items 1000000\r\n",
	"STAT total_items 5000000\r\n",
	"STAT bytes 104857600\r\n",
	"STAT curr_connections 100\r\n",
	"STAT total_connections 50000\r\n",
	"STAT connection_structures 150\r\n",
	"STAT cmd_get 10000000\r\n",
	"STAT cmd_set 5000000\r\n",
	"STAT get_hits 9000000\r\n",
	"STAT get_misses 1000000\r\n",
	"STAT evictions 50000\r\n",
	"STAT bytes_read 1073741824\r\n",
	"STAT bytes_written 2147483648\r\n",
	"STAT limit_maxbytes 1073741824\r\n",
	"STAT threads 4\r\n",
}

// Service emulates a memcached UDP endpoint. Exposing this protocol over
// UDP at all is the vulnerability being modeled; udpEnabled mirrors the
// original's protocols.memcached.udp_enabled guard, off by default.
type Service struct {
	cfg        config.ResponderConfig
	udpEnabled bool
	prof       *profiler.Profiler
	det        *detection.Controller

	conn    net.PacketConn
	running bool
}

// New builds a memcached responder.
func New(cfg config.ResponderConfig, udpEnabled bool, prof *profiler.Profiler, det *detection.Controller) *Service {
	return &Service{cfg: cfg, udpEnabled: udpEnabled, prof: prof, det: det}
}

func (s *Service) Name() string { return "memcached" }

func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled || !s.udpEnabled {
		logging.Info("memcached: UDP disabled, not listening")
		return nil
	}
	conn, err := net.ListenPacket("udp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("memcached: listen %s: %w", s.cfg.Listen, err)
	}
	s.conn = conn
	s.running = true
	logging.Warn("memcached: listening on UDP (amplification vector enabled)", "addr", s.cfg.Listen)

	go s.serve()
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.running = false
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Service) Status() services.Status {
	return services.Status{Name: s.Name(), Running: s.running, Addr: s.cfg.Listen}
}

func (s *Service) Reload(cfg *config.Config) (bool, error) {
	changed := s.cfg.Listen != cfg.Protocols.Memcached.Listen || s.cfg.Enabled != cfg.Protocols.Memcached.Enabled
	s.cfg = cfg.Protocols.Memcached.ResponderConfig
	s.udpEnabled = cfg.Protocols.Memcached.UDPEnabled
	return changed, nil
}

func (s *Service) serve() {
	buf := make([]byte, 4096)
	for {
		n, peer, err := s.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		go s.handle(data, peer)
	}
}

func (s *Service) handle(data []byte, peer net.Addr) {
	// Framing header plus at least one command byte.
	if len(data) <= 8 {
		return
	}

	addrPort, err := netip.ParseAddrPort(peer.String())
	if err != nil {
		return
	}
	addr := addrPort.Addr()

	requestID := binary.BigEndian.Uint16(data[0:2])
	seqNum := binary.BigEndian.Uint16(data[2:4])
	command := strings.TrimSpace(string(data[8:]))

	var resp []byte
	flag := ""

	switch {
	case strings.HasPrefix(command, "stats"), strings.HasPrefix(command, "get"):
		logging.Warn("memcached: amplification command", "peer", addr.String(), "command", command)
		flag = "memcached_amplification"
		if s.udpEnabled {
			resp = buildStatsResponse(requestID, seqNum)
		}
	case strings.HasPrefix(command, "set"), strings.HasPrefix(command, "add"):
		resp = buildStoredResponse(requestID, seqNum)
	default:
		return
	}

	if len(resp) > 0 {
		if _, err := s.conn.WriteTo(resp, peer); err != nil {
			return
		}
		if flag == "memcached_amplification" {
			logging.Info("memcached: sent large response", "peer", addr.String(),
				"factor", float64(len(resp))/float64(len(data)))
		}
	}

	if s.prof != nil {
		s.prof.Record(addr, wire.ProtocolMemcached, len(data), len(resp))
	}
	if s.det != nil {
		s.det.Observe(detection.Observation{Addr: addr, Protocol: wire.ProtocolMemcached, Flag: flag})
	}
}

// buildStatsResponse repeats a fixed stat block thirty times, the same
// amplification-by-repetition the original memcached honeypot used.
func buildStatsResponse(requestID, seqNum uint16) []byte {
	var resp []byte
	header := make([]byte, 8)
	binary.BigEndian.PutUint16(header[0:2], requestID)
	binary.BigEndian.PutUint16(header[2:4], seqNum)
	binary.BigEndian.PutUint16(header[4:6], 1)
	resp = append(resp, header...)

	for i := 0; i < 30; i++ {
		for _, line := range statLines {
			resp = append(resp, line...)
		}
	}
	resp = append(resp, "END\r\n"...)
	return resp
}

func buildStoredResponse(requestID, seqNum uint16) []byte {
	header := make([]byte, 8)
	binary.BigEndian.PutUint16(header[0:2], requestID)
	binary.BigEndian.PutUint16(header[2:4], seqNum)
	binary.BigEndian.PutUint16(header[4:6], 1)
	return append(header, "STORED\r\n"...)
}
