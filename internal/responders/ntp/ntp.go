// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ntp emulates an NTP server that still answers the Mode 7
// private monlist command (CVE-2013-5211), one of the oldest and
// still-seen UDP amplification vectors.
package ntp

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"time"

	"routertrap/internal/config"
	"routertrap/internal/detection"
	"routertrap/internal/logging"
	"routertrap/internal/profiler"
	"routertrap/internal/services"
	"routertrap/internal/wire"
)

const (
	packetSize = 48

	modeClient = 3
	modeServer = 4

	reqMonGetlist = 42

	ntpEpochOffset = 2208988800
)

// Service emulates an NTP server, including the legacy monlist command.
type Service struct {
	cfg          config.ResponderConfig
	allowMonlist bool
	prof         *profiler.Profiler
	det          *detection.Controller

	conn    net.PacketConn
	running bool
}

// New builds an NTP responder. allowMonlist mirrors the original's
// protocols.ntp.allow_monlist toggle: when false, the attack is still
// detected and logged but no amplified response is sent.
func New(cfg config.ResponderConfig, allowMonlist bool, prof *profiler.Profiler, det *detection.Controller) *Service {
	return &Service{cfg: cfg, allowMonlist: allowMonlist, prof: prof, det: det}
}

func (s *Service) Name() string { return "ntp" }

func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	conn, err := net.ListenPacket("udp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("ntp: listen %s: %w", s.cfg.Listen, err)
	}
	s.conn = conn
	s.running = true
	logging.Info("ntp: listening", "addr", s.cfg.Listen)

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
	changed := s.cfg.Listen != cfg.Protocols.NTP.Listen || s.cfg.Enabled != cfg.Protocols.NTP.Enabled
	s.cfg = cfg.Protocols.NTP.ResponderConfig
	s.allowMonlist = cfg.Protocols.NTP.AllowMonlist
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
	if len(data) < 1 {
		return
	}

	addrPort, err := netip.ParseAddrPort(peer.String())
	if err != nil {
		return
	}
	addr := addrPort.Addr()

	mode := data[0] & 0x07

	if data[0] == 0x17 || data[0] == 0x1a {
		logging.Warn("ntp: monlist/private request detected", "peer", addr.String())
		flag := "ntp_monlist"

		responseBytes := 0
		if s.allowMonlist {
			resp := buildMonlistResponse()
			responseBytes = len(resp)
			if _, err := s.conn.WriteTo(resp, peer); err == nil {
				logging.Info("ntp: sent fake monlist response", "peer", addr.String(),
					"factor", float64(len(resp))/float64(len(data)))
			}
		}

		if s.prof != nil {
			s.prof.Record(addr, wire.ProtocolNTP, len(data), responseBytes)
		}
		if s.det != nil {
			s.det.Observe(detection.Observation{Addr: addr, Protocol: wire.ProtocolNTP, Flag: flag})
		}
		return
	}

	if mode == modeClient {
		resp := buildNTPResponse(data)
		if _, err := s.conn.WriteTo(resp, peer); err != nil {
			return
		}
		if s.prof != nil {
			s.prof.Record(addr, wire.ProtocolNTP, len(data), len(resp))
		}
		if s.det != nil {
			s.det.Observe(detection.Observation{Addr: addr, Protocol: wire.ProtocolNTP})
		}
	}
}

func buildNTPResponse(request []byte) []byte {
	resp := make([]byte, packetSize)

	resp[0] = (0 << 6) | (4 << 3) | modeServer
	resp[1] = 2    // stratum
	resp[2] = 6    // poll
	resp[3] = 0xEC // precision

	copy(resp[12:16], []byte("LOCL"))

	if len(request) >= packetSize {
		copy(resp[24:32], request[40:48])
	}

	ts := ntpTimestamp(time.Now())
	copy(resp[32:40], ts[:])
	copy(resp[40:48], ts[:])

	return resp
}

// buildMonlistResponse builds a fixed six-entry fake client list, matching
// the shape (and roughly the size) of the real monlist amplification
// payload historically abused against open NTP servers.
func buildMonlistResponse() []byte {
	resp := make([]byte, 0, 8+6*72)
	resp = append(resp, 0x1a, 0x00, reqMonGetlist, 0x00)

	count := make([]byte, 2)
	binary.BigEndian.PutUint16(count, 6)
	resp = append(resp, count...)
	size := make([]byte, 2)
	binary.BigEndian.PutUint16(size, 72)
	resp = append(resp, size...)

	for i := 0; i < 6; i++ {
		resp = append(resp, 192, 168, 1, byte(100+i))
		port := make([]byte, 2)
		binary.BigEndian.PutUint16(port, 123)
		resp = append(resp, port...)
		resp = append(resp, modeClient, 4)
		resp = append(resp, make([]byte, 64)...)
	}
	return resp
}

func ntpTimestamp(t time.Time) [8]byte {
	var out [8]byte
	secs := uint32(t.Unix() + ntpEpochOffset)
	frac := uint32((uint64(t.Nanosecond()) << 32) / 1_000_000_000)
	binary.BigEndian.PutUint32(out[0:4], secs)
	binary.BigEndian.PutUint32(out[4:8], frac)
	return out
}
