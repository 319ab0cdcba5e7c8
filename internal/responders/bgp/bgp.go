// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package bgp emulates a BGP speaker that completes an OPEN/KEEPALIVE
// handshake with anything that connects, so scanners looking for open
// port 179 get a session instead of a closed port.
package bgp

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/netip"

	"routertrap/internal/config"
	"routertrap/internal/detection"
	"routertrap/internal/logging"
	"routertrap/internal/profiler"
	"routertrap/internal/services"
	"routertrap/internal/wire"
)

const (
	headerSize = 19
	maxMsgSize = 4096
	version4   = 4

	msgOpen         = 1
	msgUpdate       = 2
	msgNotification = 3
	msgKeepalive    = 4
	msgRouteRefresh = 5
)

// sessionState follows the BGP FSM names; the decoy only ever moves
// forward through them and treats Established as absorbing until the
// peer closes or sends a NOTIFICATION.
type sessionState int

const (
	stateIdle sessionState = iota
	stateConnect
	stateActive
	stateOpenSent
	stateOpenConfirm
	stateEstablished
)

func (s sessionState) String() string {
	switch s {
	case stateConnect:
		return "Connect"
	case stateActive:
		return "Active"
	case stateOpenSent:
		return "OpenSent"
	case stateOpenConfirm:
		return "OpenConfirm"
	case stateEstablished:
		return "Established"
	default:
		return "Idle"
	}
}

// Service emulates a BGP peer. It implements services.Service.
type Service struct {
	cfg     config.ResponderConfig
	asn     uint16
	routerID netip.Addr
	prof    *profiler.Profiler
	det     *detection.Controller

	ln      net.Listener
	running bool
}

// New builds a BGP responder with the decoy router's ASN/router-id.
func New(cfg config.ResponderConfig, asn uint16, routerID netip.Addr, prof *profiler.Profiler, det *detection.Controller) *Service {
	return &Service{cfg: cfg, asn: asn, routerID: routerID, prof: prof, det: det}
}

func (s *Service) Name() string { return "bgp" }

func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("bgp: listen %s: %w", s.cfg.Listen, err)
	}
	s.ln = ln
	s.running = true
	logging.Info("bgp: listening", "addr", s.cfg.Listen)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.handle(conn)
		}
	}()
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.running = false
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *Service) Status() services.Status {
	return services.Status{Name: s.Name(), Running: s.running, Addr: s.cfg.Listen}
}

func (s *Service) Reload(cfg *config.Config) (bool, error) {
	changed := s.cfg.Listen != cfg.Protocols.BGP.Listen || s.cfg.Enabled != cfg.Protocols.BGP.Enabled
	s.cfg = cfg.Protocols.BGP.ResponderConfig
	s.asn = cfg.Protocols.BGP.ASN
	return changed, nil
}

func (s *Service) handle(conn net.Conn) {
	defer conn.Close()

	remote, _ := netip.ParseAddrPort(conn.RemoteAddr().String())
	addr := remote.Addr()
	logging.Info("bgp: connection", "peer", addr.String())

	state := stateConnect
	sawUpdate := false

	open := s.buildOpen()
	requestBytes := 0
	responseBytes := len(open)
	if _, err := conn.Write(open); err != nil {
		return
	}
	state = stateOpenSent

	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			break
		}
		requestBytes += headerSize

		msgType := header[18]
		msgLen := int(binary.BigEndian.Uint16(header[16:18]))
		// A length below the header size (or absurdly large) means the
		// peer is not speaking BGP framing; skip the message.
		if msgLen < headerSize {
			continue
		}
		if msgLen > maxMsgSize {
			if _, err := io.CopyN(io.Discard, conn, int64(msgLen-headerSize)); err != nil {
				break
			}
			continue
		}

		body := make([]byte, msgLen-headerSize)
		if _, err := io.ReadFull(conn, body); err != nil {
			break
		}
		requestBytes += len(body)

		switch msgType {
		case msgOpen:
			logOpen(addr, body)
			state = stateOpenConfirm
			keepalive := buildKeepalive()
			responseBytes += len(keepalive)
			if _, err := conn.Write(keepalive); err != nil {
				goto done
			}
			state = stateEstablished
			logging.Info("bgp: session established", "peer", addr.String(), "state", state.String())
		case msgKeepalive:
			keepalive := buildKeepalive()
			responseBytes += len(keepalive)
			if _, err := conn.Write(keepalive); err != nil {
				goto done
			}
		case msgUpdate:
			// A peer pushing routes at a decoy is a route-hijack probe.
			sawUpdate = true
			logging.Warn("bgp: UPDATE received", "peer", addr.String(), "bytes", len(body))
		case msgNotification:
			if len(body) >= 2 {
				logging.Warn("bgp: NOTIFICATION", "peer", addr.String(),
					"error_code", body[0], "error_subcode", body[1])
			}
			goto done
		case msgRouteRefresh:
			logging.Info("bgp: ROUTE-REFRESH received", "peer", addr.String())
		default:
			logging.Warn("bgp: unknown message type", "peer", addr.String(), "type", msgType)
		}
	}
done:
	if s.prof != nil {
		s.prof.Record(addr, wire.ProtocolBGP, requestBytes, responseBytes)
	}
	if s.det != nil {
		flag := ""
		if sawUpdate {
			flag = "bgp_update"
		}
		s.det.Observe(detection.Observation{Addr: addr, Protocol: wire.ProtocolBGP, Flag: flag})
	}
}

// logOpen records the peer's advertised identity from its OPEN body:
// version, ASN, hold time, router ID.
func logOpen(addr netip.Addr, body []byte) {
	if len(body) < 9 {
		logging.Info("bgp: OPEN received", "peer", addr.String())
		return
	}
	routerID := netip.AddrFrom4([4]byte(body[5:9]))
	logging.Info("bgp: OPEN received", "peer", addr.String(),
		"version", body[0],
		"asn", binary.BigEndian.Uint16(body[1:3]),
		"hold_time", binary.BigEndian.Uint16(body[3:5]),
		"router_id", routerID.String())
}

func (s *Service) buildOpen() []byte {
	msg := make([]byte, 0, 64)
	msg = append(msg, bytesOf(0xFF, 16)...)
	msg = append(msg, 0, 0) // length placeholder
	msg = append(msg, msgOpen, version4)

	asnBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(asnBytes, s.asn)
	msg = append(msg, asnBytes...)

	holdTime := make([]byte, 2)
	binary.BigEndian.PutUint16(holdTime, 180)
	msg = append(msg, holdTime...)

	rid := s.routerID
	if !rid.Is4() {
		rid = netip.AddrFrom4([4]byte{192, 168, 1, 1})
	}
	ridBytes := rid.As4()
	msg = append(msg, ridBytes[:]...)

	msg = append(msg, 0) // optional parameters length

	binary.BigEndian.PutUint16(msg[16:18], uint16(len(msg)))
	return msg
}

func buildKeepalive() []byte {
	msg := make([]byte, 0, headerSize)
	msg = append(msg, bytesOf(0xFF, 16)...)
	lenBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBytes, headerSize)
	msg = append(msg, lenBytes...)
	msg = append(msg, msgKeepalive)
	return msg
}

func bytesOf(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
