// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ssdp emulates a UPnP device answering SSDP M-SEARCH discovery
// requests with a flood of HTTP-in-UDP "200 OK" search responses, one per
// advertised service, to mimic the fan-out real UPnP gateways produce.
package ssdp

import (
	"context"
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

var extraServices = []string{
	"WANIPConnection:1",
	"WANPPPConnection:1",
	"Layer3Forwarding:1",
}

// Discovery scanners probe the mDNS and WS-Discovery ports with the same
// multicast-search shape SSDP uses, so the responder claims those too
// when they are free.
var siblingPorts = []int{5353, 3702}

// Service emulates an SSDP/UPnP responder over UDP.
type Service struct {
	cfg  config.SSDPResponderConfig
	prof *profiler.Profiler
	det  *detection.Controller

	conns   []net.PacketConn
	running bool
}

// New builds an SSDP responder.
func New(cfg config.SSDPResponderConfig, prof *profiler.Profiler, det *detection.Controller) *Service {
	return &Service{cfg: cfg, prof: prof, det: det}
}

func (s *Service) Name() string { return "ssdp" }

func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	conn, err := net.ListenPacket("udp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("ssdp: listen %s: %w", s.cfg.Listen, err)
	}
	s.conns = append(s.conns, conn)
	logging.Info("ssdp: listening", "addr", s.cfg.Listen)

	host := listenHost(s.cfg.Listen)
	for _, port := range siblingPorts {
		addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
		extra, err := net.ListenPacket("udp", addr)
		if err != nil {
			logging.Debug("ssdp: sibling port unavailable", "addr", addr, "err", err)
			continue
		}
		s.conns = append(s.conns, extra)
		logging.Info("ssdp: listening", "addr", addr)
	}

	s.running = true
	for _, c := range s.conns {
		go s.serve(c)
	}
	return nil
}

func listenHost(listen string) string {
	host, _, err := net.SplitHostPort(listen)
	if err != nil {
		return "0.0.0.0"
	}
	return host
}

func (s *Service) Stop(ctx context.Context) error {
	s.running = false
	var firstErr error
	for _, c := range s.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Service) Status() services.Status {
	return services.Status{Name: s.Name(), Running: s.running, Addr: s.cfg.Listen}
}

func (s *Service) Reload(cfg *config.Config) (bool, error) {
	changed := s.cfg.Listen != cfg.Protocols.SSDP.Listen || s.cfg.Enabled != cfg.Protocols.SSDP.Enabled
	s.cfg = cfg.Protocols.SSDP
	return changed, nil
}

func (s *Service) serve(conn net.PacketConn) {
	buf := make([]byte, 4096)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		go s.handle(conn, data, peer)
	}
}

func (s *Service) handle(conn net.PacketConn, data []byte, peer net.Addr) {
	addrPort, err := netip.ParseAddrPort(peer.String())
	if err != nil {
		return
	}
	addr := addrPort.Addr()

	request := string(data)

	switch {
	case strings.Contains(request, "M-SEARCH"):
		logging.Warn("ssdp: M-SEARCH received", "peer", addr.String())
		resp := buildMSearchResponse(s.deviceType())
		if _, err := conn.WriteTo([]byte(resp), peer); err != nil {
			return
		}
		logging.Info("ssdp: sent response", "peer", addr.String(), "factor", float64(len(resp))/float64(len(data)))

		if s.prof != nil {
			s.prof.Record(addr, wire.ProtocolSSDP, len(data), len(resp))
		}
		if s.det != nil {
			s.det.Observe(detection.Observation{Addr: addr, Protocol: wire.ProtocolSSDP, Flag: "ssdp_msearch"})
		}
	case strings.Contains(request, "NOTIFY"):
		logging.Debug("ssdp: NOTIFY received", "peer", addr.String())
	}
}

func discoveryReply(st string) string {
	return "HTTP/1.1 200 OK\r\n" +
		"CACHE-CONTROL: max-age=1800\r\n" +
		"EXT:\r\n" +
		"LOCATION: http://192.168.1.1:49152/description.xml\r\n" +
		"SERVER: Linux/3.14 UPnP/1.0 IpBridge/1.26.0\r\n" +
		"ST: " + st + "\r\n" +
		"USN: uuid:12345678-1234-1234-1234-123456789abc::" + st + "\r\n\r\n"
}

func (s *Service) deviceType() string {
	if s.cfg.DeviceType != "" {
		return s.cfg.DeviceType
	}
	return "urn:schemas-upnp-org:device:InternetGatewayDevice:1"
}

// buildMSearchResponse fans out one reply per advertised root device,
// gateway device, and service, mirroring a real UPnP stack's tendency to
// answer a single M-SEARCH with several discovery records.
func buildMSearchResponse(deviceType string) string {
	var b strings.Builder
	b.WriteString(discoveryReply("upnp:rootdevice"))
	b.WriteString(discoveryReply(deviceType))
	b.WriteString(discoveryReply("urn:schemas-upnp-org:device:WANDevice:1"))
	b.WriteString(discoveryReply("urn:schemas-upnp-org:device:WANConnectionDevice:1"))
	for _, svc := range extraServices {
		b.WriteString(discoveryReply("urn:schemas-upnp-org:service:" + svc))
	}
	return b.String()
}
