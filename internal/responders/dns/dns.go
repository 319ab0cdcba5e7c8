// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package dns emulates an open recursive resolver: any well-formed
// non-ANY query gets a response, and an ANY query (the classic
// amplification vector) gets a response an order of magnitude larger than
// the request when allow_recursion is on, and no response when it is off.
package dns

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/miekg/dns"

	"routertrap/internal/config"
	"routertrap/internal/detection"
	"routertrap/internal/logging"
	"routertrap/internal/profiler"
	"routertrap/internal/services"
	"routertrap/internal/wire"
)

const responderIP = "192.168.1.1"

// Service emulates an open DNS resolver over UDP.
type Service struct {
	cfg  config.DNSResponderConfig
	prof *profiler.Profiler
	det  *detection.Controller

	conn    net.PacketConn
	running bool
}

// New builds a DNS responder.
func New(cfg config.DNSResponderConfig, prof *profiler.Profiler, det *detection.Controller) *Service {
	return &Service{cfg: cfg, prof: prof, det: det}
}

func (s *Service) Name() string { return "dns" }

func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	conn, err := net.ListenPacket("udp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("dns: listen %s: %w", s.cfg.Listen, err)
	}
	s.conn = conn
	s.running = true
	logging.Info("dns: listening", "addr", s.cfg.Listen)

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
	changed := s.cfg.Listen != cfg.Protocols.DNS.Listen || s.cfg.Enabled != cfg.Protocols.DNS.Enabled
	s.cfg = cfg.Protocols.DNS
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
	if len(data) < 12 {
		return
	}

	addrPort, err := netip.ParseAddrPort(peer.String())
	if err != nil {
		return
	}
	addr := addrPort.Addr()

	var req dns.Msg
	if err := req.Unpack(data); err != nil {
		return
	}
	if req.Response {
		return
	}

	flag := ""
	if len(data) < 100 && req.RecursionDesired {
		logging.Warn("dns: amplification pattern suspected", "peer", addr.String(), "size", len(data))
		flag = "dns_amplification"
	}

	isAny := len(req.Question) > 0 && req.Question[0].Qtype == dns.TypeANY
	var resp *dns.Msg
	if isAny {
		logging.Warn("dns: ANY query", "peer", addr.String())
		if !s.cfg.AllowRecursion {
			// With recursion off the decoy goes quiet on ANY: no answer
			// at all, so it cannot be used as a reflector.
			return
		}
		flag = "dns_any_query"
		resp = s.buildLargeResponse(&req)
	} else {
		resp = s.buildSimpleResponse(&req)
	}

	out, err := resp.Pack()
	if err != nil {
		return
	}
	if _, err := s.conn.WriteTo(out, peer); err != nil {
		return
	}

	if isAny {
		logging.Info("dns: sent large response", "peer", addr.String(), "factor", float64(len(out))/float64(len(data)))
	}

	if s.prof != nil {
		s.prof.Record(addr, wire.ProtocolDNS, len(data), len(out))
	}
	if s.det != nil {
		s.det.Observe(detection.Observation{Addr: addr, Protocol: wire.ProtocolDNS, Flag: flag})
	}
}

// setReplyHeader copies the transaction ID and question over and pins the
// flags word to response+authoritative (0x8400), the exact header a
// misconfigured authoritative box would emit.
func setReplyHeader(resp, req *dns.Msg) {
	resp.SetReply(req)
	resp.Authoritative = true
	resp.RecursionDesired = false
	resp.RecursionAvailable = false
}

func (s *Service) buildSimpleResponse(req *dns.Msg) *dns.Msg {
	resp := new(dns.Msg)
	setReplyHeader(resp, req)

	if len(req.Question) > 0 {
		q := req.Question[0]
		rr := &dns.A{
			Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
			A:   net.ParseIP(responderIP),
		}
		resp.Answer = append(resp.Answer, rr)
	}
	return resp
}

// buildLargeResponse answers an ANY query with ten records alternating
// TXT and MX for a deliberately large amplification shape.
func (s *Service) buildLargeResponse(req *dns.Msg) *dns.Msg {
	resp := new(dns.Msg)
	setReplyHeader(resp, req)

	name := "example.com."
	if len(req.Question) > 0 {
		name = req.Question[0].Name
	}

	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			resp.Answer = append(resp.Answer, &dns.TXT{
				Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 60},
				Txt: []string{fmt.Sprintf("v=spf1 include:_spf.example.com include:_spf%d.example.com ~all", i)},
			})
		} else {
			resp.Answer = append(resp.Answer, &dns.MX{
				Hdr:        dns.RR_Header{Name: name, Rrtype: dns.TypeMX, Class: dns.ClassINET, Ttl: 60},
				Preference: 10,
				Mx:         fmt.Sprintf("mail%d.example.com.", i),
			})
		}
	}
	return resp
}
