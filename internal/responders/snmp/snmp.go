// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package snmp emulates an SNMPv2c agent that will answer a
// GetBulkRequest with a large multi-varbind response, the shape SNMP
// reflection/amplification abuses.
package snmp

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"routertrap/internal/config"
	"routertrap/internal/detection"
	"routertrap/internal/logging"
	"routertrap/internal/profiler"
	"routertrap/internal/services"
	"routertrap/internal/wire"
)

const getBulkPDUTag = 0xA5

var fakeOIDs = []struct {
	oid   string
	value string
}{
	{"1.3.6.1.2.1.1.1.0", "Cisco IOS Software, C3750 Software (C3750-IPSERVICESK9-M), Version 15.0(2)SE11"},
	{"1.3.6.1.2.1.1.2.0", "1.3.6.1.4.1.9.1.516"},
	{"1.3.6.1.2.1.1.3.0", "123456789"},
	{"1.3.6.1.2.1.1.4.0", "Network Administrator admin@example.com"},
	{"1.3.6.1.2.1.1.5.0", "router.example.com"},
	{"1.3.6.1.2.1.1.6.0", "Data Center Room 42 Rack 7"},
}

// Service emulates an SNMP agent over UDP.
type Service struct {
	cfg  config.SNMPResponderConfig
	prof *profiler.Profiler
	det  *detection.Controller

	conn    net.PacketConn
	running bool
}

// New builds an SNMP responder.
func New(cfg config.SNMPResponderConfig, prof *profiler.Profiler, det *detection.Controller) *Service {
	return &Service{cfg: cfg, prof: prof, det: det}
}

// community returns the string stamped into response packets: the first
// configured community, or "public" when none is set.
func (s *Service) community() string {
	if len(s.cfg.Communities) > 0 {
		return s.cfg.Communities[0]
	}
	return "public"
}

func (s *Service) Name() string { return "snmp" }

func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	conn, err := net.ListenPacket("udp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("snmp: listen %s: %w", s.cfg.Listen, err)
	}
	s.conn = conn
	s.running = true
	logging.Info("snmp: listening", "addr", s.cfg.Listen)

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
	changed := s.cfg.Listen != cfg.Protocols.SNMP.Listen || s.cfg.Enabled != cfg.Protocols.SNMP.Enabled
	s.cfg = cfg.Protocols.SNMP
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
	if len(data) < 10 {
		return
	}

	addrPort, err := netip.ParseAddrPort(peer.String())
	if err != nil {
		return
	}
	addr := addrPort.Addr()

	flag := ""
	if len(data) < 100 {
		logging.Warn("snmp: amplification pattern suspected", "peer", addr.String(), "size", len(data))
		flag = "snmp_amplification"
	}

	var resp []byte
	if containsGetBulk(data) {
		logging.Warn("snmp: GetBulkRequest received", "peer", addr.String())
		flag = "snmp_getbulk"
		resp = buildBulkResponse(s.community())
	} else {
		resp = buildSimpleResponse(s.community())
	}

	if _, err := s.conn.WriteTo(resp, peer); err != nil {
		return
	}
	if flag == "snmp_getbulk" {
		logging.Info("snmp: sent large response", "peer", addr.String(), "factor", float64(len(resp))/float64(len(data)))
	}

	if s.prof != nil {
		s.prof.Record(addr, wire.ProtocolSNMP, len(data), len(resp))
	}
	if s.det != nil {
		s.det.Observe(detection.Observation{Addr: addr, Protocol: wire.ProtocolSNMP, Flag: flag})
	}
}

func containsGetBulk(data []byte) bool {
	return bytes.IndexByte(data, getBulkPDUTag) >= 0
}

// ber wraps content in a tag-length-value triple: short-form length below
// 128, long-form 0x82 hi lo otherwise.
func ber(tag byte, content []byte) []byte {
	out := []byte{tag}
	if len(content) < 128 {
		out = append(out, byte(len(content)))
	} else {
		out = append(out, 0x82, byte(len(content)>>8), byte(len(content)&0xFF))
	}
	return append(out, content...)
}

func berInt(v byte) []byte {
	return []byte{0x02, 0x01, v}
}

func berVarbind(oid, value string) []byte {
	var inner []byte
	inner = append(inner, ber(0x06, encodeOID(oid))...)
	inner = append(inner, ber(0x04, []byte(value))...)
	return ber(0x30, inner)
}

func buildSimpleResponse(community string) []byte {
	var pdu []byte
	pdu = append(pdu, berInt(1)...) // request-id
	pdu = append(pdu, berInt(0)...) // error-status
	pdu = append(pdu, berInt(0)...) // error-index
	pdu = append(pdu, ber(0x30, berVarbind("1.3.6.1.2.1.1.1.0", "Cisco"))...)

	var msg []byte
	msg = append(msg, berInt(1)...) // version: SNMPv2c
	msg = append(msg, ber(0x04, []byte(community))...)
	msg = append(msg, ber(0xA2, pdu)...) // GetResponse PDU
	return ber(0x30, msg)
}

// buildBulkResponse builds an SNMP response with twenty varbinds cycling
// through a handful of fake router OIDs, the multi-varbind shape that
// makes GetBulkRequest attractive for amplification.
func buildBulkResponse(community string) []byte {
	var varbinds []byte
	for i := 0; i < 20; i++ {
		f := fakeOIDs[i%len(fakeOIDs)]
		varbinds = append(varbinds, berVarbind(f.oid, f.value)...)
	}

	var pdu []byte
	pdu = append(pdu, berInt(1)...)
	pdu = append(pdu, berInt(0)...)
	pdu = append(pdu, berInt(0)...)
	pdu = append(pdu, ber(0x30, varbinds)...)

	var msg []byte
	msg = append(msg, berInt(1)...)
	msg = append(msg, ber(0x04, []byte(community))...)
	msg = append(msg, ber(0xA2, pdu)...)
	return ber(0x30, msg)
}

// encodeOID is a minimal, non-fully-compliant BER OID encoder sufficient
// for the fixed dotted OIDs this responder emits.
func encodeOID(oidStr string) []byte {
	parts := strings.Split(oidStr, ".")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	if len(nums) < 2 {
		return []byte{0x2b}
	}

	encoded := []byte{byte(40*nums[0] + nums[1])}
	for _, n := range nums[2:] {
		if n < 128 {
			encoded = append(encoded, byte(n))
		} else {
			encoded = append(encoded, 0x80|byte(n>>7), byte(n&0x7F))
		}
	}
	return encoded
}
