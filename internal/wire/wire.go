// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package wire defines the fixed-layout structures shared across the
// data-path classifier, the userspace maps, and the protocol responders.
// Field order and widths are load-bearing: they mirror the layout a real
// XDP program would use for a BLOCKED_IPS/STATS map pair, so the software
// classifier and the (optional) compiled eBPF program agree on bytes.
package wire

import (
	"encoding/binary"
	"fmt"
)

// ProtocolTag identifies the decoy protocol a packet was classified as.
// Values match the port table a router-impersonating classifier uses and
// must stay numerically stable: responders and statistics both index by it.
type ProtocolTag uint8

const (
	ProtocolUnknown ProtocolTag = iota
	ProtocolBGP
	ProtocolNTP
	ProtocolDNS
	ProtocolSNMP
	ProtocolSSDP
	ProtocolMemcached
	ProtocolLDAP
	ProtocolCLDAP
	ProtocolMDNS
	ProtocolWSDiscovery
	ProtocolCharGen
	ProtocolQOTD
	ProtocolSSH
	ProtocolTelnet
)

func (p ProtocolTag) String() string {
	switch p {
	case ProtocolBGP:
		return "bgp"
	case ProtocolNTP:
		return "ntp"
	case ProtocolDNS:
		return "dns"
	case ProtocolSNMP:
		return "snmp"
	case ProtocolSSDP:
		return "ssdp"
	case ProtocolMemcached:
		return "memcached"
	case ProtocolLDAP:
		return "ldap"
	case ProtocolCLDAP:
		return "cldap"
	case ProtocolMDNS:
		return "mdns"
	case ProtocolWSDiscovery:
		return "ws-discovery"
	case ProtocolCharGen:
		return "chargen"
	case ProtocolQOTD:
		return "qotd"
	case ProtocolSSH:
		return "ssh"
	case ProtocolTelnet:
		return "telnet"
	default:
		return "unknown"
	}
}

// DetectProtocol maps an L4 protocol number and destination port to a
// ProtocolTag, mirroring the port table a decoy classifier uses to decide
// which responder (if any) should see the packet.
func DetectProtocol(ipProto uint8, dstPort uint16) ProtocolTag {
	switch ipProto {
	case 6: // TCP
		switch dstPort {
		case 179:
			return ProtocolBGP
		case 22:
			return ProtocolSSH
		case 23:
			return ProtocolTelnet
		}
	case 17: // UDP
		switch dstPort {
		case 53:
			return ProtocolDNS
		case 123:
			return ProtocolNTP
		case 161:
			return ProtocolSNMP
		case 389, 3268:
			return ProtocolLDAP
		case 1900:
			return ProtocolSSDP
		case 5353:
			return ProtocolMDNS
		case 3702:
			return ProtocolWSDiscovery
		case 19:
			return ProtocolCharGen
		case 17:
			return ProtocolQOTD
		case 11211:
			return ProtocolMemcached
		}
	}
	return ProtocolUnknown
}

// Statistics counter indices. Index 0 is the reserved blocked-packet
// aggregate; every other protocol counter lives at StatProtocolBase+tag.
const (
	StatBlockedPackets uint32 = 0
	StatProtocolBase   uint32 = 100
)

// StatIndexFor returns the counter slot a protocol tag increments.
func StatIndexFor(tag ProtocolTag) uint32 {
	return StatProtocolBase + uint32(tag)
}

// PacketEventSize is the fixed, wire-stable size of a PacketEvent.
const PacketEventSize = 4 + 4 + 2 + 2 + 1 + 1 + 4 + 4 + 8

// PacketEvent is emitted by the classifier for every packet it passes
// with a recognized protocol tag; dropped and untagged packets produce no
// event. The consumer (the detection controller) never blocks the emitter.
type PacketEvent struct {
	SrcIP             uint32
	DstIP             uint32
	SrcPort           uint16
	DstPort           uint16
	IPProto           uint8
	Tag               ProtocolTag
	PacketSize        uint32
	Flags             uint32
	TimestampUnixNano uint64
}

// Verdict flags set on PacketEvent.Flags.
const (
	FlagNone    uint32 = 0
	FlagBlocked uint32 = 1 << 0
	FlagPassed  uint32 = 1 << 1
)

// MarshalBinary renders the event in the big-endian layout the classifier
// and any real eBPF ring-buffer counterpart would agree on.
func (e PacketEvent) MarshalBinary() ([]byte, error) {
	buf := make([]byte, PacketEventSize)
	binary.BigEndian.PutUint32(buf[0:4], e.SrcIP)
	binary.BigEndian.PutUint32(buf[4:8], e.DstIP)
	binary.BigEndian.PutUint16(buf[8:10], e.SrcPort)
	binary.BigEndian.PutUint16(buf[10:12], e.DstPort)
	buf[12] = e.IPProto
	buf[13] = uint8(e.Tag)
	binary.BigEndian.PutUint32(buf[14:18], e.PacketSize)
	binary.BigEndian.PutUint32(buf[18:22], e.Flags)
	binary.BigEndian.PutUint64(buf[22:30], e.TimestampUnixNano)
	return buf, nil
}

// UnmarshalBinary is the inverse of MarshalBinary.
func (e *PacketEvent) UnmarshalBinary(buf []byte) error {
	if len(buf) < PacketEventSize {
		return fmt.Errorf("wire: short packet event, got %d want %d", len(buf), PacketEventSize)
	}
	e.SrcIP = binary.BigEndian.Uint32(buf[0:4])
	e.DstIP = binary.BigEndian.Uint32(buf[4:8])
	e.SrcPort = binary.BigEndian.Uint16(buf[8:10])
	e.DstPort = binary.BigEndian.Uint16(buf[10:12])
	e.IPProto = buf[12]
	e.Tag = ProtocolTag(buf[13])
	e.PacketSize = binary.BigEndian.Uint32(buf[14:18])
	e.Flags = binary.BigEndian.Uint32(buf[18:22])
	e.TimestampUnixNano = binary.BigEndian.Uint64(buf[22:30])
	return nil
}

// BlockReason records why a source was placed in the block map, surfaced
// in status output and the threat feed.
type BlockReason uint8

const (
	BlockReasonNone BlockReason = iota
	BlockReasonAmplification
	BlockReasonKnownExploit
	BlockReasonScan
	BlockReasonManual
)

func (r BlockReason) String() string {
	switch r {
	case BlockReasonAmplification:
		return "amplification"
	case BlockReasonKnownExploit:
		return "known_exploit"
	case BlockReasonScan:
		return "scan"
	case BlockReasonManual:
		return "manual"
	default:
		return "none"
	}
}

// BlockEntry is the value half of a block-map row, keyed by source IPv4.
type BlockEntry struct {
	ExpiresAtUnix int64
	Reason        BlockReason
}

// Expired reports whether the entry is stale as of now. The data path never
// calls this itself (see internal/datapath for the enforcement policy); it
// is used by the background sweeper and by status reporting.
func (e BlockEntry) Expired(nowUnix int64) bool {
	return nowUnix >= e.ExpiresAtUnix
}

// Verdict is the classifier's decision for a single packet.
type Verdict uint8

const (
	VerdictPass Verdict = iota
	VerdictDrop
)

func (v Verdict) String() string {
	if v == VerdictDrop {
		return "drop"
	}
	return "pass"
}
