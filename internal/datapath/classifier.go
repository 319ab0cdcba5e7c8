// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package datapath implements the packet classifier the real XDP program
// would run in-kernel: a bounded-step, allocation-free walk from Ethernet
// through IPv4 to the TCP/UDP port, a block-map lookup, and a tagged event
// emission. Any bounds-check failure fails open (PASS) rather than panics
// or drops legitimate traffic, matching the decoy's "never interfere with
// real routing" design principle.
package datapath

import (
	"encoding/binary"

	"routertrap/internal/metrics"
	"routertrap/internal/wire"
)

const (
	ethHeaderLen  = 14
	ethTypeIPv4   = 0x0800
	minIPv4Header = 20
	protoTCP      = 6
	protoUDP      = 17
)

// Classifier runs the classify step against a BlockMap and a StatsMap and
// emits a PacketEvent for every frame it passes whose port the table
// recognizes; dropped and unrecognized frames emit no event.
type Classifier struct {
	blocks  *BlockMap
	stats   *StatsMap
	events  *EventChannel
	metrics *metrics.Registry
}

// NewClassifier wires a classifier to the maps/channel it reports into.
func NewClassifier(blocks *BlockMap, stats *StatsMap, events *EventChannel) *Classifier {
	return &Classifier{blocks: blocks, stats: stats, events: events, metrics: metrics.Get()}
}

// Classify inspects a single raw Ethernet frame and returns the verdict.
// It never allocates on the hot path beyond the PacketEvent value itself,
// and never returns an error: anything it can't parse is PASS.
func (c *Classifier) Classify(frame []byte, nowUnixNano int64) wire.Verdict {
	tag, srcIP, dstIP, srcPort, dstPort, ipProto, ok := parseHeaders(frame)
	if !ok {
		// Fail open: malformed or non-IPv4/TCP/UDP traffic is never our
		// concern, and a parse bug must never cost the wire a packet.
		return wire.VerdictPass
	}

	if c.blocks != nil && c.blocks.Contains(srcIP) {
		if c.stats != nil {
			c.stats.Increment(wire.StatBlockedPackets)
		}
		if c.metrics != nil {
			c.metrics.PacketsTotal.WithLabelValues(tag.String(), wire.VerdictDrop.String()).Inc()
			c.metrics.PacketsDropped.WithLabelValues(tag.String()).Inc()
		}
		return wire.VerdictDrop
	}

	// Uninteresting traffic passes without an event: only frames the port
	// table recognizes are worth a userspace wakeup.
	if tag == wire.ProtocolUnknown {
		return wire.VerdictPass
	}

	if c.stats != nil {
		c.stats.Increment(wire.StatIndexFor(tag))
	}
	if c.metrics != nil {
		c.metrics.PacketsTotal.WithLabelValues(tag.String(), wire.VerdictPass.String()).Inc()
	}

	if c.events != nil {
		c.events.Emit(wire.PacketEvent{
			SrcIP:             srcIP,
			DstIP:             dstIP,
			SrcPort:           srcPort,
			DstPort:           dstPort,
			IPProto:           ipProto,
			Tag:               tag,
			PacketSize:        uint32(len(frame)),
			Flags:             wire.FlagPassed,
			TimestampUnixNano: uint64(nowUnixNano),
		})
	}

	return wire.VerdictPass
}

// parseHeaders walks Ethernet -> IPv4 -> TCP/UDP, returning ok=false the
// instant any bounds check would be violated. This mirrors the verifier-
// friendly, single-pass structure a real XDP program is required to use:
// no backward jumps, every access bounds-checked before it happens.
func parseHeaders(frame []byte) (tag wire.ProtocolTag, srcIP, dstIP uint32, srcPort, dstPort uint16, ipProto uint8, ok bool) {
	if len(frame) < ethHeaderLen {
		return
	}
	etherType := binary.BigEndian.Uint16(frame[12:14])
	if etherType != ethTypeIPv4 {
		return
	}

	ip := frame[ethHeaderLen:]
	if len(ip) < minIPv4Header {
		return
	}
	versionIHL := ip[0]
	if versionIHL>>4 != 4 {
		return
	}
	ihl := int(versionIHL&0x0f) * 4
	if ihl < minIPv4Header || len(ip) < ihl {
		return
	}
	totalLen := int(binary.BigEndian.Uint16(ip[2:4]))
	if totalLen < ihl || len(ip) < totalLen {
		return
	}

	ipProto = ip[9]
	srcIP = binary.BigEndian.Uint32(ip[12:16])
	dstIP = binary.BigEndian.Uint32(ip[16:20])

	l4 := ip[ihl:totalLen]

	switch ipProto {
	case protoTCP:
		if len(l4) < 4 {
			return
		}
		srcPort = binary.BigEndian.Uint16(l4[0:2])
		dstPort = binary.BigEndian.Uint16(l4[2:4])
	case protoUDP:
		if len(l4) < 4 {
			return
		}
		srcPort = binary.BigEndian.Uint16(l4[0:2])
		dstPort = binary.BigEndian.Uint16(l4[2:4])
	default:
		tag = wire.ProtocolUnknown
		ok = true
		return
	}

	tag = wire.DetectProtocol(ipProto, dstPort)
	ok = true
	return
}
