// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package profiler tracks per-source amplification behavior: how much
// traffic each source sent versus how much each responder sent back. It
// is sharded like a typical concurrent cache (FNV-1a over the key, 256
// shards, one RWMutex per shard) so a burst against one attacker IP never
// serializes behind another's updates.
package profiler

import (
	"hash/fnv"
	"net/netip"
	"sync"
	"time"

	"routertrap/internal/clock"
	"routertrap/internal/metrics"
	"routertrap/internal/wire"
)

const shardCount = 256

// Profile is the amplification history for one source address.
type Profile struct {
	Addr               netip.Addr
	RequestCount       uint64
	TotalRequestBytes  uint64
	TotalResponseBytes uint64
	ProtocolHistogram  map[wire.ProtocolTag]uint64
	FirstSeen          time.Time
	LastSeen           time.Time
}

// AmplificationFactor returns total_response_bytes / total_request_bytes,
// recomputed from the running totals every call so it never accumulates
// floating point drift across repeated observations.
func (p *Profile) AmplificationFactor() float64 {
	if p.TotalRequestBytes == 0 {
		return 0
	}
	return float64(p.TotalResponseBytes) / float64(p.TotalRequestBytes)
}

type shard struct {
	mu    sync.RWMutex
	items map[netip.Addr]*Profile
}

// Profiler is the sharded amplification tracker.
type Profiler struct {
	shards  [shardCount]*shard
	clk     clock.Clock
	metrics *metrics.Registry

	ratioThreshold  float64
	minRequestCount uint64

	amplMu  sync.Mutex
	maxAmpl map[wire.ProtocolTag]float64
}

// New creates an empty Profiler. Record reports no amplification verdicts
// until SetPolicy is called with the detection thresholds.
func New(clk clock.Clock) *Profiler {
	if clk == nil {
		clk = clock.Default
	}
	p := &Profiler{clk: clk, metrics: metrics.Get(), maxAmpl: make(map[wire.ProtocolTag]float64)}
	for i := range p.shards {
		p.shards[i] = &shard{items: make(map[netip.Addr]*Profile)}
	}
	return p
}

// SetPolicy sets the thresholds Record applies when deciding whether an
// observation looks like an amplification attack. Call before serving;
// the fields are not synchronized for mid-flight mutation.
func (p *Profiler) SetPolicy(ratioThreshold float64, minRequestCount int) {
	p.ratioThreshold = ratioThreshold
	if minRequestCount > 0 {
		p.minRequestCount = uint64(minRequestCount)
	}
}

func (p *Profiler) getShard(addr netip.Addr) *shard {
	h := fnv.New32a()
	b := addr.As16()
	h.Write(b[:])
	return p.shards[h.Sum32()%shardCount]
}

// Record folds one request/response exchange into addr's profile and
// reports whether the source now looks like a likely amplification
// attacker: its rolling factor exceeds the policy ratio and it has made
// more than the policy's minimum number of requests. This is the single
// critical section per observation: callers batch nothing and call Record
// once per exchange from the responder goroutine that handled it.
func (p *Profiler) Record(addr netip.Addr, protocol wire.ProtocolTag, requestBytes, responseBytes int) bool {
	s := p.getShard(addr)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := p.clk.Now()
	prof, ok := s.items[addr]
	if !ok {
		prof = &Profile{Addr: addr, ProtocolHistogram: make(map[wire.ProtocolTag]uint64), FirstSeen: now}
		s.items[addr] = prof
	}

	prof.RequestCount++
	prof.TotalRequestBytes += uint64(requestBytes)
	prof.TotalResponseBytes += uint64(responseBytes)
	prof.ProtocolHistogram[protocol]++
	prof.LastSeen = now

	if p.metrics != nil {
		tag := protocol.String()
		p.metrics.BytesTotal.WithLabelValues(tag, "request").Add(float64(requestBytes))
		p.metrics.BytesTotal.WithLabelValues(tag, "response").Add(float64(responseBytes))
		p.recordAmplificationMax(protocol, prof.AmplificationFactor())
	}

	return p.ratioThreshold > 0 &&
		prof.AmplificationFactor() > p.ratioThreshold &&
		prof.RequestCount > p.minRequestCount
}

// recordAmplificationMax updates the exported gauge only when this
// observation's factor exceeds every prior one for the protocol, since
// Prometheus gauges have no built-in "set if greater" operation.
func (p *Profiler) recordAmplificationMax(protocol wire.ProtocolTag, factor float64) {
	p.amplMu.Lock()
	defer p.amplMu.Unlock()
	if factor <= p.maxAmpl[protocol] {
		return
	}
	p.maxAmpl[protocol] = factor
	p.metrics.AmplificationMax.WithLabelValues(protocol.String()).Set(factor)
}

// Profile returns a copy of addr's current profile, or ok=false if unseen.
func (p *Profiler) Profile(addr netip.Addr) (Profile, bool) {
	s := p.getShard(addr)
	s.mu.RLock()
	defer s.mu.RUnlock()

	prof, ok := s.items[addr]
	if !ok {
		return Profile{}, false
	}
	return cloneProfile(prof), true
}

func cloneProfile(p *Profile) Profile {
	cp := *p
	cp.ProtocolHistogram = make(map[wire.ProtocolTag]uint64, len(p.ProtocolHistogram))
	for k, v := range p.ProtocolHistogram {
		cp.ProtocolHistogram[k] = v
	}
	return cp
}

// TopAttackers returns up to n profiles sorted by descending total
// response bytes across every shard — the sources the decoy has spent
// the most reflection bandwidth on.
func (p *Profiler) TopAttackers(n int) []Profile {
	var all []Profile
	for _, s := range p.shards {
		s.mu.RLock()
		for _, prof := range s.items {
			all = append(all, cloneProfile(prof))
		}
		s.mu.RUnlock()
	}

	for i := 1; i < len(all); i++ {
		j := i
		for j > 0 && all[j-1].TotalResponseBytes < all[j].TotalResponseBytes {
			all[j-1], all[j] = all[j], all[j-1]
			j--
		}
	}

	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// Cleanup removes profiles not seen since maxAge ago.
func (p *Profiler) Cleanup(maxAge time.Duration) int {
	cutoff := p.clk.Now().Add(-maxAge)
	removed := 0
	for _, s := range p.shards {
		s.mu.Lock()
		for addr, prof := range s.items {
			if prof.LastSeen.Before(cutoff) {
				delete(s.items, addr)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}
