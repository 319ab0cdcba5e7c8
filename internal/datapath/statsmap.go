// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package datapath

import "sync/atomic"

// statsMapSize covers the reserved aggregate slot plus one slot per
// protocol tag; wire.ProtocolTag never exceeds this in practice, but
// Increment guards out-of-range indices rather than panicking.
const statsMapSize = 256

// StatsMap is the userspace mirror of a fixed-size eBPF array map of
// per-slot packet counters, indexed by wire.StatBlockedPackets /
// wire.StatIndexFor.
type StatsMap struct {
	counters [statsMapSize]uint64
}

// NewStatsMap returns a zeroed StatsMap.
func NewStatsMap() *StatsMap {
	return &StatsMap{}
}

// Increment atomically bumps the counter at index by one. An
// out-of-range index is a no-op: the data path never panics on a
// counter it can't place.
func (s *StatsMap) Increment(index uint32) {
	if index >= statsMapSize {
		return
	}
	atomic.AddUint64(&s.counters[index], 1)
}

// Get reads the counter at index.
func (s *StatsMap) Get(index uint32) uint64 {
	if index >= statsMapSize {
		return 0
	}
	return atomic.LoadUint64(&s.counters[index])
}

// Snapshot copies every counter into a plain map keyed by index, for
// reporting/metrics export.
func (s *StatsMap) Snapshot() map[uint32]uint64 {
	out := make(map[uint32]uint64)
	for i := range s.counters {
		if v := atomic.LoadUint64(&s.counters[i]); v != 0 {
			out[uint32(i)] = v
		}
	}
	return out
}
