// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package datapath

import (
	"sync"

	"routertrap/internal/clock"
	"routertrap/internal/wire"
)

// BlockMap is the userspace-side mirror of a BLOCKED_IPS eBPF hash map:
// capacity-bounded, presence-only on the read side the classifier uses.
//
// Expiry policy: entries are NOT checked for expiry by Contains. The real
// routertrap-ebpf/src/main.rs XDP program blocks unconditionally on
// presence with no expiry check in the data path at all, and this
// implementation preserves that fail-open-on-read-path simplicity
// deliberately — expiry is enforced exclusively by the background
// Sweep, called periodically by the detection controller (see
// internal/detection). This is the "userspace sweeper" policy the design
// allows as an alternative to inline data-path expiry checks.
type BlockMap struct {
	mu       sync.RWMutex
	entries  map[uint32]wire.BlockEntry
	capacity int
	clk      clock.Clock
}

// NewBlockMap creates a BlockMap bounded to capacity entries.
func NewBlockMap(capacity int, clk clock.Clock) *BlockMap {
	if clk == nil {
		clk = clock.Default
	}
	return &BlockMap{
		entries:  make(map[uint32]wire.BlockEntry),
		capacity: capacity,
		clk:      clk,
	}
}

// Contains reports whether ip currently has a (possibly expired) block
// entry. The data path never treats an expired-but-unswept entry as
// unblocked: that is precisely the policy tradeoff of a userspace sweeper.
func (b *BlockMap) Contains(ip uint32) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.entries[ip]
	return ok
}

// Insert adds or extends a block entry. Extending an existing entry never
// decreases its expiry: a fresh, shorter-duration insert cannot shorten an
// attacker's existing block. Insert on a brand new key fails once the map
// is at capacity; existing entries are unaffected by a failed insert.
func (b *BlockMap) Insert(ip uint32, expiresAtUnix int64, reason wire.BlockReason) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.entries[ip]; ok {
		if expiresAtUnix > existing.ExpiresAtUnix {
			existing.ExpiresAtUnix = expiresAtUnix
		}
		if reason != wire.BlockReasonNone {
			existing.Reason = reason
		}
		b.entries[ip] = existing
		return true
	}

	if len(b.entries) >= b.capacity {
		return false
	}

	b.entries[ip] = wire.BlockEntry{ExpiresAtUnix: expiresAtUnix, Reason: reason}
	return true
}

// Remove deletes an entry unconditionally (manual unblock).
func (b *BlockMap) Remove(ip uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, ip)
}

// Sweep removes every entry whose expiry has passed as of now, returning
// the count removed. This is the sole expiry-enforcement point.
func (b *BlockMap) Sweep(now int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for ip, entry := range b.entries {
		if entry.Expired(now) {
			delete(b.entries, ip)
			removed++
		}
	}
	return removed
}

// Len returns the current number of entries, expired or not.
func (b *BlockMap) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Lookup returns the entry for ip, if any.
func (b *BlockMap) Lookup(ip uint32) (wire.BlockEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[ip]
	return e, ok
}

// Snapshot returns a copy of every entry, for status reporting and feed
// emission. Callers never see the live map.
func (b *BlockMap) Snapshot() map[uint32]wire.BlockEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[uint32]wire.BlockEntry, len(b.entries))
	for ip, e := range b.entries {
		out[ip] = e
	}
	return out
}
