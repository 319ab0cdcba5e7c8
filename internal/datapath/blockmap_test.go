// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package datapath

import (
	"testing"

	"github.com/stretchr/testify/require"

	"routertrap/internal/wire"
)

func TestBlockMapCapacity(t *testing.T) {
	b := NewBlockMap(2, nil)
	require.True(t, b.Insert(1, 100, wire.BlockReasonManual))
	require.True(t, b.Insert(2, 100, wire.BlockReasonManual))
	require.False(t, b.Insert(3, 100, wire.BlockReasonManual))
	require.Equal(t, 2, b.Len())

	require.True(t, b.Contains(1))
	require.False(t, b.Contains(3))
}

func TestBlockMapInsertNeverShortensExpiry(t *testing.T) {
	b := NewBlockMap(4, nil)
	b.Insert(1, 500, wire.BlockReasonManual)
	b.Insert(1, 100, wire.BlockReasonManual) // shorter duration, must not win
	entry, ok := b.Lookup(1)
	require.True(t, ok)
	require.Equal(t, int64(500), entry.ExpiresAtUnix)
}

func TestBlockMapSweepRemovesExpiredOnly(t *testing.T) {
	b := NewBlockMap(4, nil)
	b.Insert(1, 100, wire.BlockReasonManual)
	b.Insert(2, 900, wire.BlockReasonManual)

	removed := b.Sweep(500)
	require.Equal(t, 1, removed)
	require.False(t, b.Contains(1))
	require.True(t, b.Contains(2))
}

func TestBlockMapContainsIgnoresExpiryUntilSwept(t *testing.T) {
	b := NewBlockMap(4, nil)
	b.Insert(1, 100, wire.BlockReasonManual)
	// Past expiry, but the data path's Contains check never consults
	// expiry directly — only Sweep does.
	require.True(t, b.Contains(1))
}
