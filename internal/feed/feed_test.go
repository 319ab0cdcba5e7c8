// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package feed

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"routertrap/internal/clock"
	"routertrap/internal/config"
	"routertrap/internal/datapath"
	"routertrap/internal/profiler"
	"routertrap/internal/wire"
)

func TestBuildEnvelopeIncludesAttackersAndBlocks(t *testing.T) {
	fake := clock.NewFake(time.Unix(1000, 0))
	prof := profiler.New(fake)
	blocks := datapath.NewBlockMap(16, fake)

	addr := netip.MustParseAddr("203.0.113.5")
	prof.Record(addr, wire.ProtocolDNS, 10, 2000)
	blocks.Insert(0xCB007105, 2000, wire.BlockReasonAmplification)

	e := New(config.FeedConfig{}, prof, blocks, nil, fake)
	env := e.buildEnvelope()

	require.NotEmpty(t, env.ID)
	require.Len(t, env.Attackers, 1)
	require.Equal(t, "203.0.113.5", env.Attackers[0].Address)
	require.Len(t, env.Blocks, 1)
	require.Equal(t, "amplification", env.Blocks[0].Reason)
}

type recordingSink struct {
	records [][]byte
}

func (s *recordingSink) Write(id string, record []byte) error {
	s.records = append(s.records, record)
	return nil
}

func TestEmitWritesToSink(t *testing.T) {
	fake := clock.NewFake(time.Unix(1000, 0))
	sink := &recordingSink{}
	e := New(config.FeedConfig{}, profiler.New(fake), datapath.NewBlockMap(16, fake), sink, fake)

	require.NoError(t, e.emit())
	require.Len(t, sink.records, 1)
}
