// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package feed periodically emits the current threat picture — top
// attackers by response-byte volume and active block-map entries — as
// newline-delimited JSON, so it can be tailed into a SIEM or ingested
// by a downstream dbsink.Sink.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"routertrap/internal/clock"
	"routertrap/internal/config"
	"routertrap/internal/datapath"
	"routertrap/internal/dbsink"
	"routertrap/internal/logging"
	"routertrap/internal/profiler"
	"routertrap/internal/services"
)

// Envelope is one emitted threat-feed record. Format "json" is the only
// one actually serialized today; "stix"/"misp" are accepted by config
// validation but not yet produced (see internal/config.Validate).
type Envelope struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Attackers []Attacker `json:"top_attackers"`
	Blocks    []Block    `json:"active_blocks"`
}

// Attacker summarizes one profiled source for the feed.
type Attacker struct {
	Address             string  `json:"address"`
	RequestCount        uint64  `json:"request_count"`
	TotalRequestBytes   uint64  `json:"total_request_bytes"`
	TotalResponseBytes  uint64  `json:"total_response_bytes"`
	AmplificationFactor float64 `json:"amplification_factor"`
	Protocols           []string `json:"protocols_contacted"`
}

// Block summarizes one block-map row for the feed.
type Block struct {
	Address       string `json:"address"`
	Reason        string `json:"reason"`
	ExpiresAtUnix int64  `json:"expires_at_unix"`
}

// Emitter is a services.Service that writes an Envelope to a file every
// configured interval.
type Emitter struct {
	cfg    config.FeedConfig
	prof   *profiler.Profiler
	blocks *datapath.BlockMap
	sink   dbsink.Sink
	clk    clock.Clock

	cancel  context.CancelFunc
	running bool
}

// New builds a threat-feed emitter. sink may be nil; a nil sink still
// writes the JSON file but skips the downstream forward.
func New(cfg config.FeedConfig, prof *profiler.Profiler, blocks *datapath.BlockMap, sink dbsink.Sink, clk clock.Clock) *Emitter {
	if clk == nil {
		clk = clock.Default
	}
	return &Emitter{cfg: cfg, prof: prof, blocks: blocks, sink: sink, clk: clk}
}

func (e *Emitter) Name() string { return "feed" }

func (e *Emitter) Start(ctx context.Context) error {
	if !e.cfg.Enabled {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true

	go e.loop(ctx)
	return nil
}

func (e *Emitter) Stop(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}
	e.running = false
	return nil
}

func (e *Emitter) Status() services.Status {
	return services.Status{Name: e.Name(), Running: e.running, Addr: e.cfg.Path}
}

func (e *Emitter) Reload(cfg *config.Config) (bool, error) {
	changed := e.cfg.Path != cfg.Feeds.Path || e.cfg.Interval != cfg.Feeds.Interval || e.cfg.Enabled != cfg.Feeds.Enabled
	e.cfg = cfg.Feeds
	return changed, nil
}

func (e *Emitter) loop(ctx context.Context) {
	interval := e.cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.emit(); err != nil {
				logging.Warn("feed: emit failed", "err", err)
			}
		}
	}
}

func (e *Emitter) emit() error {
	env := e.buildEnvelope()

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("feed: marshal: %w", err)
	}
	data = append(data, '\n')

	if e.cfg.Path != "" {
		f, err := os.OpenFile(e.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("feed: open %s: %w", e.cfg.Path, err)
		}
		defer f.Close()
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("feed: write: %w", err)
		}
	}

	if e.sink != nil {
		if err := e.sink.Write(env.ID, data); err != nil {
			logging.Warn("feed: sink write failed", "err", err)
		}
	}

	logging.Info("feed: emitted", "id", env.ID, "attackers", len(env.Attackers), "blocks", len(env.Blocks))
	return nil
}

func (e *Emitter) buildEnvelope() Envelope {
	env := Envelope{
		ID:        uuid.New().String(),
		Timestamp: e.clk.Now(),
	}

	if e.prof != nil {
		for _, p := range e.prof.TopAttackers(50) {
			protos := make([]string, 0, len(p.ProtocolHistogram))
			for tag := range p.ProtocolHistogram {
				protos = append(protos, tag.String())
			}
			env.Attackers = append(env.Attackers, Attacker{
				Address:             p.Addr.String(),
				RequestCount:        p.RequestCount,
				TotalRequestBytes:   p.TotalRequestBytes,
				TotalResponseBytes:  p.TotalResponseBytes,
				AmplificationFactor: p.AmplificationFactor(),
				Protocols:           protos,
			})
		}
	}

	if e.blocks != nil {
		for ip, entry := range e.blocks.Snapshot() {
			env.Blocks = append(env.Blocks, Block{
				Address:       ipString(ip),
				Reason:        entry.Reason.String(),
				ExpiresAtUnix: entry.ExpiresAtUnix,
			})
		}
	}

	return env
}

func ipString(ip uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(ip>>24), byte(ip>>16), byte(ip>>8), byte(ip))
}
