// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes routertrap's Prometheus metric surface: packets
// classified/dropped/passed per decoy protocol, block-map occupancy,
// amplification factors observed per responder, and CLI session counts.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric routertrap exports: a single shared
// *prometheus.Registry wired through one struct of typed vectors rather
// than scattered package-level globals.
type Registry struct {
	PacketsTotal     *prometheus.CounterVec
	PacketsDropped   *prometheus.CounterVec
	BytesTotal       *prometheus.CounterVec
	BlockMapSize     prometheus.Gauge
	BlockEvents      *prometheus.CounterVec
	EventDrops       prometheus.Counter
	AmplificationMax *prometheus.GaugeVec
	CLISessions      *prometheus.GaugeVec
	ConfigReload     *prometheus.CounterVec

	reg *prometheus.Registry
}

var (
	once    sync.Once
	shared  *Registry
)

// Get returns the process-wide registry, constructing it on first use.
func Get() *Registry {
	once.Do(func() {
		shared = newRegistry()
	})
	return shared
}

func newRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		PacketsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routertrap",
			Name:      "packets_total",
			Help:      "Packets classified by the data path, labeled by protocol tag and verdict.",
		}, []string{"protocol", "verdict"}),
		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routertrap",
			Name:      "packets_dropped_total",
			Help:      "Packets dropped because their source was in the block map.",
		}, []string{"protocol"}),
		BytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routertrap",
			Name:      "bytes_total",
			Help:      "Bytes a responder received (request) or sent (response), labeled by protocol and direction.",
		}, []string{"protocol", "direction"}),
		BlockMapSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "routertrap",
			Name:      "block_map_entries",
			Help:      "Current number of entries in the block map.",
		}),
		BlockEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routertrap",
			Name:      "block_events_total",
			Help:      "Sources added to the block map, labeled by reason.",
		}, []string{"reason"}),
		EventDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "routertrap",
			Name:      "event_channel_drops_total",
			Help:      "Packet events dropped because the event channel was full.",
		}),
		AmplificationMax: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "routertrap",
			Name:      "amplification_factor_max",
			Help:      "Highest observed amplification factor per protocol since startup.",
		}, []string{"protocol"}),
		CLISessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "routertrap",
			Name:      "cli_sessions",
			Help:      "Active CLI emulator sessions, labeled by transport (ssh/telnet) and vendor.",
		}, []string{"transport", "vendor"}),
		ConfigReload: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "routertrap",
			Name:      "config_reload_total",
			Help:      "Config reload attempts, labeled by outcome.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		r.PacketsTotal,
		r.PacketsDropped,
		r.BytesTotal,
		r.BlockMapSize,
		r.BlockEvents,
		r.EventDrops,
		r.AmplificationMax,
		r.CLISessions,
		r.ConfigReload,
	)

	return r
}

// Gatherer exposes the underlying prometheus.Gatherer for an HTTP handler.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
