// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package detection implements the detection and mitigation controller:
// it watches responder observations and profiler state, decides when a
// source has crossed from "being probed" to "actively abusing" the decoy,
// and — when auto-blocking is enabled — writes a block-map entry. A
// background sweep enforces expiry (see internal/datapath.BlockMap's
// doc comment for why the read path itself never checks it).
package detection

import (
	"context"
	"encoding/binary"
	"net/netip"
	"sync"
	"time"

	"routertrap/internal/clock"
	"routertrap/internal/config"
	"routertrap/internal/datapath"
	"routertrap/internal/logging"
	"routertrap/internal/metrics"
	"routertrap/internal/profiler"
	"routertrap/internal/services"
	"routertrap/internal/wire"
)

// Observation is reported by a responder after each exchange with a
// source, carrying the attack-signature flag it recognized (if any).
type Observation struct {
	Addr     netip.Addr
	Protocol wire.ProtocolTag
	Flag     string // e.g. "ntp_monlist", "memcached_amplification", ""
}

// Known exploit flags responders may report; a single occurrence of any
// of these is sufficient grounds to block regardless of amplification
// math.
var knownExploitFlags = map[string]struct{}{
	"ntp_monlist":              {},
	"memcached_amplification":  {},
	"snmp_getbulk":             {},
	"dns_any_query":            {},
	"dns_amplification":        {},
	"snmp_amplification":       {},
	"ssdp_msearch":             {},
}

// Controller is a services.Service that consumes observations and decides
// whether to write to the block map.
type Controller struct {
	cfg     config.DetectionConfig
	blocks  *datapath.BlockMap
	prof    *profiler.Profiler
	metrics *metrics.Registry
	clk     clock.Clock

	obsCh   chan Observation
	events  <-chan wire.PacketEvent
	cancel  context.CancelFunc
	running bool

	scanMu   sync.Mutex
	scanSeen map[netip.Addr]map[wire.ProtocolTag]int64
}

// NewController wires a Controller to the shared block map and profiler.
func NewController(cfg config.DetectionConfig, blocks *datapath.BlockMap, prof *profiler.Profiler, clk clock.Clock) *Controller {
	if clk == nil {
		clk = clock.Default
	}
	return &Controller{
		cfg:      cfg,
		blocks:   blocks,
		prof:     prof,
		metrics:  metrics.Get(),
		clk:      clk,
		obsCh:    make(chan Observation, 1024),
		scanSeen: make(map[netip.Addr]map[wire.ProtocolTag]int64),
	}
}

// WithEvents attaches the data-path event channel so the controller also
// tracks reconnaissance against ports with no dedicated responder (LDAP,
// mDNS, WS-Discovery, CharGen, QOTD — §9's "classifier events only" set).
// Must be called before Start; a nil channel (the default) simply means
// scan detection runs on responder Observations alone.
func (c *Controller) WithEvents(ch <-chan wire.PacketEvent) *Controller {
	c.events = ch
	return c
}

func (c *Controller) Name() string { return "detection" }

// Observe is called by responders after each exchange. It never blocks the
// responder: a full observation channel silently drops the observation,
// fail-open per §4.5/§7.
func (c *Controller) Observe(o Observation) {
	select {
	case c.obsCh <- o:
	default:
	}
}

// Start launches the observation-consuming loop and the block-map sweeper.
func (c *Controller) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true

	go c.consumeLoop(ctx)
	go c.sweepLoop(ctx)
	if c.events != nil {
		go c.consumeEventsLoop(ctx)
	}
	return nil
}

func (c *Controller) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	c.running = false
	return nil
}

func (c *Controller) Status() services.Status {
	return services.Status{Name: c.Name(), Running: c.running}
}

func (c *Controller) Reload(cfg *config.Config) (bool, error) {
	c.cfg = cfg.Detection
	return false, nil
}

func (c *Controller) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-c.obsCh:
			c.evaluate(o)
		}
	}
}

func (c *Controller) evaluate(o Observation) {
	if !c.cfg.Enabled {
		return
	}

	prof, ok := c.prof.Profile(o.Addr)
	if !ok {
		return
	}

	reason, flagged := c.classify(o, prof)
	if !flagged {
		return
	}

	if c.metrics != nil {
		c.metrics.BlockEvents.WithLabelValues(reason.String()).Inc()
	}

	c.block(o.Addr, reason)
}

// block writes a block-map entry for addr, fail-open on capacity exhaustion
// per §4.5/§7: log once and leave the source unmitigated rather than retry.
func (c *Controller) block(addr netip.Addr, reason wire.BlockReason) {
	if !c.cfg.AutoBlock {
		logging.Warn("detection: would block (auto_block disabled)", "addr", addr.String(), "reason", reason.String())
		return
	}

	ip, ok := ipv4Uint32(addr)
	if !ok {
		return
	}

	expiry := c.clk.Now().Add(c.cfg.BlockDuration).Unix()
	if !c.blocks.Insert(ip, expiry, reason) {
		logging.Warn("detection: block map at capacity, dropping block", "addr", addr.String())
		return
	}
	if c.metrics != nil {
		c.metrics.BlockMapSize.Set(float64(c.blocks.Len()))
	}
	logging.Info("detection: blocked source", "addr", addr.String(), "reason", reason.String())
}

// consumeEventsLoop watches classified packet events for reconnaissance
// against protocols that have no dedicated responder: a source touching
// scan_threshold distinct protocol tags (dropped/unknown traffic excluded)
// is treated as scanning even though no responder ever observed it.
func (c *Controller) consumeEventsLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			c.observeEvent(ev)
		case <-ticker.C:
			c.cleanupScanTracker()
		}
	}
}

func (c *Controller) observeEvent(ev wire.PacketEvent) {
	if !c.cfg.Enabled || ev.Tag == wire.ProtocolUnknown || ev.Flags&wire.FlagBlocked != 0 {
		return
	}
	if c.cfg.ScanProtocolThreshold <= 0 {
		return
	}

	var ipBytes [4]byte
	binary.BigEndian.PutUint32(ipBytes[:], ev.SrcIP)
	addr := netip.AddrFrom4(ipBytes)

	now := c.clk.Now().Unix()
	c.scanMu.Lock()
	tags, ok := c.scanSeen[addr]
	if !ok {
		tags = make(map[wire.ProtocolTag]int64)
		c.scanSeen[addr] = tags
	}
	tags[ev.Tag] = now
	distinct := len(tags)
	c.scanMu.Unlock()

	if distinct >= c.cfg.ScanProtocolThreshold {
		if c.metrics != nil {
			c.metrics.BlockEvents.WithLabelValues(wire.BlockReasonScan.String()).Inc()
		}
		c.block(addr, wire.BlockReasonScan)
	}
}

// cleanupScanTracker evicts per-source protocol sets that have not gained a
// new tag within the detection retention window, so a long-idle prober
// doesn't keep a stale entry alive forever.
func (c *Controller) cleanupScanTracker() {
	retention := c.cfg.BlockDuration
	if retention <= 0 {
		retention = time.Hour
	}
	cutoff := c.clk.Now().Add(-retention).Unix()

	c.scanMu.Lock()
	defer c.scanMu.Unlock()
	for addr, tags := range c.scanSeen {
		var newest int64
		for _, seen := range tags {
			if seen > newest {
				newest = seen
			}
		}
		if newest < cutoff {
			delete(c.scanSeen, addr)
		}
	}
}

// classify applies the §4.5 threshold policy: a named exploit flag blocks
// immediately; otherwise the profiler's own rule
// (amp_factor > threshold && request_count > min) applies; otherwise a
// source that has touched scan_protocol_threshold distinct protocols is
// treated as reconnaissance.
func (c *Controller) classify(o Observation, prof profiler.Profile) (wire.BlockReason, bool) {
	if _, known := knownExploitFlags[o.Flag]; known {
		return wire.BlockReasonKnownExploit, true
	}

	if prof.AmplificationFactor() > c.cfg.AmplificationRatioThreshold &&
		int(prof.RequestCount) > c.cfg.MinRequestCount {
		return wire.BlockReasonAmplification, true
	}

	if c.cfg.ScanProtocolThreshold > 0 && len(prof.ProtocolHistogram) >= c.cfg.ScanProtocolThreshold {
		return wire.BlockReasonScan, true
	}

	return wire.BlockReasonNone, false
}

func (c *Controller) sweepLoop(ctx context.Context) {
	interval := c.cfg.SweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := c.blocks.Sweep(c.clk.Now().Unix())
			if removed > 0 {
				logging.Debug("detection: swept expired blocks", "count", removed)
			}
			if c.metrics != nil {
				c.metrics.BlockMapSize.Set(float64(c.blocks.Len()))
			}
			retention := c.cfg.ProfileRetention
			if retention <= 0 {
				retention = 24 * time.Hour
			}
			if evicted := c.prof.Cleanup(retention); evicted > 0 {
				logging.Debug("detection: evicted stale profiles", "count", evicted)
			}
		}
	}
}

func ipv4Uint32(addr netip.Addr) (uint32, bool) {
	if !addr.Is4() {
		return 0, false
	}
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:]), true
}
