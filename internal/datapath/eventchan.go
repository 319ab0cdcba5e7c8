// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package datapath

import (
	"sync/atomic"

	"routertrap/internal/metrics"
	"routertrap/internal/wire"
)

// EventChannel is a bounded, non-blocking fan-out point from the data path
// to its userspace consumer, the detection controller.
// Emit never blocks: a full channel increments a drop counter instead,
// since the data path must never gain a suspension point over event
// delivery.
type EventChannel struct {
	ch      chan wire.PacketEvent
	dropped uint64
	metrics *metrics.Registry
}

// NewEventChannel creates a channel with the given buffer capacity.
func NewEventChannel(capacity int) *EventChannel {
	return &EventChannel{ch: make(chan wire.PacketEvent, capacity), metrics: metrics.Get()}
}

// Emit attempts a non-blocking send; on backpressure it counts the drop
// and returns immediately.
func (e *EventChannel) Emit(ev wire.PacketEvent) {
	select {
	case e.ch <- ev:
	default:
		atomic.AddUint64(&e.dropped, 1)
		if e.metrics != nil {
			e.metrics.EventDrops.Inc()
		}
	}
}

// C returns the receive side for consumers to range over.
func (e *EventChannel) C() <-chan wire.PacketEvent {
	return e.ch
}

// Dropped returns the number of events lost to backpressure so far.
func (e *EventChannel) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}

// Close closes the channel. Callers must ensure no further Emit calls race
// with Close; routertrap only closes during supervisor shutdown, after
// every producer goroutine has already stopped.
func (e *EventChannel) Close() {
	close(e.ch)
}
