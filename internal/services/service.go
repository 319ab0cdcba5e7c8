// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package services defines the lifecycle contract shared by every
// long-lived routertrap component — the protocol responders, the CLI
// front-ends, the detection controller, the data-path sniffer, and the
// exporters — so cmd/routertrapd can start them uniformly and stop them
// in reverse dependency order on shutdown.
package services

import (
	"context"

	"routertrap/internal/config"
)

// Status is a point-in-time snapshot of one service, surfaced in startup
// logs and status reporting. Addr is the listen address (or equivalent
// attachment point, e.g. the sniffer's interface) when the service has
// one; components without a bound surface leave it empty.
type Status struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	Addr    string `json:"addr,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Service is the lifecycle every decoy surface implements. A disabled
// service's Start is a no-op returning nil, so the caller can hold one
// flat list regardless of which protocols the config enables.
type Service interface {
	// Name is the stable identifier used in logs and status output.
	Name() string

	// Start begins serving. It must not block; long-lived work runs in
	// goroutines the service owns until Stop.
	Start(ctx context.Context) error

	// Stop releases sockets and cancels the service's goroutines,
	// bounded by ctx's deadline.
	Stop(ctx context.Context) error

	// Reload applies a newly loaded configuration, reporting whether the
	// service restarted to pick it up.
	Reload(cfg *config.Config) (restarted bool, err error)

	// Status reports the service's current snapshot.
	Status() Status
}
