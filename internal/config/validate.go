// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single configuration validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors reports whether any validation errors were recorded.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate checks invariants that the TOML decoder itself can't enforce:
// ranges, vendor enums, and mutually-required fields.
func Validate(c *Config) ValidationErrors {
	var errs ValidationErrors

	if c.Datapath.BlockMapCapacity <= 0 {
		errs = append(errs, ValidationError{"datapath.block_map_capacity", "must be positive"})
	}
	if c.Datapath.EventChanCapacity <= 0 {
		errs = append(errs, ValidationError{"datapath.event_chan_capacity", "must be positive"})
	}

	if c.Detection.AmplificationRatioThreshold <= 0 {
		errs = append(errs, ValidationError{"detection.amplification_ratio_threshold", "must be positive"})
	}
	if c.Detection.MinRequestCount < 0 {
		errs = append(errs, ValidationError{"detection.min_request_count", "must not be negative"})
	}

	for field, vendor := range map[string]string{
		"protocols.ssh.default_router":    c.Protocols.SSH.DefaultRouter,
		"protocols.telnet.default_router": c.Protocols.Telnet.DefaultRouter,
	} {
		switch strings.ToLower(vendor) {
		case "cisco", "juniper", "junos":
		default:
			errs = append(errs, ValidationError{field, fmt.Sprintf("unknown vendor %q, want cisco or juniper", vendor)})
		}
	}

	switch strings.ToLower(c.Feeds.Format) {
	case "json", "stix", "misp":
	default:
		errs = append(errs, ValidationError{"feeds.format", fmt.Sprintf("unknown format %q", c.Feeds.Format)})
	}
	if strings.ToLower(c.Feeds.Format) != "json" && c.Feeds.Enabled {
		errs = append(errs, ValidationError{"feeds.format", "only json emission is implemented; stix/misp are accepted but not serialized"})
	}

	if c.Protocols.SNMP.Enabled && len(c.Protocols.SNMP.Communities) == 0 {
		errs = append(errs, ValidationError{"protocols.snmp.communities", "at least one community string is required"})
	}

	if c.Protocols.SSH.Enabled && c.Protocols.SSH.HostKeyPath == "" {
		errs = append(errs, ValidationError{"protocols.ssh.host_key_path", "required when protocols.ssh.enabled is true"})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{"logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level)})
	}

	return errs
}
