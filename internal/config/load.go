// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// LoadFile reads and parses a TOML config file over the default
// configuration, then validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses raw TOML bytes over the default configuration.
func LoadBytes(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse toml: %w", err)
	}
	normalize(cfg)
	if errs := Validate(cfg); errs.HasErrors() {
		return nil, errs
	}
	return cfg, nil
}

// normalize folds the short-form `port` key into each responder's listen
// address, so the rest of the code only ever deals in host:port strings.
func normalize(cfg *Config) {
	for _, rc := range []*ResponderConfig{
		&cfg.Protocols.BGP.ResponderConfig,
		&cfg.Protocols.DNS.ResponderConfig,
		&cfg.Protocols.NTP.ResponderConfig,
		&cfg.Protocols.SNMP.ResponderConfig,
		&cfg.Protocols.Memcached.ResponderConfig,
		&cfg.Protocols.SSDP.ResponderConfig,
		&cfg.Protocols.SSH.ResponderConfig,
		&cfg.Protocols.Telnet.ResponderConfig,
	} {
		if rc.Port != 0 {
			rc.Listen = fmt.Sprintf("0.0.0.0:%d", rc.Port)
		}
	}
}
