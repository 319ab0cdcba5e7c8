// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	errs := Validate(Default())
	require.False(t, errs.HasErrors(), errs.Error())
}

func TestLoadBytesOverridesDefaults(t *testing.T) {
	data := []byte(`
[honeypot]
interface = "eth1"
hostname = "core-rtr02"

[logging]
level = "debug"

[protocols.dns]
enabled = true
port = 5300

[protocols.ssh]
default_router = "juniper"
`)
	cfg, err := LoadBytes(data)
	require.NoError(t, err)
	require.Equal(t, "eth1", cfg.Honeypot.Interface)
	require.Equal(t, "core-rtr02", cfg.Honeypot.Hostname)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.True(t, cfg.Protocols.DNS.Enabled)
	require.Equal(t, "0.0.0.0:5300", cfg.Protocols.DNS.Listen)
	require.Equal(t, "juniper", cfg.Protocols.SSH.DefaultRouter)
	// Untouched defaults survive the partial override.
	require.Equal(t, 65536, cfg.Datapath.BlockMapCapacity)
	require.Equal(t, "0.0.0.0:123", cfg.Protocols.NTP.Listen)
}

func TestValidateRejectsUnknownVendor(t *testing.T) {
	cfg := Default()
	cfg.Protocols.SSH.DefaultRouter = "arista"
	errs := Validate(cfg)
	require.True(t, errs.HasErrors())
	require.Contains(t, errs.Error(), "default_router")
}

func TestValidateRequiresHostKeyWhenSSHEnabled(t *testing.T) {
	cfg := Default()
	cfg.Protocols.SSH.Enabled = true
	cfg.Protocols.SSH.HostKeyPath = ""
	errs := Validate(cfg)
	require.True(t, errs.HasErrors())
	require.Contains(t, errs.Error(), "host_key_path")
}

func TestValidateRequiresSNMPCommunity(t *testing.T) {
	cfg := Default()
	cfg.Protocols.SNMP.Enabled = true
	cfg.Protocols.SNMP.Communities = nil
	errs := Validate(cfg)
	require.True(t, errs.HasErrors())
	require.Contains(t, errs.Error(), "communities")
}
