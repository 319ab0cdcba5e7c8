// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads and validates routertrap's TOML configuration file.
package config

import "time"

// Config is the root configuration tree, loaded once at startup and shared
// by reference across every service.
type Config struct {
	Honeypot  HoneypotConfig  `toml:"honeypot"`
	Logging   LoggingConfig   `toml:"logging"`
	Datapath  DatapathConfig  `toml:"datapath"`
	Detection DetectionConfig `toml:"detection"`
	Feeds     FeedConfig      `toml:"feeds"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Protocols ProtocolsConfig `toml:"protocols"`
}

// HoneypotConfig holds the decoy's identity: the interface the data path
// watches and the hostname every emulated surface advertises.
type HoneypotConfig struct {
	Interface string `toml:"interface"`
	Hostname  string `toml:"hostname"`
}

// LoggingConfig controls log level and the optional syslog mirror.
type LoggingConfig struct {
	Level  string       `toml:"level"`
	Syslog SyslogConfig `toml:"syslog"`
}

// SyslogConfig mirrors internal/logging.SyslogConfig with TOML tags; the
// loader translates it after parsing.
type SyslogConfig struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Protocol string `toml:"protocol"`
	Tag      string `toml:"tag"`
	Facility int    `toml:"facility"`
}

// DatapathConfig tunes the packet classifier and block/stats maps.
type DatapathConfig struct {
	BlockMapCapacity  int    `toml:"block_map_capacity"`
	EventChanCapacity int    `toml:"event_chan_capacity"`
	UseRealEBPF       bool   `toml:"use_real_ebpf"`
	ObjectPath        string `toml:"object_path"`
}

// DetectionConfig tunes the detection and mitigation controller.
type DetectionConfig struct {
	Enabled                     bool          `toml:"enabled"`
	AutoBlock                   bool          `toml:"auto_block"`
	AmplificationRatioThreshold float64       `toml:"amplification_ratio_threshold"`
	MinRequestCount             int           `toml:"min_request_count"`
	ScanProtocolThreshold       int           `toml:"scan_threshold"`
	BlockDuration               time.Duration `toml:"block_duration"`
	SweepInterval               time.Duration `toml:"sweep_interval"`
	ProfileRetention            time.Duration `toml:"profile_retention"`
	CrashThreshold              int           `toml:"crash_threshold"`
	CrashWindow                 time.Duration `toml:"crash_window"`
}

// FeedConfig controls threat-feed emission.
type FeedConfig struct {
	Enabled  bool          `toml:"enabled"`
	Format   string        `toml:"format"` // "json" (stix/misp accepted, not serialized)
	Path     string        `toml:"path"`
	Interval time.Duration `toml:"interval"`
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// ProtocolsConfig toggles each decoy surface and its listen address.
type ProtocolsConfig struct {
	BGP       BGPResponderConfig       `toml:"bgp"`
	DNS       DNSResponderConfig       `toml:"dns"`
	NTP       NTPResponderConfig       `toml:"ntp"`
	SNMP      SNMPResponderConfig      `toml:"snmp"`
	Memcached MemcachedResponderConfig `toml:"memcached"`
	SSDP      SSDPResponderConfig      `toml:"ssdp"`
	SSH       CLIServerConfig          `toml:"ssh"`
	Telnet    CLIServerConfig          `toml:"telnet"`
}

// ResponderConfig is the shared shape for every protocol responder. Port,
// when set, replaces Listen with 0.0.0.0:<port>; any host given in Listen
// is dropped (see normalize in load.go).
type ResponderConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port"`
	Listen  string `toml:"listen"`
}

// BGPResponderConfig adds the decoy router identity the BGP OPEN handshake
// advertises to peers.
type BGPResponderConfig struct {
	ResponderConfig
	ASN      uint16 `toml:"asn"`
	RouterID string `toml:"router_id"`
}

// DNSResponderConfig adds the recursion toggle: an ANY query only draws
// the full ten-record amplifying answer when recursion is allowed.
type DNSResponderConfig struct {
	ResponderConfig
	AllowRecursion bool `toml:"allow_recursion"`
}

// SNMPResponderConfig adds the community strings the decoy agent echoes
// back in its responses.
type SNMPResponderConfig struct {
	ResponderConfig
	Communities []string `toml:"communities"`
}

// SSDPResponderConfig adds the advertised UPnP device type.
type SSDPResponderConfig struct {
	ResponderConfig
	DeviceType string `toml:"device_type"`
}

// NTPResponderConfig adds the CVE-2013-5211 monlist toggle: disabled by
// default since it is the single highest-amplification-factor responder.
type NTPResponderConfig struct {
	ResponderConfig
	AllowMonlist bool `toml:"allow_monlist"`
}

// MemcachedResponderConfig adds the UDP-amplification toggle; exposing
// memcached over UDP at all is CVE-2018-1000115's vector.
type MemcachedResponderConfig struct {
	ResponderConfig
	UDPEnabled bool `toml:"udp_enabled"`
}

// CLIServerConfig is shared by the SSH and Telnet CLI front-ends.
// DefaultRouter picks which vendor shell greets the attacker.
type CLIServerConfig struct {
	ResponderConfig
	HostKeyPath   string `toml:"host_key_path"`
	DefaultRouter string `toml:"default_router"` // "cisco" or "juniper"
}

// Default returns a Config with sane, mostly-disabled defaults. Callers
// load a file over this baseline rather than requiring every field set.
func Default() *Config {
	return &Config{
		Honeypot: HoneypotConfig{
			Interface: "eth0",
			Hostname:  "edge-rtr01",
		},
		Logging: LoggingConfig{
			Level: "info",
			Syslog: SyslogConfig{
				Port:     514,
				Protocol: "udp",
				Tag:      "routertrap",
				Facility: 1,
			},
		},
		Datapath: DatapathConfig{
			BlockMapCapacity:  65536,
			EventChanCapacity: 4096,
		},
		Detection: DetectionConfig{
			Enabled:                     true,
			AutoBlock:                   true,
			AmplificationRatioThreshold: 10.0,
			MinRequestCount:             5,
			ScanProtocolThreshold:       4,
			BlockDuration:               1 * time.Hour,
			SweepInterval:               30 * time.Second,
			ProfileRetention:            24 * time.Hour,
			CrashThreshold:              3,
			CrashWindow:                 5 * time.Minute,
		},
		Feeds: FeedConfig{
			Format:   "json",
			Interval: 1 * time.Minute,
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9095",
		},
		Protocols: ProtocolsConfig{
			BGP: BGPResponderConfig{
				ResponderConfig: ResponderConfig{Listen: "0.0.0.0:179"},
				ASN:             65001,
				RouterID:        "192.168.1.1",
			},
			DNS: DNSResponderConfig{
				ResponderConfig: ResponderConfig{Listen: "0.0.0.0:53"},
				AllowRecursion:  true,
			},
			NTP: NTPResponderConfig{
				ResponderConfig: ResponderConfig{Listen: "0.0.0.0:123"},
			},
			SNMP: SNMPResponderConfig{
				ResponderConfig: ResponderConfig{Listen: "0.0.0.0:161"},
				Communities:     []string{"public", "private"},
			},
			Memcached: MemcachedResponderConfig{
				ResponderConfig: ResponderConfig{Listen: "0.0.0.0:11211"},
			},
			SSDP: SSDPResponderConfig{
				ResponderConfig: ResponderConfig{Listen: "0.0.0.0:1900"},
				DeviceType:      "urn:schemas-upnp-org:device:InternetGatewayDevice:1",
			},
			SSH: CLIServerConfig{
				ResponderConfig: ResponderConfig{Listen: "0.0.0.0:22"},
				DefaultRouter:   "cisco",
			},
			Telnet: CLIServerConfig{
				ResponderConfig: ResponderConfig{Listen: "0.0.0.0:23"},
				DefaultRouter:   "cisco",
			},
		},
	}
}

// Clone returns a shallow copy, enough for the copy-on-write convention
// Service.Reload expects: no service mutates the tree it is handed.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}
