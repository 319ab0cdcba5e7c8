// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command routertrapd runs the decoy router: it binds every protocol
// responder, the CLI emulators, the detection controller, the threat
// feed, and the metrics exporter, then serves until signaled to stop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"routertrap/internal/cli"
	"routertrap/internal/clock"
	"routertrap/internal/config"
	"routertrap/internal/datapath"
	"routertrap/internal/dbsink"
	"routertrap/internal/detection"
	"routertrap/internal/ebpf/loader"
	"routertrap/internal/ebpf/maps"
	"routertrap/internal/feed"
	"routertrap/internal/logging"
	"routertrap/internal/metrics"
	"routertrap/internal/profiler"
	"routertrap/internal/responders/bgp"
	"routertrap/internal/responders/dns"
	"routertrap/internal/responders/memcached"
	"routertrap/internal/responders/ntp"
	"routertrap/internal/responders/snmp"
	"routertrap/internal/responders/ssdp"
	"routertrap/internal/services"
	"routertrap/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "routertrap.toml", "path to routertrap.toml")
	iface := flag.String("interface", "", "network interface the data path attaches to (overrides config)")
	verbose := flag.Bool("verbose", false, "log at debug level")
	flag.Parse()

	configSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			configSet = true
		}
	})

	cfg := config.Default()
	loaded, err := config.LoadFile(*configPath)
	switch {
	case err == nil:
		cfg = loaded
	case errors.Is(err, os.ErrNotExist) && !configSet:
		// The implicit default path is allowed to be absent; an explicitly
		// requested file is not.
		logging.Info("no config file, using defaults", "path", *configPath)
	default:
		log.Fatalf("routertrapd: %v", err)
	}

	if *iface != "" {
		cfg.Honeypot.Interface = *iface
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	logging.SetLevel(cfg.Logging.Level)
	if cfg.Logging.Syslog.Enabled {
		w, err := logging.NewSyslogWriter(logging.SyslogConfig(cfg.Logging.Syslog))
		if err != nil {
			log.Fatalf("routertrapd: syslog: %v", err)
		}
		logging.AddWriter(w)
	}

	stateDir := os.Getenv("ROUTERTRAP_STATE_DIR")
	if stateDir == "" {
		stateDir = "/var/lib/routertrap"
	}
	sup := supervisor.New(stateDir, cfg.Detection, clock.Default)
	if !supervisor.Interactive() && sup.SafeMode() {
		logging.Warn("too many recent crashes, starting in safe mode: detection auto-block disabled")
		cfg.Detection.AutoBlock = false
	}

	wasPanic := false
	defer func() {
		if r := recover(); r != nil {
			wasPanic = true
			logging.Error("recovered panic", "value", r)
		}
		if !supervisor.Interactive() {
			_ = sup.RecordExit(0, 0, wasPanic)
		}
		if wasPanic {
			os.Exit(1)
		}
	}()
	sup.ScheduleReset()

	if err := run(cfg, *configPath); err != nil {
		log.Fatalf("routertrapd: %v", err)
	}
}

func run(cfg *config.Config, configPath string) error {
	clk := clock.Default

	prof := profiler.New(clk)
	prof.SetPolicy(cfg.Detection.AmplificationRatioThreshold, cfg.Detection.MinRequestCount)
	blocks := datapath.NewBlockMap(cfg.Datapath.BlockMapCapacity, clk)
	stats := datapath.NewStatsMap()
	events := datapath.NewEventChannel(cfg.Datapath.EventChanCapacity)
	det := detection.NewController(cfg.Detection, blocks, prof, clk).WithEvents(events.C())

	if cfg.Datapath.UseRealEBPF {
		attachRealEBPF(cfg)
	}

	routerID, err := netip.ParseAddr(cfg.Protocols.BGP.RouterID)
	if err != nil {
		return fmt.Errorf("protocols.bgp.router_id: %w", err)
	}

	svcs := []services.Service{
		datapath.NewSniffer(cfg.Honeypot.Interface, datapath.NewClassifier(blocks, stats, events)),
		det,
		metrics.NewServer(&cfg.Metrics),
		bgp.New(cfg.Protocols.BGP.ResponderConfig, cfg.Protocols.BGP.ASN, routerID, prof, det),
		dns.New(cfg.Protocols.DNS, prof, det),
		ntp.New(cfg.Protocols.NTP.ResponderConfig, cfg.Protocols.NTP.AllowMonlist, prof, det),
		snmp.New(cfg.Protocols.SNMP, prof, det),
		memcached.New(cfg.Protocols.Memcached.ResponderConfig, cfg.Protocols.Memcached.UDPEnabled, prof, det),
		ssdp.New(cfg.Protocols.SSDP, prof, det),
		cli.NewSSHServer(cfg.Protocols.SSH, cfg.Honeypot.Hostname, prof, det),
		cli.NewTelnetServer(cfg.Protocols.Telnet, cfg.Honeypot.Hostname, prof, det),
		feed.New(cfg.Feeds, prof, blocks, dbsink.NopSink{}, clk),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, svc := range svcs {
		if err := svc.Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
		if st := svc.Status(); st.Running {
			logging.Info("service started", "name", st.Name, "addr", st.Addr)
		} else {
			logging.Debug("service disabled", "name", svc.Name())
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)

	for {
		select {
		case <-reload:
			reloadConfig(configPath, svcs)
			continue
		case <-stop:
		}
		break
	}
	logging.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	for i := len(svcs) - 1; i >= 0; i-- {
		if err := svcs[i].Stop(shutdownCtx); err != nil {
			logging.Error("service stop failed", "name", svcs[i].Name(), "err", err)
		}
	}
	events.Close()
	return nil
}

// reloadConfig re-reads configPath and offers the new config to every
// service's Reload, triggered by SIGHUP since routertrapd has no separate
// control-plane process to send that signal to.
func reloadConfig(configPath string, svcs []services.Service) {
	reg := metrics.Get()
	if configPath == "" {
		logging.Warn("config reload: no -config path, nothing to reload")
		reg.ConfigReload.WithLabelValues("skipped").Inc()
		return
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		logging.Error("config reload: load failed", "err", err)
		reg.ConfigReload.WithLabelValues("error").Inc()
		return
	}

	for _, svc := range svcs {
		restarted, err := svc.Reload(cfg)
		if err != nil {
			logging.Error("config reload: service reload failed", "name", svc.Name(), "err", err)
			continue
		}
		if restarted {
			logging.Info("config reload: service restarted", "name", svc.Name())
		}
	}
	logging.Info("config reload: applied", "path", configPath)
	reg.ConfigReload.WithLabelValues("applied").Inc()
}

func attachRealEBPF(cfg *config.Config) {
	if cfg.Datapath.ObjectPath == "" {
		logging.Warn("datapath.use_real_ebpf set but object_path empty, staying on software classifier")
		return
	}
	data, err := os.ReadFile(cfg.Datapath.ObjectPath)
	if err != nil {
		logging.Warn("reading eBPF object failed, staying on software classifier", "err", err)
		return
	}
	l := loader.New()
	if err := l.Attach(data, cfg.Honeypot.Interface); err != nil {
		logging.Warn("eBPF attach failed, staying on software classifier", "err", err)
		return
	}

	mgr := maps.NewManager(l.Collection())
	if blockedIPs, err := l.BlockedIPs(); err == nil {
		if err := mgr.RegisterMap("BLOCKED_IPS", blockedIPs); err != nil {
			logging.Warn("registering BLOCKED_IPS map failed", "err", err)
		}
	}
	if stats, err := l.Stats(); err == nil {
		if err := mgr.RegisterMap("STATS", stats); err != nil {
			logging.Warn("registering STATS map failed", "err", err)
		}
	}

	logging.Info("attached real XDP classifier", "interface", cfg.Honeypot.Interface)
}
