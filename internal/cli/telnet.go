// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cli

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"routertrap/internal/config"
	"routertrap/internal/detection"
	"routertrap/internal/logging"
	"routertrap/internal/metrics"
	"routertrap/internal/profiler"
	"routertrap/internal/services"
	"routertrap/internal/wire"
)

// Minimal telnet IAC negotiation: offer character-mode/echo and ignore
// whatever the client answers. Real scanners rarely bother negotiating
// back, and the shell works fine degraded to line mode either way.
const (
	iac  = 255
	will = 251
	wont = 252
	do   = 253
	dont = 254
	echo = 1
	sga  = 3
)

var telnetGreeting = []byte{iac, will, echo, iac, will, sga}

// TelnetServer emulates a router's telnet management plane.
type TelnetServer struct {
	cfg      config.CLIServerConfig
	hostname string
	prof     *profiler.Profiler
	det      *detection.Controller

	ln      net.Listener
	running bool
}

// NewTelnetServer builds the Telnet CLI front-end.
func NewTelnetServer(cfg config.CLIServerConfig, hostname string, prof *profiler.Profiler, det *detection.Controller) *TelnetServer {
	return &TelnetServer{cfg: cfg, hostname: hostname, prof: prof, det: det}
}

func (t *TelnetServer) Name() string { return "cli-telnet" }

func (t *TelnetServer) Start(ctx context.Context) error {
	if !t.cfg.Enabled {
		return nil
	}
	ln, err := net.Listen("tcp", t.cfg.Listen)
	if err != nil {
		return fmt.Errorf("cli-telnet: listen %s: %w", t.cfg.Listen, err)
	}
	t.ln = ln
	t.running = true
	logging.Info("cli-telnet: listening", "addr", t.cfg.Listen, "vendor", t.cfg.DefaultRouter)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go t.handle(conn)
		}
	}()
	return nil
}

func (t *TelnetServer) Stop(ctx context.Context) error {
	t.running = false
	if t.ln == nil {
		return nil
	}
	return t.ln.Close()
}

func (t *TelnetServer) Status() services.Status {
	return services.Status{Name: t.Name(), Running: t.running, Addr: t.cfg.Listen}
}

func (t *TelnetServer) Reload(cfg *config.Config) (bool, error) {
	changed := t.cfg.Listen != cfg.Protocols.Telnet.Listen || t.cfg.Enabled != cfg.Protocols.Telnet.Enabled
	t.cfg = cfg.Protocols.Telnet
	t.hostname = cfg.Honeypot.Hostname
	return changed, nil
}

func (t *TelnetServer) handle(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	logging.Info("cli-telnet: connection", "peer", remote)

	sessGauge := metrics.Get().CLISessions.WithLabelValues("telnet", t.cfg.DefaultRouter)
	sessGauge.Inc()
	defer sessGauge.Dec()

	requestBytes, responseBytes := 0, len(telnetGreeting)
	if _, err := conn.Write(telnetGreeting); err != nil {
		return
	}

	router := New(t.cfg.DefaultRouter, t.hostname)
	fmt.Fprint(conn, "\r\nUsername: ")
	responseBytes += len("\r\nUsername: ")

	reader := bufio.NewReader(conn)
	username, _ := readTelnetLine(reader)
	requestBytes += len(username)

	fmt.Fprint(conn, "Password: ")
	responseBytes += len("Password: ")
	password, _ := readTelnetLine(reader)
	requestBytes += len(password)

	router.Authenticate(strings.TrimSpace(username), strings.TrimSpace(password))

	fmt.Fprint(conn, router.Banner())
	fmt.Fprint(conn, router.Prompt())
	responseBytes += len(router.Banner()) + len(router.Prompt())

	for {
		line, err := readTelnetLine(reader)
		if err != nil {
			break
		}
		requestBytes += len(line)

		out := router.HandleCommand(line)
		responseBytes += len(out)
		fmt.Fprint(conn, out)

		trimmed := strings.TrimSpace(line)
		if trimmed == "exit" || trimmed == "quit" || trimmed == "logout" {
			break
		}
		fmt.Fprint(conn, router.Prompt())
		responseBytes += len(router.Prompt())
	}

	t.recordSession(remote, requestBytes, responseBytes)
}

// readTelnetLine strips IAC command sequences out of the stream before
// returning a line; real telnet clients interleave option negotiation
// with typed input.
func readTelnetLine(reader *bufio.Reader) (string, error) {
	var line []byte
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return string(line), err
		}
		if b == iac {
			cmd, err := reader.ReadByte()
			if err != nil {
				return string(line), err
			}
			if cmd == will || cmd == wont || cmd == do || cmd == dont {
				if _, err := reader.ReadByte(); err != nil {
					return string(line), err
				}
			}
			continue
		}
		if b == '\n' {
			return string(line), nil
		}
		if b == '\r' {
			continue
		}
		line = append(line, b)
	}
}

func (t *TelnetServer) recordSession(remote string, requestBytes, responseBytes int) {
	addrPort, err := netip.ParseAddrPort(remote)
	if err != nil {
		return
	}
	addr := addrPort.Addr()
	if t.prof != nil {
		t.prof.Record(addr, wire.ProtocolTelnet, requestBytes, responseBytes)
	}
	if t.det != nil {
		t.det.Observe(detection.Observation{Addr: addr, Protocol: wire.ProtocolTelnet})
	}
}
