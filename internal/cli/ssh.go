// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cli

import (
	"bufio"
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	wishlog "github.com/charmbracelet/wish/logging"

	"routertrap/internal/config"
	"routertrap/internal/detection"
	"routertrap/internal/logging"
	"routertrap/internal/metrics"
	"routertrap/internal/profiler"
	"routertrap/internal/services"
	"routertrap/internal/wire"
)

// SSHServer emulates a router's SSH management plane. Every username and
// password is accepted; the point is to keep the connection, not gate it.
type SSHServer struct {
	cfg      config.CLIServerConfig
	hostname string
	prof     *profiler.Profiler
	det      *detection.Controller

	srv     *ssh.Server
	running bool
}

// NewSSHServer builds the SSH CLI front-end.
func NewSSHServer(cfg config.CLIServerConfig, hostname string, prof *profiler.Profiler, det *detection.Controller) *SSHServer {
	return &SSHServer{cfg: cfg, hostname: hostname, prof: prof, det: det}
}

func (s *SSHServer) Name() string { return "cli-ssh" }

func (s *SSHServer) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	if s.cfg.HostKeyPath == "" {
		return fmt.Errorf("cli-ssh: host_key_path is required")
	}

	srv, err := wish.NewServer(
		wish.WithAddress(s.cfg.Listen),
		wish.WithHostKeyPath(s.cfg.HostKeyPath),
		wish.WithPasswordAuth(func(ctx ssh.Context, password string) bool {
			logging.Info("cli-ssh: auth attempt", "peer", ctx.RemoteAddr().String(), "user", ctx.User())
			return true
		}),
		wish.WithMiddleware(
			wishlog.MiddlewareWithLogger(sshLogAdapter{}),
			s.shellMiddleware(),
		),
	)
	if err != nil {
		return fmt.Errorf("cli-ssh: %w", err)
	}

	s.srv = srv
	s.running = true
	logging.Info("cli-ssh: listening", "addr", s.cfg.Listen, "vendor", s.cfg.DefaultRouter)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != ssh.ErrServerClosed {
			logging.Error("cli-ssh: server error", "err", err)
		}
	}()
	return nil
}

func (s *SSHServer) Stop(ctx context.Context) error {
	s.running = false
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *SSHServer) Status() services.Status {
	return services.Status{Name: s.Name(), Running: s.running, Addr: s.cfg.Listen}
}

func (s *SSHServer) Reload(cfg *config.Config) (bool, error) {
	changed := s.cfg.Listen != cfg.Protocols.SSH.Listen || s.cfg.Enabled != cfg.Protocols.SSH.Enabled
	s.cfg = cfg.Protocols.SSH
	s.hostname = cfg.Honeypot.Hostname
	return changed, nil
}

func (s *SSHServer) shellMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			router := New(s.cfg.DefaultRouter, s.hostname)
			router.Authenticate(sess.User(), "")

			sessGauge := metrics.Get().CLISessions.WithLabelValues("ssh", s.cfg.DefaultRouter)
			sessGauge.Inc()
			defer sessGauge.Dec()

			requestBytes, responseBytes := 0, 0

			fmt.Fprint(sess, router.Banner())
			fmt.Fprint(sess, router.Prompt())
			responseBytes += len(router.Banner()) + len(router.Prompt())

			scanner := bufio.NewScanner(sess)
			for scanner.Scan() {
				line := scanner.Text()
				requestBytes += len(line)

				out := router.HandleCommand(line)
				responseBytes += len(out)
				fmt.Fprint(sess, out)

				if strings.TrimSpace(line) == "exit" || strings.TrimSpace(line) == "quit" || strings.TrimSpace(line) == "logout" {
					break
				}
				fmt.Fprint(sess, router.Prompt())
				responseBytes += len(router.Prompt())
			}

			s.recordSession(sess.RemoteAddr().String(), requestBytes, responseBytes)
			next(sess)
		}
	}
}

func (s *SSHServer) recordSession(remote string, requestBytes, responseBytes int) {
	addrPort, err := netip.ParseAddrPort(remote)
	if err != nil {
		return
	}
	addr := addrPort.Addr()
	if s.prof != nil {
		s.prof.Record(addr, wire.ProtocolSSH, requestBytes, responseBytes)
	}
	if s.det != nil {
		s.det.Observe(detection.Observation{Addr: addr, Protocol: wire.ProtocolSSH})
	}
}

type sshLogAdapter struct{}

func (sshLogAdapter) Printf(format string, args ...interface{}) {
	logging.Debug(fmt.Sprintf("[cli-ssh] "+format, args...))
}

func (sshLogAdapter) Write(p []byte) (int, error) {
	logging.Debug("[cli-ssh] " + string(p))
	return len(p), nil
}
