// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"routertrap/internal/config"
	"routertrap/internal/logging"
	"routertrap/internal/services"
)

// Server exposes the Registry over HTTP for Prometheus scraping. It
// implements services.Service so cmd/routertrapd starts/stops it alongside
// every protocol responder.
type Server struct {
	cfg     *config.MetricsConfig
	srv     *http.Server
	running bool
}

// NewServer builds a metrics HTTP server bound to cfg.Listen.
func NewServer(cfg *config.MetricsConfig) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Name() string { return "metrics" }

// Start launches the HTTP listener in the background, matching the
// non-blocking Start() convention used by every other service.
func (s *Server) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Get().Gatherer(), promhttp.HandlerOpts{}))

	s.srv = &http.Server{Addr: s.cfg.Listen, Handler: mux}
	logging.Info("starting metrics server", "addr", s.cfg.Listen)
	s.running = true
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("metrics server error", "error", err)
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.running = false
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) Status() services.Status {
	return services.Status{Name: s.Name(), Running: s.running, Addr: s.cfg.Listen}
}

// Reload re-applies listen address changes by restarting the listener.
func (s *Server) Reload(cfg *config.Config) (bool, error) {
	changed := s.cfg.Listen != cfg.Metrics.Listen || s.cfg.Enabled != cfg.Metrics.Enabled
	*s.cfg = cfg.Metrics
	if changed {
		if err := s.Stop(context.Background()); err != nil {
			return false, fmt.Errorf("metrics: stop for reload: %w", err)
		}
		if err := s.Start(context.Background()); err != nil {
			return false, fmt.Errorf("metrics: restart after reload: %w", err)
		}
	}
	return changed, nil
}
