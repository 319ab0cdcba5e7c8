// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package datapath

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"routertrap/internal/config"
	"routertrap/internal/logging"
	"routertrap/internal/services"
)

// Sniffer is the software data path: an AF_PACKET socket bound to the
// configured interface feeding every frame through the Classifier. It
// stands in when no compiled XDP object is attached — the verdicts it
// produces update the stats map and event channel exactly like the real
// program would, though a software DROP cannot remove the packet from
// the kernel's own delivery path.
type Sniffer struct {
	iface string
	cls   *Classifier

	fd      int
	running bool
}

// NewSniffer builds a sniffer for iface feeding cls.
func NewSniffer(iface string, cls *Classifier) *Sniffer {
	return &Sniffer{iface: iface, cls: cls, fd: -1}
}

func (s *Sniffer) Name() string { return "datapath" }

// Start opens the AF_PACKET socket. Failure here is a data-path attach
// failure: the caller is expected to treat it as fatal.
func (s *Sniffer) Start(ctx context.Context) error {
	ifi, err := net.InterfaceByName(s.iface)
	if err != nil {
		return fmt.Errorf("datapath: interface %s: %w", s.iface, err)
	}

	proto := htons(unix.ETH_P_ALL)
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(proto))
	if err != nil {
		return fmt.Errorf("datapath: packet socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrLinklayer{Protocol: proto, Ifindex: ifi.Index}); err != nil {
		unix.Close(fd)
		return fmt.Errorf("datapath: bind %s: %w", s.iface, err)
	}

	s.fd = fd
	s.running = true
	logging.Info("datapath: software classifier attached", "interface", s.iface)

	go s.readLoop()
	return nil
}

func (s *Sniffer) readLoop() {
	buf := make([]byte, 65536)
	for {
		n, _, err := unix.Recvfrom(s.fd, buf, 0)
		if err != nil {
			if s.running {
				logging.Warn("datapath: read failed", "err", err)
			}
			return
		}
		if n <= 0 {
			continue
		}
		s.cls.Classify(buf[:n], time.Now().UnixNano())
	}
}

func (s *Sniffer) Stop(ctx context.Context) error {
	s.running = false
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}

func (s *Sniffer) Status() services.Status {
	return services.Status{Name: s.Name(), Running: s.running, Addr: s.iface}
}

func (s *Sniffer) Reload(cfg *config.Config) (bool, error) {
	// Re-binding to a different interface mid-run is not supported; the
	// change applies on the next restart.
	if cfg.Honeypot.Interface != s.iface {
		logging.Warn("datapath: interface change requires restart", "current", s.iface, "new", cfg.Honeypot.Interface)
	}
	return false, nil
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
