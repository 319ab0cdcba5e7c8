// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package loader loads a compiled XDP object (BLOCKED_IPS hash map, STATS
// array map, and an xdp_classify program) via cilium/ebpf and attaches it
// to an interface. No compiled object ships with this repository (no C
// toolchain was available while building it — see DESIGN.md), so Attach
// always returns ErrNoObject in practice and callers fall back to the
// pure-Go internal/datapath classifier. The type exists so a deployment
// that does compile routertrap-ebpf/src/main.rs's Go equivalent with
// bpf2go only has to supply the .o file, not a new loader.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"
)

// ErrNoObject is returned by Attach when no compiled bytecode object was
// supplied, signalling the caller should fall back to the software path.
var ErrNoObject = errors.New("loader: no compiled eBPF object available")

// Loader owns a loaded collection's programs, maps, and attached links.
type Loader struct {
	mu         sync.Mutex
	collection *ebpf.Collection
	links      []link.Link
	loaded     bool
}

// New creates an unloaded Loader.
func New() *Loader {
	return &Loader{}
}

// Attach loads objectBytes (a compiled CollectionSpec) and attaches its
// "xdp_classify" program to iface. Returns ErrNoObject if objectBytes is
// empty, which is the expected, fail-open path in this repository.
func (l *Loader) Attach(objectBytes []byte, iface string) error {
	if len(objectBytes) == 0 {
		return ErrNoObject
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return fmt.Errorf("loader: already loaded")
	}

	if err := rlimit.RemoveMemlock(); err != nil {
		return fmt.Errorf("loader: remove memlock rlimit: %w", err)
	}

	spec, err := ebpf.LoadCollectionSpecFromReader(bytes.NewReader(objectBytes))
	if err != nil {
		return fmt.Errorf("loader: parse collection spec: %w", err)
	}

	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return fmt.Errorf("loader: create collection: %w", err)
	}

	prog, ok := coll.Programs["xdp_classify"]
	if !ok {
		coll.Close()
		return fmt.Errorf("loader: collection has no xdp_classify program")
	}

	ifaceObj, err := net.InterfaceByName(iface)
	if err != nil {
		coll.Close()
		return fmt.Errorf("loader: find interface %s: %w", iface, err)
	}

	lnk, err := link.AttachXDP(link.XDPOptions{Program: prog, Interface: ifaceObj.Index})
	if err != nil {
		coll.Close()
		return fmt.Errorf("loader: attach xdp to %s: %w", iface, err)
	}

	l.collection = coll
	l.links = append(l.links, lnk)
	l.loaded = true
	return nil
}

// BlockedIPs returns the real BLOCKED_IPS map, once attached.
func (l *Loader) BlockedIPs() (*ebpf.Map, error) {
	return l.mapByName("BLOCKED_IPS")
}

// Collection returns the loaded collection, for building a maps.Manager
// over it. Returns nil until Attach succeeds.
func (l *Loader) Collection() *ebpf.Collection {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.collection
}

// Stats returns the real STATS map, once attached.
func (l *Loader) Stats() (*ebpf.Map, error) {
	return l.mapByName("STATS")
}

func (l *Loader) mapByName(name string) (*ebpf.Map, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded {
		return nil, fmt.Errorf("loader: not loaded")
	}
	m, ok := l.collection.Maps[name]
	if !ok {
		return nil, fmt.Errorf("loader: map %s not found", name)
	}
	return m, nil
}

// IsLoaded reports whether a real object is currently attached.
func (l *Loader) IsLoaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// Close detaches every link and releases the collection.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, lnk := range l.links {
		if err := lnk.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if l.collection != nil {
		l.collection.Close()
	}
	l.loaded = false
	l.links = nil
	l.collection = nil
	return firstErr
}
