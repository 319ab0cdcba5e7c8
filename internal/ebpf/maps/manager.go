// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package maps provides type-safe wrappers over the real eBPF maps a
// loaded XDP object exposes, mirroring the roles of internal/datapath's
// BlockMap and StatsMap; the method signatures differ from the software
// maps'.
package maps

import (
	"fmt"
	"sync"
	"time"

	"github.com/cilium/ebpf"

	"routertrap/internal/wire"
)

// Manager tracks every map in a loaded collection by name.
type Manager struct {
	maps       map[string]*ManagedMap
	collection *ebpf.Collection
	mutex      sync.RWMutex
}

// ManagedMap wraps an eBPF map with metadata.
type ManagedMap struct {
	Name       string
	Map        *ebpf.Map
	Type       ebpf.MapType
	KeySize    uint32
	ValueSize  uint32
	MaxEntries uint32
	CreatedAt  time.Time
	mutex      sync.RWMutex
}

// NewManager wraps an already-loaded collection.
func NewManager(collection *ebpf.Collection) *Manager {
	return &Manager{
		maps:       make(map[string]*ManagedMap),
		collection: collection,
	}
}

// RegisterMap adopts a named map from the collection into the manager.
func (m *Manager) RegisterMap(name string, mapObj *ebpf.Map) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.maps[name]; exists {
		return fmt.Errorf("maps: %s already registered", name)
	}

	info, err := mapObj.Info()
	if err != nil {
		return fmt.Errorf("maps: info for %s: %w", name, err)
	}

	m.maps[name] = &ManagedMap{
		Name:       name,
		Map:        mapObj,
		KeySize:    uint32(info.KeySize),
		ValueSize:  uint32(info.ValueSize),
		MaxEntries: info.MaxEntries,
		Type:       info.Type,
		CreatedAt:  time.Now(),
	}
	return nil
}

// GetMap returns a registered map by name.
func (m *Manager) GetMap(name string) (*ManagedMap, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	mm, exists := m.maps[name]
	if !exists {
		return nil, fmt.Errorf("maps: %s not found", name)
	}
	return mm, nil
}

func (mm *ManagedMap) Update(key, value interface{}) error {
	mm.mutex.Lock()
	defer mm.mutex.Unlock()
	return mm.Map.Update(key, value, ebpf.UpdateAny)
}

func (mm *ManagedMap) Lookup(key, value interface{}) error {
	mm.mutex.RLock()
	defer mm.mutex.RUnlock()
	return mm.Map.Lookup(key, value)
}

func (mm *ManagedMap) Delete(key interface{}) error {
	mm.mutex.Lock()
	defer mm.mutex.Unlock()
	return mm.Map.Delete(key)
}

// BlockedIPsMap provides type-safe operations over the real BLOCKED_IPS
// hash map, keyed by source IPv4 (uint32, network byte order) and valued
// by wire.BlockEntry — the real-kernel counterpart of
// internal/datapath.BlockMap.
type BlockedIPsMap struct {
	*ManagedMap
}

// NewBlockedIPsMap adopts the BLOCKED_IPS map from the manager.
func (m *Manager) NewBlockedIPsMap(name string) (*BlockedIPsMap, error) {
	mm, err := m.GetMap(name)
	if err != nil {
		return nil, err
	}
	if mm.Type != ebpf.LRUHash && mm.Type != ebpf.Hash {
		return nil, fmt.Errorf("maps: %s must be a hash map, got %s", name, mm.Type)
	}
	return &BlockedIPsMap{ManagedMap: mm}, nil
}

func (b *BlockedIPsMap) Insert(ip uint32, entry wire.BlockEntry) error {
	return b.Update(&ip, &entry)
}

func (b *BlockedIPsMap) Lookup(ip uint32) (wire.BlockEntry, error) {
	var entry wire.BlockEntry
	err := b.ManagedMap.Lookup(&ip, &entry)
	return entry, err
}

func (b *BlockedIPsMap) Remove(ip uint32) error {
	return b.Delete(&ip)
}

// CounterMap provides type-safe operations over the real STATS array map.
type CounterMap struct {
	*ManagedMap
	perCPU bool
}

// NewCounterMap adopts the STATS map from the manager.
func (m *Manager) NewCounterMap(name string, perCPU bool) (*CounterMap, error) {
	mm, err := m.GetMap(name)
	if err != nil {
		return nil, err
	}
	if perCPU && mm.Type != ebpf.PerCPUArray {
		return nil, fmt.Errorf("maps: per-CPU counter map %s must be PerCPUArray", name)
	}
	if !perCPU && mm.Type != ebpf.Array {
		return nil, fmt.Errorf("maps: counter map %s must be Array", name)
	}
	return &CounterMap{ManagedMap: mm, perCPU: perCPU}, nil
}

func (cm *CounterMap) Increment(index uint32) error {
	if cm.perCPU {
		var values []uint64
		err := cm.Lookup(&index, &values)
		if err != nil && err != ebpf.ErrKeyNotExist {
			return err
		}
		if err == ebpf.ErrKeyNotExist {
			values = make([]uint64, cm.MaxEntries)
		}
		values[0]++
		return cm.Update(&index, values)
	}

	var value uint64
	err := cm.Lookup(&index, &value)
	if err != nil && err != ebpf.ErrKeyNotExist {
		return err
	}
	value++
	return cm.Update(&index, &value)
}

func (cm *CounterMap) GetCounter(index uint32) (uint64, error) {
	if cm.perCPU {
		var values []uint64
		if err := cm.Lookup(&index, &values); err != nil {
			return 0, err
		}
		var total uint64
		for _, v := range values {
			total += v
		}
		return total, nil
	}

	var value uint64
	err := cm.Lookup(&index, &value)
	return value, err
}
