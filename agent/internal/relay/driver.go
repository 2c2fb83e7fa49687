// Package relay abstracts the physical relay board. The hub never sees this
// layer; it only sees the state snapshot echoed in heartbeats.
package relay

import (
	"fmt"
	"sort"
	"sync"

	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/config"
	"github.com/AndrewArto/laundropi-control-sub000/agent/internal/logger"
	"github.com/AndrewArto/laundropi-control-sub000/protocol"
)

// Driver is what the scheduler and the connection client drive relays
// through.
type Driver interface {
	Set(id int, on bool) error
	Snapshot() []protocol.RelayState
	Configs() []protocol.RelayConfig
}

// MemoryDriver tracks relay state in memory. On a real unit the Set call is
// where the GPIO write goes; everything above this type stays the same.
type MemoryDriver struct {
	mu     sync.Mutex
	states map[int]bool
	names  map[int]string
}

func NewMemoryDriver(defs []config.RelayDef) *MemoryDriver {
	d := &MemoryDriver{states: make(map[int]bool), names: make(map[int]string)}
	for _, def := range defs {
		d.states[def.ID] = false
		d.names[def.ID] = def.Name
	}
	return d
}

func (d *MemoryDriver) Set(id int, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.states[id]; !ok {
		return fmt.Errorf("relay %d not configured", id)
	}
	if d.states[id] != on {
		logger.Infof("relay %d -> %v", id, on)
	}
	d.states[id] = on
	return nil
}

func (d *MemoryDriver) Snapshot() []protocol.RelayState {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]protocol.RelayState, 0, len(d.states))
	for id, on := range d.states {
		state := protocol.RelayOff
		if on {
			state = protocol.RelayOn
		}
		out = append(out, protocol.RelayState{ID: id, State: state})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *MemoryDriver) Configs() []protocol.RelayConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]protocol.RelayConfig, 0, len(d.states))
	for id := range d.states {
		out = append(out, protocol.RelayConfig{ID: id, Name: d.names[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
