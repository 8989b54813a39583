package controller

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/chaz8081/picoremote/internal/ble"
	"github.com/chaz8081/picoremote/internal/ble/sim"
)

// gatedAdapter wraps a sim.Adapter so tests can hold a connect or a write
// mid-flight, fail scans, or drop the link as soon as it is watched.
type gatedAdapter struct {
	*sim.Adapter

	// connectGate, when set, holds Connect after the link is up until closed.
	connectGate chan struct{}
	connecting  chan struct{}

	// writeGate, when set, holds every Write until closed.
	writeGate chan struct{}
	writing   chan struct{}

	// dropOnWatch fires the disconnect callback as soon as it is registered.
	dropOnWatch atomic.Bool

	mu        sync.Mutex
	failScans []error
	scanCalls int
}

func newGatedAdapter(devices ...sim.Device) *gatedAdapter {
	return &gatedAdapter{
		Adapter:    newSim(devices...),
		connecting: make(chan struct{}, 1),
		writing:    make(chan struct{}, 1),
	}
}

func (g *gatedAdapter) Scan(ctx context.Context, handler ble.ScanHandler) error {
	g.mu.Lock()
	g.scanCalls++
	if len(g.failScans) > 0 {
		err := g.failScans[0]
		g.failScans = g.failScans[1:]
		g.mu.Unlock()
		return err
	}
	g.mu.Unlock()
	return g.Adapter.Scan(ctx, handler)
}

func (g *gatedAdapter) scans() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scanCalls
}

func (g *gatedAdapter) Connect(ctx context.Context, id string) (ble.Connection, error) {
	conn, err := g.Adapter.Connect(ctx, id)
	if g.connectGate != nil {
		g.connecting <- struct{}{}
		<-g.connectGate
	}
	if err != nil {
		return nil, err
	}
	return &gatedConnection{Connection: conn, adapter: g}, nil
}

type gatedConnection struct {
	ble.Connection
	adapter *gatedAdapter
}

func (c *gatedConnection) DiscoverServices() ([]ble.Service, error) {
	svcs, err := c.Connection.DiscoverServices()
	if err != nil {
		return nil, err
	}
	out := make([]ble.Service, len(svcs))
	for i, s := range svcs {
		out[i] = &gatedService{Service: s, adapter: c.adapter}
	}
	return out, nil
}

func (c *gatedConnection) OnDisconnect(cb func()) {
	c.Connection.OnDisconnect(cb)
	if c.adapter.dropOnWatch.Load() {
		cb()
	}
}

type gatedService struct {
	ble.Service
	adapter *gatedAdapter
}

func (s *gatedService) DiscoverCharacteristics() ([]ble.Characteristic, error) {
	chars, err := s.Service.DiscoverCharacteristics()
	if err != nil {
		return nil, err
	}
	out := make([]ble.Characteristic, len(chars))
	for i, ch := range chars {
		out[i] = &gatedCharacteristic{Characteristic: ch, adapter: s.adapter}
	}
	return out, nil
}

type gatedCharacteristic struct {
	ble.Characteristic
	adapter *gatedAdapter
}

func (c *gatedCharacteristic) Write(data []byte) error {
	if c.adapter.writeGate != nil {
		c.adapter.writing <- struct{}{}
		<-c.adapter.writeGate
	}
	return c.Characteristic.Write(data)
}
