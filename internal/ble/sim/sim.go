// Package sim provides a simulated BLE adapter with one or more in-memory
// peripherals. It is intended for development and testing when the real
// device is not available.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chaz8081/picoremote/internal/ble"
)

// Device describes a simulated peripheral.
type Device struct {
	Name     string
	ID       string
	RSSI     int
	Services map[string][]string // service UUID -> characteristic UUIDs
}

// Adapter is an in-memory ble.Adapter. Every advertising device is reported
// once per Interval until the scan stops.
type Adapter struct {
	Interval time.Duration

	mu          sync.Mutex
	devices     []Device
	scanErr     error
	connectErr  error
	writeErr    error
	stop        chan struct{}
	conns       map[string]*connection
	writes      map[string][][]byte
	disconnects map[string]int
	releases    int
	released    bool
}

// Compile-time check that Adapter implements ble.Adapter.
var _ ble.Adapter = (*Adapter)(nil)

// New creates a simulated adapter advertising the given devices.
func New(devices ...Device) *Adapter {
	return &Adapter{
		Interval:    100 * time.Millisecond,
		devices:     devices,
		conns:       make(map[string]*connection),
		writes:      make(map[string][][]byte),
		disconnects: make(map[string]int),
	}
}

// FailScans makes every scan round report err before advertising.
func (a *Adapter) FailScans(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scanErr = err
}

// FailConnects makes Connect return err.
func (a *Adapter) FailConnects(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connectErr = err
}

// FailWrites makes every characteristic write return err.
func (a *Adapter) FailWrites(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writeErr = err
}

func (a *Adapter) Enable() error {
	slog.Info("SIM: adapter enabled", "devices", len(a.devices))
	return nil
}

func (a *Adapter) Scan(ctx context.Context, handler ble.ScanHandler) error {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		return errors.New("sim: adapter released")
	}
	if a.stop != nil {
		close(a.stop) // a new scan replaces the running one
	}
	stop := make(chan struct{})
	a.stop = stop
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		if a.stop == stop {
			a.stop = nil
		}
		a.mu.Unlock()
	}()

	ticker := time.NewTicker(a.Interval)
	defer ticker.Stop()

	for {
		a.mu.Lock()
		scanErr := a.scanErr
		devices := append([]Device(nil), a.devices...)
		a.mu.Unlock()

		if scanErr != nil {
			handler(ble.Advertisement{}, scanErr)
		}
		for _, d := range devices {
			select {
			case <-stop:
				return nil
			case <-ctx.Done():
				return nil
			default:
			}
			handler(ble.Advertisement{Name: d.Name, ID: d.ID, RSSI: d.RSSI}, nil)
		}

		select {
		case <-ticker.C:
		case <-stop:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (a *Adapter) StopScan() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stop != nil {
		close(a.stop)
		a.stop = nil
	}
	return nil
}

func (a *Adapter) Connect(ctx context.Context, id string) (ble.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return nil, errors.New("sim: adapter released")
	}
	if a.connectErr != nil {
		return nil, a.connectErr
	}
	for _, d := range a.devices {
		if d.ID != id {
			continue
		}
		conn := &connection{adapter: a, device: d}
		a.conns[id] = conn
		slog.Info("SIM: connected", "id", id)
		return conn, nil
	}
	return nil, fmt.Errorf("sim: device %s not in range", id)
}

func (a *Adapter) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releases++
	a.released = true
	if a.stop != nil {
		close(a.stop)
		a.stop = nil
	}
	return nil
}

// Drop simulates the peripheral going away: the connection's disconnect
// callback fires as it would for a real link loss.
func (a *Adapter) Drop(id string) {
	a.mu.Lock()
	conn, ok := a.conns[id]
	delete(a.conns, id)
	a.mu.Unlock()
	if ok {
		conn.fireDisconnect()
	}
}

// Writes returns a copy of every payload written to the characteristic.
func (a *Adapter) Writes(charUUID string) [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	src := a.writes[strings.ToLower(charUUID)]
	out := make([][]byte, len(src))
	copy(out, src)
	return out
}

// TotalWrites returns the number of writes across all characteristics.
func (a *Adapter) TotalWrites() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, w := range a.writes {
		n += len(w)
	}
	return n
}

// Disconnects returns how many times Disconnect was called for id.
func (a *Adapter) Disconnects(id string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disconnects[id]
}

// Releases returns how many times Release was called.
func (a *Adapter) Releases() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.releases
}

type connection struct {
	adapter *Adapter
	device  Device

	mu           sync.Mutex
	disconnectCb func()
}

func (c *connection) ID() string { return c.device.ID }

func (c *connection) DiscoverServices() ([]ble.Service, error) {
	out := make([]ble.Service, 0, len(c.device.Services))
	for svcUUID, chars := range c.device.Services {
		out = append(out, &service{adapter: c.adapter, uuid: strings.ToLower(svcUUID), chars: chars})
	}
	return out, nil
}

func (c *connection) Disconnect() error {
	a := c.adapter
	a.mu.Lock()
	a.disconnects[c.device.ID]++
	delete(a.conns, c.device.ID)
	a.mu.Unlock()
	slog.Info("SIM: disconnected", "id", c.device.ID)
	return nil
}

func (c *connection) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

func (c *connection) fireDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

type service struct {
	adapter *Adapter
	uuid    string
	chars   []string
}

func (s *service) UUID() string { return s.uuid }

func (s *service) DiscoverCharacteristics() ([]ble.Characteristic, error) {
	out := make([]ble.Characteristic, 0, len(s.chars))
	for _, u := range s.chars {
		out = append(out, &characteristic{adapter: s.adapter, uuid: strings.ToLower(u)})
	}
	return out, nil
}

type characteristic struct {
	adapter *Adapter
	uuid    string
}

func (c *characteristic) UUID() string { return c.uuid }

func (c *characteristic) Write(data []byte) error {
	a := c.adapter
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.writeErr != nil {
		return a.writeErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	a.writes[c.uuid] = append(a.writes[c.uuid], cp)
	slog.Debug("SIM: write", "uuid", c.uuid, "payload", fmt.Sprintf("% x", data))
	return nil
}
