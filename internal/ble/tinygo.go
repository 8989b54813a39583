package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"
)

// ErrReleased is returned by a TinyGoAdapter after Release.
var ErrReleased = errors.New("ble: adapter released")

// TinyGoAdapter wraps tinygo-org/bluetooth. It works on BlueZ (Linux),
// CoreBluetooth (macOS) and WinRT (Windows). On macOS, device IDs are
// CoreBluetooth UUIDs rather than MAC addresses. tinygo-org/bluetooth has
// no acknowledged write on Linux, so there Write goes to BlueZ over D-Bus
// (see tinygo_write_linux.go).
type TinyGoAdapter struct {
	adapter *bluetooth.Adapter

	// mu protects the fields below.
	mu          sync.Mutex
	addresses   map[string]bluetooth.Address // last seen address per device ID
	connections map[string]*tinyGoConnection
	scanning    bool
	released    bool
}

// NewTinyGoAdapter creates an adapter backed by the default system adapter.
func NewTinyGoAdapter() *TinyGoAdapter {
	return &TinyGoAdapter{
		adapter:     bluetooth.DefaultAdapter,
		addresses:   make(map[string]bluetooth.Address),
		connections: make(map[string]*tinyGoConnection),
	}
}

// Compile-time check that TinyGoAdapter implements Adapter.
var _ Adapter = (*TinyGoAdapter)(nil)

func (a *TinyGoAdapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return err
	}

	// tinygo/bluetooth reports peripheral disconnects through the
	// adapter-level handler, so route them to the matching connection.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		id := device.Address.String()
		a.mu.Lock()
		conn, ok := a.connections[id]
		delete(a.connections, id)
		a.mu.Unlock()
		if ok {
			conn.fireDisconnect()
		}
	})

	return nil
}

func (a *TinyGoAdapter) Scan(ctx context.Context, handler ScanHandler) error {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		return ErrReleased
	}
	a.scanning = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.scanning = false
		a.mu.Unlock()
	}()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = a.adapter.StopScan()
		case <-done:
		}
	}()

	err := a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		id := result.Address.String()
		a.mu.Lock()
		a.addresses[id] = result.Address
		a.mu.Unlock()
		handler(Advertisement{
			Name: result.LocalName(),
			ID:   id,
			RSSI: int(result.RSSI),
		}, nil)
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("ble: scan: %w", err)
	}
	return nil
}

func (a *TinyGoAdapter) StopScan() error {
	a.mu.Lock()
	scanning := a.scanning
	a.mu.Unlock()
	if !scanning {
		return nil
	}
	return a.adapter.StopScan()
}

func (a *TinyGoAdapter) Connect(ctx context.Context, id string) (Connection, error) {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		return nil, ErrReleased
	}
	addr, ok := a.addresses[id]
	a.mu.Unlock()
	if !ok {
		// Not seen in this session; parse the ID directly.
		addr.Set(id)
	}

	// tinygo/bluetooth's Connect blocks internally with its own timeout.
	// We wrap it to also respect our ctx cancellation.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		// The underlying Connect cannot be cancelled. If it succeeds later,
		// drop the link so it does not linger.
		go func() {
			if result := <-ch; result.err == nil {
				_ = result.device.Disconnect()
			}
		}()
		return nil, fmt.Errorf("ble: connect to %s: %w", id, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, fmt.Errorf("ble: connect to %s: %w", id, result.err)
		}
		conn := &tinyGoConnection{id: id, device: result.device}

		a.mu.Lock()
		a.connections[id] = conn
		a.mu.Unlock()

		return conn, nil
	}
}

// Release stops any running scan and forgets tracked devices. tinygo/bluetooth
// has no way to power the adapter down, so the radio itself stays on.
func (a *TinyGoAdapter) Release() error {
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		return nil
	}
	a.released = true
	scanning := a.scanning
	a.addresses = make(map[string]bluetooth.Address)
	a.connections = make(map[string]*tinyGoConnection)
	a.mu.Unlock()

	if scanning {
		if err := a.adapter.StopScan(); err != nil {
			return fmt.Errorf("ble: stop scan: %w", err)
		}
	}
	slog.Debug("[BLE] adapter released")
	return nil
}

type tinyGoConnection struct {
	id     string
	device bluetooth.Device

	mu           sync.Mutex
	disconnectCb func()
}

func (c *tinyGoConnection) ID() string { return c.id }

func (c *tinyGoConnection) DiscoverServices() ([]Service, error) {
	svcs, err := c.device.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("ble: discover services: %w", err)
	}
	out := make([]Service, 0, len(svcs))
	for i := range svcs {
		out = append(out, &tinyGoService{deviceID: c.id, svc: svcs[i]})
	}
	return out, nil
}

func (c *tinyGoConnection) Disconnect() error {
	return c.device.Disconnect()
}

func (c *tinyGoConnection) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

func (c *tinyGoConnection) fireDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

type tinyGoService struct {
	deviceID string
	svc      bluetooth.DeviceService
}

func (s *tinyGoService) UUID() string {
	return strings.ToLower(s.svc.UUID().String())
}

func (s *tinyGoService) DiscoverCharacteristics() ([]Characteristic, error) {
	chars, err := s.svc.DiscoverCharacteristics(nil)
	if err != nil {
		return nil, fmt.Errorf("ble: discover characteristics: %w", err)
	}
	out := make([]Characteristic, 0, len(chars))
	for i := range chars {
		out = append(out, &tinyGoCharacteristic{deviceID: s.deviceID, char: chars[i]})
	}
	return out, nil
}

type tinyGoCharacteristic struct {
	deviceID string
	char     bluetooth.DeviceCharacteristic

	// BlueZ object path, resolved on first write (Linux only).
	pathMu sync.Mutex
	path   string
}

func (c *tinyGoCharacteristic) UUID() string {
	return strings.ToLower(c.char.UUID().String())
}
