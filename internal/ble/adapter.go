// Package ble drives a single BLE peripheral from the central side: scan for
// it by advertised name, connect, resolve its known characteristics and write
// command payloads to them.
package ble

import "context"

// Advertisement is one observed advertisement packet.
type Advertisement struct {
	Name string
	ID   string // platform address: MAC on Linux/Windows, CoreBluetooth UUID on macOS
	RSSI int
}

// Peripheral identifies a device selected for connection.
type Peripheral struct {
	Name string
	ID   string
}

// ScanHandler receives one scan event. Exactly one of adv and err is meaningful.
type ScanHandler func(adv Advertisement, err error)

// Characteristic represents a discovered GATT characteristic.
type Characteristic interface {
	// UUID returns the characteristic UUID in canonical lowercase form.
	UUID() string
	// Write performs a write-with-response and returns once the peripheral
	// has acknowledged it.
	Write(data []byte) error
}

// Service represents a discovered GATT service.
type Service interface {
	UUID() string
	// DiscoverCharacteristics returns every characteristic of the service.
	DiscoverCharacteristics() ([]Characteristic, error)
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// ID returns the platform identifier of the connected peripheral.
	ID() string
	// DiscoverServices performs full discovery and returns every service.
	DiscoverServices() ([]Service, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan reports every advertisement to handler until ctx is cancelled or
	// StopScan is called. It blocks for the lifetime of the scan.
	Scan(ctx context.Context, handler ScanHandler) error
	// StopScan ends a running scan. Stopping an idle adapter is not an error.
	StopScan() error
	// Connect establishes a connection to the device with the given ID.
	Connect(ctx context.Context, id string) (Connection, error)
	// Release frees the radio. The adapter must not be used afterwards.
	Release() error
}
