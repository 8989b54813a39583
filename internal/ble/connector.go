package ble

import (
	"context"
	"fmt"
	"log/slog"
)

// Connect stages reported by ConnectError.
const (
	StageConnect  = "connect"
	StageDiscover = "discover"
)

// ConnectError reports a failed connect or discovery attempt. Discovery
// failures are connect failures as far as callers are concerned.
type ConnectError struct {
	Peripheral Peripheral
	Stage      string
	Err        error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("ble: %s %s (%s): %v", e.Stage, e.Peripheral.Name, e.Peripheral.ID, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Connector connects to a peripheral and resolves the known characteristics
// of one target service.
type Connector struct {
	adapter     Adapter
	serviceUUID string
	known       []string
}

// NewConnector creates a Connector for the given target service and known
// characteristic UUIDs (in display order).
func NewConnector(adapter Adapter, serviceUUID string, known []string) *Connector {
	k := make([]string, len(known))
	copy(k, known)
	return &Connector{
		adapter:     adapter,
		serviceUUID: serviceUUID,
		known:       k,
	}
}

// Connect establishes the connection, runs full discovery and returns the
// connection with a freshly built registry. A missing target service or a
// service without any known characteristic yields an empty registry, not an
// error. If discovery fails the connection is dropped before returning.
func (c *Connector) Connect(ctx context.Context, p Peripheral) (Connection, *Registry, error) {
	slog.Info("[BLE] connecting", "name", p.Name, "id", p.ID)
	conn, err := c.adapter.Connect(ctx, p.ID)
	if err != nil {
		return nil, nil, &ConnectError{Peripheral: p, Stage: StageConnect, Err: err}
	}

	reg, err := c.discover(conn)
	if err != nil {
		if derr := conn.Disconnect(); derr != nil {
			slog.Warn("[BLE] disconnect after failed discovery", "error", derr)
		}
		return nil, nil, &ConnectError{Peripheral: p, Stage: StageDiscover, Err: err}
	}

	if reg.Len() == 0 {
		slog.Warn("[BLE] no known characteristics resolved", "service", c.serviceUUID, "id", p.ID)
	} else if missing := reg.Missing(); len(missing) > 0 {
		slog.Warn("[BLE] some characteristics not found", "missing", missing)
	}
	slog.Info("[BLE] connected", "id", p.ID, "characteristics", reg.Len())
	return conn, reg, nil
}

func (c *Connector) discover(conn Connection) (*Registry, error) {
	reg := NewRegistry(c.known)

	services, err := conn.DiscoverServices()
	if err != nil {
		return nil, err
	}

	for _, svc := range services {
		if !sameUUID(svc.UUID(), c.serviceUUID) {
			continue
		}
		chars, err := svc.DiscoverCharacteristics()
		if err != nil {
			return nil, fmt.Errorf("ble: service %s: %w", svc.UUID(), err)
		}
		for _, ch := range chars {
			if reg.Add(ch) {
				slog.Debug("[BLE] resolved characteristic", "uuid", ch.UUID())
			}
		}
	}
	return reg, nil
}
