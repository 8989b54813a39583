//go:build linux

package ble

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	bluezBusName        = "org.bluez"
	bluezCharacteristic = "org.bluez.GattCharacteristic1"
)

// Write performs an acknowledged GATT write through BlueZ's WriteValue with
// type "request". tinygo-org/bluetooth only offers WriteWithoutResponse on
// Linux.
func (c *tinyGoCharacteristic) Write(data []byte) error {
	bus, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("ble: system bus: %w", err)
	}
	path, err := c.objectPath(bus)
	if err != nil {
		return err
	}

	options := map[string]dbus.Variant{
		"type": dbus.MakeVariant("request"),
	}
	obj := bus.Object(bluezBusName, dbus.ObjectPath(path))
	if err := obj.Call(bluezCharacteristic+".WriteValue", 0, data, options).Err; err != nil {
		return fmt.Errorf("ble: WriteValue %s: %w", path, err)
	}
	return nil
}

func (c *tinyGoCharacteristic) objectPath(bus *dbus.Conn) (string, error) {
	c.pathMu.Lock()
	defer c.pathMu.Unlock()
	if c.path != "" {
		return c.path, nil
	}

	objects := make(map[dbus.ObjectPath]map[string]map[string]dbus.Variant)
	obj := bus.Object(bluezBusName, "/")
	if err := obj.Call("org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0).Store(&objects); err != nil {
		return "", fmt.Errorf("ble: list BlueZ objects: %w", err)
	}

	paths := make(map[string]string)
	for path, ifaces := range objects {
		props, ok := ifaces[bluezCharacteristic]
		if !ok {
			continue
		}
		v, ok := props["UUID"]
		if !ok {
			continue
		}
		uuid, _ := v.Value().(string)
		paths[string(path)] = uuid
	}

	path, ok := findCharacteristicPath(paths, c.deviceID, c.UUID())
	if !ok {
		return "", fmt.Errorf("ble: characteristic %s of %s not found in BlueZ", c.UUID(), c.deviceID)
	}
	c.path = path
	return path, nil
}

// findCharacteristicPath picks the object path of the characteristic with
// the given UUID under the device, from a path -> UUID listing of BlueZ
// GattCharacteristic1 objects.
func findCharacteristicPath(paths map[string]string, deviceID, uuid string) (string, bool) {
	device := devicePathSegment(deviceID) + "/"
	for path, u := range paths {
		if strings.Contains(path, device) && sameUUID(u, uuid) {
			return path, true
		}
	}
	return "", false
}

// devicePathSegment maps a MAC address to BlueZ's object path segment,
// e.g. "aa:bb:cc:dd:ee:ff" -> "/dev_AA_BB_CC_DD_EE_FF".
func devicePathSegment(deviceID string) string {
	return "/dev_" + strings.ReplaceAll(strings.ToUpper(deviceID), ":", "_")
}
