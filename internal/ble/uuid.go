package ble

import (
	"fmt"
	"strings"

	"tinygo.org/x/bluetooth"
)

// bluetoothBase is the Bluetooth base UUID that 16-bit and 32-bit UUIDs
// expand into.
const bluetoothBase = "-0000-1000-8000-00805f9b34fb"

// NormalizeUUID parses a 16-bit, 32-bit or 128-bit UUID string and returns
// its canonical lowercase 128-bit form, the form Service.UUID and
// Characteristic.UUID report.
func NormalizeUUID(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch len(s) {
	case 4:
		s = "0000" + s + bluetoothBase
	case 8:
		s = s + bluetoothBase
	}
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		return "", fmt.Errorf("ble: parse UUID %q: %w", s, err)
	}
	return strings.ToLower(u.String()), nil
}

// sameUUID compares two UUID strings, tolerating case and short forms.
func sameUUID(a, b string) bool {
	if strings.EqualFold(a, b) {
		return true
	}
	na, errA := NormalizeUUID(a)
	nb, errB := NormalizeUUID(b)
	return errA == nil && errB == nil && na == nb
}
