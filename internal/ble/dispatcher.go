package ble

import (
	"fmt"
	"log/slog"
)

// Send writes payload to the characteristic registered under uuid using an
// acknowledged write. A uuid that is not in reg is a silent no-op: written is
// false and err is nil. Nothing is retried.
func Send(reg *Registry, uuid string, payload []byte) (written bool, err error) {
	char, ok := reg.Lookup(uuid)
	if !ok {
		slog.Debug("[BLE] characteristic not resolved, skipping write", "uuid", uuid)
		return false, nil
	}

	if err := char.Write(payload); err != nil {
		slog.Warn("[BLE] write failed", "uuid", uuid, "error", err)
		return false, fmt.Errorf("ble: write %s: %w", uuid, err)
	}
	slog.Info("[BLE] command sent", "uuid", uuid, "payload", fmt.Sprintf("%q", payload))
	return true, nil
}
