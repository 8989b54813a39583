package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ScanRetryDelay is how long StartScan waits before restarting a scan that
// the adapter ended with an error.
var ScanRetryDelay = 250 * time.Millisecond

// ScanHandle controls a scan started by StartScan.
type ScanHandle struct {
	adapter Adapter
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// StartScan starts an unfiltered scan and calls onMatch with the first
// peripheral whose advertised name equals name exactly. The scan stops before
// onMatch runs, so onMatch is called at most once. Scan errors are logged and
// never abort the scan: if the adapter ends the scan with an error, it is
// restarted after ScanRetryDelay until a match or Stop.
//
// onMatch runs on the adapter's scan goroutine and must not block.
func StartScan(ctx context.Context, adapter Adapter, name string, onMatch func(Peripheral)) (*ScanHandle, error) {
	if name == "" {
		return nil, errors.New("ble: scan name filter must not be empty")
	}
	if onMatch == nil {
		return nil, errors.New("ble: scan match callback must not be nil")
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &ScanHandle{
		adapter: adapter,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	var matched atomic.Bool
	handler := func(adv Advertisement, err error) {
		if err != nil {
			slog.Warn("[BLE] scan error", "error", err)
			return
		}
		if adv.Name != name {
			return
		}
		if !matched.CompareAndSwap(false, true) {
			return
		}
		slog.Info("[BLE] found device", "name", adv.Name, "id", adv.ID, "rssi", adv.RSSI)
		h.Stop()
		onMatch(Peripheral{Name: adv.Name, ID: adv.ID})
	}

	slog.Info("[BLE] scanning", "name", name)
	go func() {
		defer close(h.done)
		for {
			err := adapter.Scan(ctx, handler)
			if err == nil || ctx.Err() != nil || matched.Load() {
				return
			}
			slog.Warn("[BLE] scan ended with error, restarting",
				"error", fmt.Errorf("ble: scan for %q: %w", name, err), "retry", ScanRetryDelay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(ScanRetryDelay):
			}
		}
	}()

	return h, nil
}

// Stop cancels the scan. It is safe to call multiple times and from within
// the scan callback.
func (h *ScanHandle) Stop() {
	h.once.Do(func() {
		h.cancel()
		if err := h.adapter.StopScan(); err != nil {
			slog.Warn("[BLE] failed to stop scan cleanly", "error", err)
		}
	})
}

// Done is closed once the adapter's scan has returned.
func (h *ScanHandle) Done() <-chan struct{} {
	return h.done
}
