package ble

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// matchRecorder collects onMatch calls.
type matchRecorder struct {
	mu      sync.Mutex
	matches []Peripheral
	ch      chan struct{}
}

func newMatchRecorder() *matchRecorder {
	return &matchRecorder{ch: make(chan struct{}, 16)}
}

func (r *matchRecorder) onMatch(p Peripheral) {
	r.mu.Lock()
	r.matches = append(r.matches, p)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *matchRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matches)
}

func waitScanDone(t *testing.T, h *ScanHandle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("scan did not finish")
	}
}

func TestScanIgnoresOtherNames(t *testing.T) {
	adapter := newMockAdapter([]Advertisement{
		{Name: "PicoLED", ID: "11:11:11:11:11:11"},
		{Name: "picoleds", ID: "22:22:22:22:22:22"},
		{Name: "", ID: "33:33:33:33:33:33"},
		{Name: "PicoLEDs-2", ID: "44:44:44:44:44:44"},
	}, nil)
	rec := newMatchRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	h, err := StartScan(ctx, adapter, testDeviceName, rec.onMatch)
	if err != nil {
		t.Fatalf("StartScan() error = %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	cancel()
	waitScanDone(t, h)

	if rec.count() != 0 {
		t.Errorf("onMatch called %d times for non-matching names, want 0", rec.count())
	}
}

func TestScanMatchesOnceAndStops(t *testing.T) {
	adapter := newMockAdapter([]Advertisement{
		{Name: "Other", ID: "11:11:11:11:11:11"},
		{Name: testDeviceName, ID: testDeviceID, RSSI: -50},
		{Name: testDeviceName, ID: testDeviceID, RSSI: -48},
		{Name: testDeviceName, ID: "99:99:99:99:99:99"},
	}, nil)
	rec := newMatchRecorder()

	h, err := StartScan(context.Background(), adapter, testDeviceName, rec.onMatch)
	if err != nil {
		t.Fatalf("StartScan() error = %v", err)
	}
	waitScanDone(t, h)

	if rec.count() != 1 {
		t.Fatalf("onMatch called %d times, want 1", rec.count())
	}
	if got := rec.matches[0]; got.ID != testDeviceID || got.Name != testDeviceName {
		t.Errorf("matched %+v, want first advertised %s", got, testDeviceID)
	}

	adapter.mu.Lock()
	stops := adapter.stopScans
	adapter.mu.Unlock()
	if stops != 1 {
		t.Errorf("StopScan called %d times, want 1", stops)
	}
}

func TestScanContinuesAfterErrors(t *testing.T) {
	adapter := newMockAdapter([]Advertisement{
		{Name: testDeviceName, ID: testDeviceID},
	}, nil)
	adapter.scanErrs = []error{errors.New("radio busy"), errors.New("radio busy")}
	rec := newMatchRecorder()

	h, err := StartScan(context.Background(), adapter, testDeviceName, rec.onMatch)
	if err != nil {
		t.Fatalf("StartScan() error = %v", err)
	}

	select {
	case <-rec.ch:
	case <-time.After(time.Second):
		t.Fatal("scan errors should not prevent a later match")
	}
	waitScanDone(t, h)
}

func setScanRetryDelay(t *testing.T, d time.Duration) {
	t.Helper()
	prev := ScanRetryDelay
	ScanRetryDelay = d
	t.Cleanup(func() { ScanRetryDelay = prev })
}

func TestScanRestartsAfterAdapterError(t *testing.T) {
	setScanRetryDelay(t, 5*time.Millisecond)
	adapter := newMockAdapter([]Advertisement{
		{Name: testDeviceName, ID: testDeviceID},
	}, nil)
	adapter.failScans = []error{
		errors.New("org.bluez.Error.InProgress"),
		errors.New("org.bluez.Error.InProgress"),
	}
	rec := newMatchRecorder()

	h, err := StartScan(context.Background(), adapter, testDeviceName, rec.onMatch)
	if err != nil {
		t.Fatalf("StartScan() error = %v", err)
	}

	select {
	case <-rec.ch:
	case <-time.After(time.Second):
		t.Fatal("scan was not restarted after the adapter ended it with an error")
	}
	waitScanDone(t, h)

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if adapter.scanCalls != 3 {
		t.Errorf("Scan called %d times, want 3", adapter.scanCalls)
	}
}

func TestScanStopDuringRetry(t *testing.T) {
	setScanRetryDelay(t, time.Hour)
	adapter := newMockAdapter(nil, nil)
	adapter.failScans = []error{errors.New("adapter not powered")}

	h, err := StartScan(context.Background(), adapter, testDeviceName, func(Peripheral) {})
	if err != nil {
		t.Fatalf("StartScan() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	h.Stop()
	waitScanDone(t, h)

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if adapter.scanCalls != 1 {
		t.Errorf("Scan called %d times after Stop, want 1", adapter.scanCalls)
	}
}

func TestScanStopIsIdempotent(t *testing.T) {
	adapter := newMockAdapter(nil, nil)
	h, err := StartScan(context.Background(), adapter, testDeviceName, func(Peripheral) {})
	if err != nil {
		t.Fatalf("StartScan() error = %v", err)
	}

	h.Stop()
	h.Stop()
	h.Stop()
	waitScanDone(t, h)

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if adapter.stopScans != 1 {
		t.Errorf("StopScan called %d times, want 1", adapter.stopScans)
	}
}

func TestStartScanRejectsBadArguments(t *testing.T) {
	adapter := newMockAdapter(nil, nil)
	if _, err := StartScan(context.Background(), adapter, "", func(Peripheral) {}); err == nil {
		t.Error("StartScan() with empty name should fail")
	}
	if _, err := StartScan(context.Background(), adapter, testDeviceName, nil); err == nil {
		t.Error("StartScan() with nil callback should fail")
	}
}
