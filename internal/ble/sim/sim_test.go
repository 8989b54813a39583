package sim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chaz8081/picoremote/internal/ble"
)

func TestAdapterImplementsInterface(t *testing.T) {
	var _ ble.Adapter = (*Adapter)(nil)
}

func TestScanRepeatsUntilStopped(t *testing.T) {
	a := New(Device{Name: "PicoLEDs", ID: "AA:BB:CC:DD:EE:FF"})
	a.Interval = time.Millisecond

	var mu sync.Mutex
	seen := 0
	done := make(chan error, 1)
	go func() {
		done <- a.Scan(context.Background(), func(adv ble.Advertisement, err error) {
			mu.Lock()
			seen++
			n := seen
			mu.Unlock()
			if n == 3 {
				_ = a.StopScan()
			}
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Scan() did not return after StopScan")
	}

	mu.Lock()
	defer mu.Unlock()
	if seen != 3 {
		t.Errorf("saw %d advertisements, want 3", seen)
	}
}

func TestScanReportsErrors(t *testing.T) {
	a := New()
	a.FailScans(errors.New("radio busy"))

	ctx, cancel := context.WithCancel(context.Background())
	var got error
	_ = a.Scan(ctx, func(_ ble.Advertisement, err error) {
		got = err
		cancel()
	})
	if got == nil {
		t.Error("scan handler did not receive the scan error")
	}
}

func TestConnectWriteDisconnect(t *testing.T) {
	const svc = "12345678-1234-5678-1234-56789abcdef0"
	const chr = "12345678-1234-5678-1234-56789abcdef1"
	a := New(Device{Name: "PicoLEDs", ID: "AA:BB:CC:DD:EE:FF", Services: map[string][]string{svc: {chr}}})

	conn, err := a.Connect(context.Background(), "AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	svcs, err := conn.DiscoverServices()
	if err != nil || len(svcs) != 1 {
		t.Fatalf("DiscoverServices() = %d services, err %v", len(svcs), err)
	}
	chars, err := svcs[0].DiscoverCharacteristics()
	if err != nil || len(chars) != 1 {
		t.Fatalf("DiscoverCharacteristics() = %d chars, err %v", len(chars), err)
	}
	if err := chars[0].Write([]byte("1")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := a.Writes(chr); len(got) != 1 || string(got[0]) != "1" {
		t.Errorf("Writes() = %q, want one \"1\"", got)
	}

	_ = conn.Disconnect()
	if a.Disconnects("AA:BB:CC:DD:EE:FF") != 1 {
		t.Errorf("Disconnects() = %d, want 1", a.Disconnects("AA:BB:CC:DD:EE:FF"))
	}
}

func TestConnectUnknownDevice(t *testing.T) {
	a := New()
	if _, err := a.Connect(context.Background(), "00:00:00:00:00:00"); err == nil {
		t.Error("Connect() to a device that is not advertising should fail")
	}
}

func TestDropFiresDisconnectCallback(t *testing.T) {
	a := New(Device{Name: "PicoLEDs", ID: "AA:BB:CC:DD:EE:FF"})
	conn, err := a.Connect(context.Background(), "AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	fired := false
	conn.OnDisconnect(func() { fired = true })

	a.Drop("AA:BB:CC:DD:EE:FF")
	if !fired {
		t.Error("Drop() did not fire the disconnect callback")
	}
}
