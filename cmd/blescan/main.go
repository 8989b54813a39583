// Command blescan lists named BLE advertisements so the device.name for the
// config can be found.
//
// Usage:
//
//	go run ./cmd/blescan [-duration 15s] [-prefix Pico]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chaz8081/picoremote/internal/ble"
)

func main() {
	duration := flag.Duration("duration", 15*time.Second, "how long to scan")
	prefix := flag.String("prefix", "", "only show names starting with this prefix")
	flag.Parse()

	adapter := ble.NewTinyGoAdapter()
	log.Println("Enabling Bluetooth adapter...")
	if err := adapter.Enable(); err != nil {
		log.Fatalf("Fatal: enable adapter: %v", err)
	}
	defer func() { _ = adapter.Release() }()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var mu sync.Mutex
	found := make(map[string]ble.Advertisement)

	log.Printf("Scanning for %s...", *duration)
	err := adapter.Scan(ctx, func(adv ble.Advertisement, err error) {
		if err != nil {
			log.Printf("Warning: scan error: %v", err)
			return
		}
		if adv.Name == "" || !strings.HasPrefix(adv.Name, *prefix) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if _, seen := found[adv.ID]; !seen {
			log.Printf("    --> %s (%s)", adv.Name, adv.ID)
		}
		found[adv.ID] = adv
	})
	if err != nil {
		log.Fatalf("Fatal: scan failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(found) == 0 {
		log.Println("Scan complete. No named devices found.")
		return
	}

	devices := make([]ble.Advertisement, 0, len(found))
	for _, adv := range found {
		devices = append(devices, adv)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].RSSI > devices[j].RSSI })

	fmt.Println("\n--- Named Devices (strongest first) ---")
	for i, d := range devices {
		fmt.Printf("%d: Name: %s\n", i+1, d.Name)
		fmt.Printf("   ID:   %s\n", d.ID)
		fmt.Printf("   RSSI: %d\n\n", d.RSSI)
	}
}
