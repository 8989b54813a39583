// Command test-hotkey is a manual test for the command hotkeys.
// Run it, then press Ctrl+Shift+1..5 to see events.
// Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-hotkey [-modifiers ctrl,shift] [-count 5]
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chaz8081/picoremote/internal/hotkey"
)

func main() {
	modifiers := flag.String("modifiers", "ctrl,shift", "comma-separated modifier keys")
	count := flag.Int("count", 5, "number of commands (1-9)")
	flag.Parse()

	mods := strings.Split(*modifiers, ",")
	listener := hotkey.NewListener(mods, *count)
	for i, combo := range listener.Combos() {
		fmt.Printf("  %s -> command %d\n", strings.Join(combo, "+"), i+1)
	}
	fmt.Println("Press Ctrl+C to exit.")

	// Handle Ctrl+C
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		listener.Stop()
	}()

	// Read events
	go func() {
		for ev := range listener.Events() {
			fmt.Printf(">>> COMMAND %d\n", ev.Command+1)
		}
		fmt.Println("Event channel closed.")
	}()

	// Blocks until stopped
	listener.Start()
	fmt.Println("Done.")
}
