package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	"github.com/chaz8081/picoremote/internal/ble"
	"github.com/chaz8081/picoremote/internal/ble/sim"
	"github.com/chaz8081/picoremote/internal/config"
	"github.com/chaz8081/picoremote/internal/controller"
	"github.com/chaz8081/picoremote/internal/hotkey"
	"github.com/chaz8081/picoremote/internal/ui"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/picoremote/config.yaml)")
	headless := flag.Bool("headless", false, "run without a window; commands come from hotkeys")
	simulate := flag.Bool("simulate", false, "use a simulated device instead of the Bluetooth adapter")
	initConfig := flag.Bool("init", false, "write the default config file and exit")
	flag.Parse()

	if *initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if path == "" {
			fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
		} else {
			fmt.Printf("Wrote default config to %s\n", path)
		}
		return
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	if *headless && !cfg.Hotkey.Enabled {
		log.Fatal("headless mode needs hotkey.enabled: true, otherwise nothing can send commands")
	}

	printBanner(cfg, *headless, *simulate)

	var adapter ble.Adapter
	if *simulate {
		adapter = newSimulatedDevice(cfg)
	} else {
		adapter = ble.NewTinyGoAdapter()
	}

	var screen *ui.Screen
	opts := controllerOptions(cfg)
	opts.OnStatus = func(st controller.Status) {
		if screen != nil {
			screen.Update(st)
		}
	}
	ctrl := controller.New(adapter, opts)

	var a fyne.App
	if !*headless {
		a = app.New()
		screen = ui.NewScreen(a, cfg.UI.Title, cfg.Device.Name, cfg.Labels(), ctrl)
		screen.Window().SetOnClosed(ctrl.Teardown)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ctrl.Mount(ctx); err != nil {
		log.Fatalf("Failed to start Bluetooth: %v\n\nCheck that Bluetooth is turned on and that this program may use it.", err)
	}

	// Hotkeys
	var listener *hotkey.Listener
	if cfg.Hotkey.Enabled {
		listener = hotkey.NewListener(cfg.Hotkey.Modifiers, len(cfg.Commands))
		go listener.Start()
		go func() {
			for ev := range listener.Events() {
				if err := ctrl.Send(ev.Command); err != nil {
					log.Printf("ERROR: hotkey command %d: %v", ev.Command+1, err)
				}
			}
		}()
		log.Printf("Hotkeys ready: %s+1..%d", strings.Join(cfg.Hotkey.Modifiers, "+"), len(cfg.Commands))
	}

	// Signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if *headless {
		sig := <-sigCh
		log.Printf("Received %s, shutting down...", sig)
	} else {
		go func() {
			sig := <-sigCh
			log.Printf("Received %s, shutting down...", sig)
			fyne.Do(a.Quit)
		}()
		screen.Window().ShowAndRun()
	}

	if listener != nil {
		listener.Stop()
	}
	ctrl.Teardown()
	log.Println("Goodbye!")
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

func controllerOptions(cfg *config.Config) controller.Options {
	cmds := make([]controller.Command, len(cfg.Commands))
	for i, c := range cfg.Commands {
		cmds[i] = controller.Command{UUID: c.UUID, Payload: []byte(c.Payload)}
	}
	return controller.Options{
		DeviceName:  cfg.Device.Name,
		ServiceUUID: cfg.Device.ServiceUUID,
		Commands:    cmds,
	}
}

// newSimulatedDevice returns an adapter with one device matching cfg.
func newSimulatedDevice(cfg *config.Config) *sim.Adapter {
	chars := make([]string, len(cfg.Commands))
	for i, c := range cfg.Commands {
		chars[i] = c.UUID
	}
	return sim.New(sim.Device{
		Name:     cfg.Device.Name,
		ID:       "00:00:00:00:00:01",
		RSSI:     -40,
		Services: map[string][]string{cfg.Device.ServiceUUID: chars},
	})
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config, headless, simulate bool) {
	mode := "window"
	if headless {
		mode = "headless"
	}
	fmt.Println("=== picoremote ===")
	fmt.Printf("  Device:   %s\n", cfg.Device.Name)
	fmt.Printf("  Service:  %s\n", cfg.Device.ServiceUUID)
	fmt.Printf("  Commands: %d\n", len(cfg.Commands))
	if cfg.Hotkey.Enabled {
		fmt.Printf("  Hotkeys:  %s+N\n", strings.Join(cfg.Hotkey.Modifiers, "+"))
	} else {
		fmt.Println("  Hotkeys:  off")
	}
	fmt.Printf("  Mode:     %s\n", mode)
	if simulate {
		fmt.Println("  Adapter:  simulated")
	}
	fmt.Printf("  Log:      %s\n", cfg.LogLevel)
	fmt.Println("==================")
}
