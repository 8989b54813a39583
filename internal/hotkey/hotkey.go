// Package hotkey provides global command hotkeys using gohook. Command N
// (1-indexed) is bound to the configured modifiers plus the digit key N, so
// commands can be sent while the window is not focused.
package hotkey

import (
	"strconv"
	"sync"

	hook "github.com/robotn/gohook"
)

// Event is emitted on the channel returned by Events.
type Event struct {
	Command int // 0-based command index
}

// Listener manages the command hotkeys and emits one Event per key press.
type Listener struct {
	modifiers []string
	count     int
	ch        chan Event
	done      chan struct{}
	once      sync.Once
}

// NewListener creates a Listener for count commands. modifiers should be
// lowercase key names (e.g., ["ctrl", "shift"]). count is capped at 9.
func NewListener(modifiers []string, count int) *Listener {
	if count > 9 {
		count = 9
	}
	return &Listener{
		modifiers: modifiers,
		count:     count,
		ch:        make(chan Event, 16),
		done:      make(chan struct{}),
	}
}

// Events returns the channel that receives hotkey events.
// The channel is closed when Stop is called.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// Combos returns the key combination bound to each command, in order.
func (l *Listener) Combos() [][]string {
	combos := make([][]string, l.count)
	for i := range combos {
		combos[i] = Combo(l.modifiers, i)
	}
	return combos
}

// Combo returns the key combination for the command at index.
func Combo(modifiers []string, index int) []string {
	keys := make([]string, 0, len(modifiers)+1)
	keys = append(keys, modifiers...)
	return append(keys, strconv.Itoa(index+1))
}

// Start begins listening for the hotkeys.
// This function blocks until Stop is called. Run it in a goroutine.
func (l *Listener) Start() {
	for i, keys := range l.Combos() {
		ev := Event{Command: i}
		hook.Register(hook.KeyDown, keys, func(hook.Event) {
			select {
			case l.ch <- ev:
			default: // don't block if channel is full
			}
		})
	}

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}
