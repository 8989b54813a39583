// Package ui renders the device control screen with fyne.
package ui

import (
	"fmt"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/chaz8081/picoremote/internal/controller"
)

// Remote is the part of the controller the screen drives.
type Remote interface {
	Send(index int) error
	Rescan() error
}

// Screen is the single control window: a title, the connection status, the
// last command result and one button per command.
type Screen struct {
	window     fyne.Window
	deviceName string
	labels     []string

	title   *widget.Label
	status  *widget.Label
	last    *widget.Label
	buttons []*widget.Button
	rescan  *widget.Button
}

// NewScreen builds the window. labels holds one button label per command in
// display order; pressing button i calls remote.Send(i).
func NewScreen(a fyne.App, title, deviceName string, labels []string, remote Remote) *Screen {
	s := &Screen{
		window:     a.NewWindow(title),
		deviceName: deviceName,
		labels:     labels,
		title:      widget.NewLabelWithStyle(title, fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		status:     widget.NewLabelWithStyle("", fyne.TextAlignCenter, fyne.TextStyle{}),
		last:       widget.NewLabelWithStyle("", fyne.TextAlignCenter, fyne.TextStyle{Italic: true}),
	}

	items := []fyne.CanvasObject{s.title, s.status}
	for i, label := range labels {
		btn := widget.NewButton(label, func() {
			if err := remote.Send(i); err != nil {
				slog.Warn("[UI] send", "command", i+1, "error", err)
			}
		})
		btn.Importance = widget.HighImportance
		s.buttons = append(s.buttons, btn)
		items = append(items, btn)
	}

	s.rescan = widget.NewButton("Scan again", func() {
		if err := remote.Rescan(); err != nil {
			slog.Warn("[UI] rescan", "error", err)
		}
	})
	items = append(items, s.last, s.rescan)

	s.window.SetContent(container.NewCenter(container.NewVBox(items...)))
	s.window.Resize(fyne.NewSize(420, 480))
	s.apply(controller.Status{State: controller.Disconnected, Known: len(labels)})
	return s
}

// Window returns the underlying fyne window.
func (s *Screen) Window() fyne.Window {
	return s.window
}

// Update shows st. It may be called from any goroutine.
func (s *Screen) Update(st controller.Status) {
	fyne.Do(func() { s.apply(st) })
}

func (s *Screen) apply(st controller.Status) {
	s.status.SetText(StatusText(st, s.deviceName))
	s.last.SetText(CommandText(st.LastCommand, s.labels))

	for _, btn := range s.buttons {
		if st.State == controller.Ready {
			btn.Enable()
		} else {
			btn.Disable()
		}
	}
	if st.State == controller.Disconnected {
		s.rescan.Enable()
	} else {
		s.rescan.Disable()
	}
}

// StatusText describes the connection state for the status line.
func StatusText(st controller.Status, deviceName string) string {
	switch st.State {
	case controller.Scanning:
		return fmt.Sprintf("Scanning for %s...", deviceName)
	case controller.Connecting:
		return fmt.Sprintf("Connecting to %s...", st.Device)
	case controller.Ready:
		return fmt.Sprintf("Connected to %s (%d/%d commands available)", st.Device, st.Characteristics, st.Known)
	default:
		if st.LastError != nil {
			return fmt.Sprintf("Disconnected: %v", st.LastError)
		}
		return "Disconnected"
	}
}

// CommandText describes the last command result. labels names commands by
// index.
func CommandText(r *controller.CommandResult, labels []string) string {
	if r == nil {
		return ""
	}
	name := r.UUID
	if r.Index >= 0 && r.Index < len(labels) {
		name = labels[r.Index]
	}
	switch {
	case r.Err != nil:
		return fmt.Sprintf("%s failed: %v", name, r.Err)
	case r.Written:
		return fmt.Sprintf("%s sent at %s", name, r.At.Format("15:04:05"))
	case r.Skipped != "":
		return fmt.Sprintf("%s not sent: %s", name, r.Skipped)
	default:
		return ""
	}
}
