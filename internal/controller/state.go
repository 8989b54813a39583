package controller

import "time"

// State is the connection state of the controller.
type State int

const (
	Disconnected State = iota
	Scanning
	Connecting
	Ready
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Scanning:
		return "scanning"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// CommandResult records the outcome of one Send.
type CommandResult struct {
	Index   int // 0-based command index, -1 when sent by UUID
	UUID    string
	Written bool   // an acknowledged write completed
	Skipped string // non-empty when nothing was written; says why
	Err     error
	At      time.Time
}

// Status is a snapshot published on every state change and command result.
type Status struct {
	State           State
	Device          string // "name (id)" of the selected peripheral
	Characteristics int    // resolved characteristics on the current connection
	Known           int    // configured characteristics
	LastError       error  // last connect or discovery failure
	LastCommand     *CommandResult
}
