package controller

import (
	"sync/atomic"

	"github.com/chaz8081/picoremote/internal/ble"
)

// event is processed by the controller loop.
type event interface{}

type advertisementObserved struct {
	peripheral ble.Peripheral
}

type connectSucceeded struct {
	peripheral ble.Peripheral
	conn       ble.Connection
	registry   *ble.Registry
	dropped    *atomic.Bool // set by the disconnect callback
}

type connectFailed struct {
	peripheral ble.Peripheral
	err        error
}

type sendRequested struct {
	index   int
	uuid    string
	payload []byte
}

type writeCompleted struct {
	result CommandResult
}

type disconnected struct {
	id string
}

type rescanRequested struct{}

type teardownRequested struct{}
