// Package controller owns the lifecycle of one remote-control session: it
// scans for the target peripheral, connects, resolves the command
// characteristics and dispatches command writes. All session state is
// mutated by a single event loop goroutine.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaz8081/picoremote/internal/ble"
)

var (
	// ErrUnknownCommand is returned by Send for an index outside the
	// configured commands.
	ErrUnknownCommand = errors.New("controller: unknown command")
	// ErrClosed is returned once the controller has been torn down.
	ErrClosed = errors.New("controller: torn down")

	errLinkLost = errors.New("controller: link lost while connecting")
)

// Command is one button: a characteristic and the payload written to it.
type Command struct {
	UUID    string
	Payload []byte
}

// Options configures a Controller.
type Options struct {
	DeviceName  string    // advertised name, matched exactly
	ServiceUUID string    // target service
	Commands    []Command // in display order

	// OnStatus is called from the controller loop after every change. It
	// must not block and must not call Teardown.
	OnStatus func(Status)
}

// Controller runs the scan -> connect -> ready state machine.
type Controller struct {
	adapter   ble.Adapter
	connector *ble.Connector
	opts      Options

	events   chan event
	tornDown chan struct{} // closed once teardown has been handled
	exited   chan struct{} // closed when the loop returns

	lifeMu   sync.Mutex
	mounted  bool
	released bool

	statusMu sync.Mutex
	status   Status

	// Owned by the loop goroutine.
	ctx        context.Context
	cancel     context.CancelFunc
	state      State
	closed     bool
	inflight   int
	peripheral ble.Peripheral
	conn       ble.Connection
	registry   *ble.Registry
	scan       *ble.ScanHandle
	lastErr    error
	last       *CommandResult
}

// New creates a Controller. Nothing touches the adapter until Mount.
func New(adapter ble.Adapter, opts Options) *Controller {
	uuids := make([]string, len(opts.Commands))
	for i, cmd := range opts.Commands {
		uuids[i] = cmd.UUID
	}
	c := &Controller{
		adapter:   adapter,
		connector: ble.NewConnector(adapter, opts.ServiceUUID, uuids),
		opts:      opts,
		events:    make(chan event, 64),
		tornDown:  make(chan struct{}),
		exited:    make(chan struct{}),
	}
	c.status = Status{State: Disconnected, Known: len(opts.Commands)}
	return c
}

// Mount enables the adapter, starts the event loop and begins scanning.
func (c *Controller) Mount(ctx context.Context) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.released {
		return ErrClosed
	}
	if c.mounted {
		return nil
	}

	if err := c.adapter.Enable(); err != nil {
		return fmt.Errorf("controller: enable adapter: %w", err)
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mounted = true

	go c.loop()
	c.post(rescanRequested{})
	return nil
}

// Teardown disconnects the current peripheral, stops scanning and releases
// the adapter. It blocks until that is done and is safe to call more than
// once. In-flight writes are not cancelled; their results are discarded.
func (c *Controller) Teardown() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.released {
		return
	}
	c.released = true

	if !c.mounted {
		if err := c.adapter.Release(); err != nil {
			slog.Warn("[CTRL] release adapter", "error", err)
		}
		return
	}
	c.post(teardownRequested{})
	<-c.tornDown
}

// Send dispatches the command at index (0-based). It returns immediately;
// the outcome is published as Status.LastCommand. Outside Ready the request
// is a no-op.
func (c *Controller) Send(index int) error {
	if index < 0 || index >= len(c.opts.Commands) {
		return fmt.Errorf("%w: %d", ErrUnknownCommand, index+1)
	}
	cmd := c.opts.Commands[index]
	return c.request(sendRequested{index: index, uuid: cmd.UUID, payload: cmd.Payload})
}

// SendUUID writes payload to the characteristic with the given UUID. UUIDs
// that were not resolved on the current connection are ignored.
func (c *Controller) SendUUID(uuid string, payload []byte) error {
	return c.request(sendRequested{index: -1, uuid: uuid, payload: payload})
}

// Rescan starts a new scan after a failed connection or a dropped link.
// It does nothing unless the controller is Disconnected.
func (c *Controller) Rescan() error {
	return c.request(rescanRequested{})
}

// Status returns the latest published status.
func (c *Controller) Status() Status {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}

func (c *Controller) request(ev event) error {
	c.lifeMu.Lock()
	mounted, released := c.mounted, c.released
	c.lifeMu.Unlock()
	if released {
		return ErrClosed
	}
	if !mounted {
		slog.Debug("[CTRL] request before mount ignored")
		return nil
	}
	if !c.post(ev) {
		return ErrClosed
	}
	return nil
}

// post hands ev to the loop. It reports false once the loop has exited.
func (c *Controller) post(ev event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.exited:
		return false
	}
}

// loop processes events until teardown has been handled and every worker
// goroutine has reported back.
func (c *Controller) loop() {
	defer close(c.exited)
	for {
		ev := <-c.events
		if c.closed {
			c.handleClosed(ev)
		} else {
			c.handle(ev)
		}
		if c.closed && c.inflight == 0 {
			return
		}
	}
}

func (c *Controller) handle(ev event) {
	switch ev := ev.(type) {
	case rescanRequested:
		if c.state != Disconnected {
			slog.Debug("[CTRL] rescan ignored", "state", c.state)
			return
		}
		c.startScan()

	case advertisementObserved:
		if c.state != Scanning {
			slog.Debug("[CTRL] match ignored", "state", c.state, "id", ev.peripheral.ID)
			return
		}
		c.scan = nil
		c.peripheral = ev.peripheral
		c.lastErr = nil
		c.setState(Connecting)
		c.spawnConnect(ev.peripheral)

	case connectSucceeded:
		c.inflight--
		if ev.dropped.Load() {
			slog.Warn("[CTRL] link lost while connecting", "id", ev.conn.ID())
			c.lastErr = errLinkLost
			c.setState(Disconnected)
			return
		}
		c.conn = ev.conn
		c.registry = ev.registry
		c.setState(Ready)

	case connectFailed:
		c.inflight--
		slog.Warn("[CTRL] connection failed", "error", ev.err)
		c.lastErr = ev.err
		c.setState(Disconnected)

	case sendRequested:
		c.dispatch(ev)

	case writeCompleted:
		c.inflight--
		r := ev.result
		c.last = &r
		c.publish()

	case disconnected:
		if c.conn == nil || c.conn.ID() != ev.id {
			return
		}
		slog.Warn("[CTRL] peripheral disconnected", "id", ev.id)
		c.conn = nil
		c.registry = nil
		c.setState(Disconnected)

	case teardownRequested:
		c.teardown()
	}
}

// handleClosed runs after teardown: late results are dropped, and a
// connection that completed after teardown is closed immediately.
func (c *Controller) handleClosed(ev event) {
	switch ev := ev.(type) {
	case connectSucceeded:
		c.inflight--
		slog.Info("[CTRL] closing connection completed after teardown", "id", ev.conn.ID())
		if err := ev.conn.Disconnect(); err != nil {
			slog.Warn("[CTRL] disconnect", "error", err)
		}
	case connectFailed:
		c.inflight--
	case writeCompleted:
		c.inflight--
		slog.Debug("[CTRL] write result after teardown dropped", "uuid", ev.result.UUID)
	}
}

func (c *Controller) startScan() {
	h, err := ble.StartScan(c.ctx, c.adapter, c.opts.DeviceName, func(p ble.Peripheral) {
		c.post(advertisementObserved{peripheral: p})
	})
	if err != nil {
		slog.Error("[CTRL] start scan", "error", err)
		c.lastErr = err
		c.setState(Disconnected)
		return
	}
	c.scan = h
	c.setState(Scanning)
}

func (c *Controller) spawnConnect(p ble.Peripheral) {
	c.inflight++
	ctx := c.ctx
	go func() {
		conn, reg, err := c.connector.Connect(ctx, p)
		if err != nil {
			c.post(connectFailed{peripheral: p, err: err})
			return
		}
		// Registered before the loop sees the connection so a drop in
		// between is not lost.
		dropped := new(atomic.Bool)
		id := conn.ID()
		conn.OnDisconnect(func() {
			dropped.Store(true)
			c.post(disconnected{id: id})
		})
		c.post(connectSucceeded{peripheral: p, conn: conn, registry: reg, dropped: dropped})
	}()
}

func (c *Controller) dispatch(req sendRequested) {
	result := CommandResult{Index: req.index, UUID: req.uuid, At: time.Now()}

	if c.state != Ready {
		slog.Debug("[CTRL] command ignored, not connected", "command", req.index+1, "state", c.state)
		result.Skipped = "not connected"
		c.last = &result
		c.publish()
		return
	}
	if _, ok := c.registry.Lookup(req.uuid); !ok {
		result.Skipped = "characteristic not found on device"
		c.last = &result
		c.publish()
		return
	}

	c.inflight++
	reg := c.registry
	go func() {
		written, err := ble.Send(reg, req.uuid, req.payload)
		result.Written = written
		result.Err = err
		result.At = time.Now()
		c.post(writeCompleted{result: result})
	}()
}

func (c *Controller) teardown() {
	c.closed = true
	c.cancel()

	if c.scan != nil {
		c.scan.Stop()
		c.scan = nil
	}
	if c.conn != nil {
		slog.Info("[CTRL] disconnecting", "id", c.conn.ID())
		if err := c.conn.Disconnect(); err != nil {
			slog.Warn("[CTRL] disconnect", "error", err)
		}
		c.conn = nil
	}
	c.registry = nil
	if err := c.adapter.Release(); err != nil {
		slog.Warn("[CTRL] release adapter", "error", err)
	}
	c.setState(Disconnected)
	close(c.tornDown)
}

func (c *Controller) setState(s State) {
	if c.state != s {
		slog.Info("[CTRL] state", "from", c.state, "to", s)
	}
	c.state = s
	c.publish()
}

func (c *Controller) publish() {
	st := Status{
		State:           c.state,
		Characteristics: c.registry.Len(),
		Known:           len(c.opts.Commands),
		LastError:       c.lastErr,
		LastCommand:     c.last,
	}
	if c.peripheral.ID != "" {
		st.Device = fmt.Sprintf("%s (%s)", c.peripheral.Name, c.peripheral.ID)
	}

	c.statusMu.Lock()
	c.status = st
	c.statusMu.Unlock()

	if c.opts.OnStatus != nil {
		c.opts.OnStatus(st)
	}
}
