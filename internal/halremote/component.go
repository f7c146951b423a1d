// Package halremote implements the client side of the halrcmd/halrcomp
// remote component protocol: it binds a named component to a remote HAL
// instance, keeps the local pins synchronized with the remote ones, and
// maintains liveness through bidirectional heartbeats.
package halremote

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kay54068/halremote/internal/hal"
	"github.com/kay54068/halremote/internal/halproto"
)

const DefaultHeartbeatPeriod = 3000 * time.Millisecond

// PinContainer enumerates the pins the component exposes. Enumeration
// happens once per session, on the rising edge of ready.
type PinContainer interface {
	Pins() []*hal.Pin
}

// Config carries the connection settings of one remote component.
type Config struct {
	// Name identifies the component and doubles as the subscription
	// topic.
	Name string
	// HalrcmdURI is the endpoint of the command service.
	HalrcmdURI string
	// HalrcompURI is the endpoint of the update service.
	HalrcompURI string
	// HeartbeatPeriod is the command channel heartbeat; 0 disables it.
	HeartbeatPeriod time.Duration
}

// RemoteComponent drives the connection lifecycle state machine. All
// protocol work runs on a single event loop goroutine; transport
// deliveries, timer ticks, and local pin writes are marshaled onto it,
// so the protocol state needs no locking.
type RemoteComponent struct {
	name            string
	cmdURI          string
	updateURI       string
	heartbeatPeriod time.Duration
	container       PinContainer
	transport       Transport
	logger          *zap.Logger

	events    chan func()
	closed    chan struct{}
	closeOnce sync.Once
	session   atomic.Int64

	// event-loop-owned protocol state
	ready       bool
	sessionID   uuid.UUID
	cState      channelState
	sState      channelState
	pins        *Registry
	pinRemovers []func()
	cmdHB       *heartbeat
	subHB       *heartbeat

	// observable snapshot
	statusMu   sync.RWMutex
	state      ConnectionState
	errKind    ConnectionError
	errString  string
	lastChange time.Time

	handlersMu    sync.Mutex
	stateHandlers []StateHandler
	errorHandlers []ErrorHandler
}

// NewRemoteComponent creates a component in the Disconnected state.
// Nothing connects until SetReady(true).
func NewRemoteComponent(cfg Config, container PinContainer, transport Transport, logger *zap.Logger) *RemoteComponent {
	name := cfg.Name
	if name == "" {
		name = "default"
	}

	c := &RemoteComponent{
		name:            name,
		cmdURI:          cfg.HalrcmdURI,
		updateURI:       cfg.HalrcompURI,
		heartbeatPeriod: cfg.HeartbeatPeriod,
		container:       container,
		transport:       transport,
		logger:          logger.With(zap.String("component", name)),
		events:          make(chan func(), 64),
		closed:          make(chan struct{}),
		pins:            NewRegistry(),
		state:           StateDisconnected,
		errKind:         ErrorNone,
		lastChange:      time.Now(),
	}

	c.cmdHB = newHeartbeat(c.postTick(c.cmdHeartbeatTick))
	c.subHB = newHeartbeat(c.postTick(c.subHeartbeatTick))
	transport.SetHandler(&transportHandler{c: c})

	go c.run()
	return c
}

func (c *RemoteComponent) Name() string { return c.name }

// State returns the current aggregate connection state.
func (c *RemoteComponent) State() ConnectionState {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.state
}

// Error returns the active error kind and its description.
func (c *RemoteComponent) Error() (ConnectionError, string) {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.errKind, c.errString
}

// Status returns a snapshot of the observables.
func (c *RemoteComponent) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()

	var sessionID string
	if c.sessionID != uuid.Nil {
		sessionID = c.sessionID.String()
	}
	return Status{
		Name:            c.name,
		SessionID:       sessionID,
		ConnectionState: c.state,
		Error:           c.errKind,
		ErrorString:     c.errString,
		LastStateChange: c.lastChange,
	}
}

// RegisterStateHandler observes connection state changes.
func (c *RemoteComponent) RegisterStateHandler(h StateHandler) {
	c.handlersMu.Lock()
	c.stateHandlers = append(c.stateHandlers, h)
	c.handlersMu.Unlock()
}

// RegisterErrorHandler observes error changes.
func (c *RemoteComponent) RegisterErrorHandler(h ErrorHandler) {
	c.handlersMu.Lock()
	c.errorHandlers = append(c.errorHandlers, h)
	c.handlersMu.Unlock()
}

// SetReady starts a session on the rising edge and stops it on the
// falling edge.
func (c *RemoteComponent) SetReady(ready bool) {
	c.post(func() {
		if c.ready == ready {
			return
		}
		c.ready = ready
		if ready {
			c.start()
		} else {
			c.stop()
		}
	})
}

// Close stops the session (if any) and shuts the event loop down. The
// component cannot be reused afterwards.
func (c *RemoteComponent) Close() {
	c.closeOnce.Do(func() {
		done := make(chan struct{})
		c.post(func() {
			if c.ready {
				c.ready = false
				c.stop()
			}
			close(done)
		})
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		close(c.closed)
	})
}

// event loop

func (c *RemoteComponent) run() {
	for {
		select {
		case fn := <-c.events:
			fn()
		case <-c.closed:
			return
		}
	}
}

func (c *RemoteComponent) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.closed:
	}
}

// postTick wraps a heartbeat tick so stale ticks from a previous
// session are dropped on the loop.
func (c *RemoteComponent) postTick(tick func()) func() {
	return func() {
		session := c.session.Load()
		c.post(func() {
			if session != c.session.Load() || !c.ready {
				return
			}
			tick()
		})
	}
}

// session lifecycle

func (c *RemoteComponent) start() {
	c.session.Add(1)
	c.sessionID = uuid.New()
	c.cState = channelTrying
	c.sState = channelDown

	c.logger.Info("starting session",
		zap.String("session_id", c.sessionID.String()),
		zap.String("halrcmd_uri", c.cmdURI),
		zap.String("halrcomp_uri", c.updateURI))

	c.updateState(StateConnecting)

	c.transport.SetIdentity(fmt.Sprintf("%s-%d", c.name, os.Getpid()))
	if err := c.transport.Connect(c.cmdURI, c.updateURI); err != nil {
		c.updateError(ErrorSocket, err.Error())
		c.updateState(StateError)
		return
	}

	c.addPins()
	c.bind()
}

func (c *RemoteComponent) stop() {
	c.session.Add(1)

	c.cmdHB.Stop()
	c.subHB.Stop()

	if err := c.transport.Close(); err != nil {
		c.logger.Warn("transport close failed", zap.Error(err))
	}
	c.removePins()

	c.updateError(ErrorNone, "")
	c.updateState(StateDisconnected)

	c.logger.Info("session stopped", zap.String("session_id", c.sessionID.String()))
	c.sessionID = uuid.Nil
}

// addPins enumerates the container into the registry and subscribes to
// pin changes. Pins with an empty name or disabled pins are skipped.
func (c *RemoteComponent) addPins() {
	for _, pin := range c.container.Pins() {
		if pin.Name() == "" || !pin.Enabled() {
			continue
		}
		c.pins.Add(pin)
		remove := pin.OnChange(c.pinChanged)
		c.pinRemovers = append(c.pinRemovers, remove)
		c.logger.Debug("pin added", zap.String("pin", pin.Name()))
	}
}

// removePins unsubscribes from the pins and drops both indexes. The
// pins themselves continue to exist in the container, but their values
// are stale from now on.
func (c *RemoteComponent) removePins() {
	for _, remove := range c.pinRemovers {
		remove()
	}
	c.pinRemovers = nil
	c.pins.UnsyncAll()
	c.pins.Clear()
}

// outgoing messages

func (c *RemoteComponent) bind() {
	tx := &halproto.Container{Type: halproto.MsgHalrcompBind}
	comp := tx.AddComp()
	comp.Name = c.name

	for _, name := range c.pins.Names() {
		pin, _ := c.pins.ByName(name)
		sub := comp.AddPin()
		sub.Name = c.name + "." + name // pin name is always component.pin
		sub.Type = wireType(pin.Type())
		sub.Dir = wireDirection(pin.Direction())
		fillWireValue(sub, pin)
	}

	c.logger.Debug("bind", zap.Int("pins", c.pins.Len()))
	c.sendCommand(tx)
}

// pinChanged forwards local pin writes upstream. Remote-originated
// changes are not echoed back.
func (c *RemoteComponent) pinChanged(pin *hal.Pin, fromRemote bool) {
	if fromRemote {
		return
	}
	session := c.session.Load()
	c.post(func() {
		if session != c.session.Load() || !c.ready {
			return
		}
		if c.State() != StateConnected {
			return
		}
		if pin.Direction() == hal.DirectionIn {
			return
		}

		handle, ok := pin.Handle()
		if !ok {
			c.logger.Warn("pin change before handle assignment", zap.String("pin", pin.Name()))
			return
		}

		tx := &halproto.Container{Type: halproto.MsgHalrcompSet}
		sub := tx.AddPin()
		sub.SetHandle(handle)
		sub.Name = c.name + "." + pin.Name()
		sub.Type = wireType(pin.Type())
		fillWireValue(sub, pin)

		c.logger.Debug("pin change", zap.String("pin", pin.Name()))
		c.sendCommand(tx)
	})
}

func (c *RemoteComponent) sendPing() {
	c.sendCommand(&halproto.Container{Type: halproto.MsgPing})
}

func (c *RemoteComponent) sendCommand(tx *halproto.Container) {
	if err := c.transport.SendCommand(halproto.Marshal(tx)); err != nil {
		c.updateError(ErrorSocket, err.Error())
		c.updateState(StateError)
	}
}

func (c *RemoteComponent) subscribe() {
	c.sState = channelTrying
	if err := c.transport.Subscribe(c.name); err != nil {
		c.updateError(ErrorSocket, err.Error())
		c.updateState(StateError)
	}
}

func (c *RemoteComponent) unsubscribe() {
	c.sState = channelDown
	if err := c.transport.Unsubscribe(c.name); err != nil {
		c.logger.Warn("unsubscribe failed", zap.Error(err))
	}
}

// incoming messages

// handleCommandMessage processes a reply on the command channel.
func (c *RemoteComponent) handleCommandMessage(frames [][]byte) {
	if len(frames) < 1 {
		c.logger.Warn("empty command message")
		return
	}

	rx, err := halproto.Unmarshal(frames[0])
	if err != nil {
		c.updateError(ErrorCommand, fmt.Sprintf("malformed command reply: %v", err))
		c.updateState(StateError)
		return
	}

	switch rx.Type {
	case halproto.MsgPingAcknowledge:
		c.cState = channelUp
		c.cmdHB.SetOutstanding(false)

		kind, _ := c.Error()
		if c.State() == StateError && kind == ErrorTimeout {
			// the server is alive again; force a fresh full update
			c.updateError(ErrorNone, "")
			c.updateState(StateConnected)
			c.subscribe()
		}

	case halproto.MsgHalrcompBindConfirm:
		c.logger.Debug("bind confirmed")
		c.cState = channelUp
		c.subscribe()

	case halproto.MsgHalrcompBindReject:
		c.cState = channelDown
		c.updateError(ErrorBind, joinNotes(rx.Note))
		c.updateState(StateError)
		c.logger.Warn("bind rejected", zap.Strings("notes", rx.Note))

	case halproto.MsgHalrcompSetReject:
		c.cState = channelDown
		c.updateError(ErrorPinChange, joinNotes(rx.Note))
		c.updateState(StateError)
		c.logger.Warn("pin change rejected", zap.Strings("notes", rx.Note))

	default:
		c.logger.Debug("unknown command message", zap.String("type", rx.Type.String()))
	}
}

// handleUpdateMessage processes a broadcast on the update channel.
// Frame 0 is the topic, frame 1 the payload.
func (c *RemoteComponent) handleUpdateMessage(frames [][]byte) {
	if len(frames) < 2 {
		c.logger.Warn("short update message", zap.Int("frames", len(frames)))
		return
	}

	rx, err := halproto.Unmarshal(frames[1])
	if err != nil {
		c.updateError(ErrorCommand, fmt.Sprintf("malformed update: %v", err))
		c.updateState(StateError)
		return
	}

	switch rx.Type {
	case halproto.MsgHalrcompIncrementalUpdate:
		for _, rpin := range rx.Pin {
			local, ok := c.pins.ByHandle(rpin.Handle)
			if !ok {
				c.logger.Error("incremental update for unknown handle",
					zap.Uint32("handle", rpin.Handle))
				continue
			}
			c.applyPin(rpin, local)
		}
		if c.sState != channelUp {
			c.sState = channelUp
			c.updateError(ErrorNone, "")
			c.updateState(StateConnected)
		}
		c.subHB.Refresh()

	case halproto.MsgHalrcompFullUpdate:
		c.logger.Debug("full update", zap.Int("components", len(rx.Comp)))

		// a snapshot replaces the handle index, it never merges
		c.pins.ClearHandles()

		for _, comp := range rx.Comp {
			for _, rpin := range comp.Pin {
				name := stripComponentPrefix(rpin.Name)
				local, ok := c.pins.ByName(name)
				if !ok {
					c.logger.Error("full update for unknown pin", zap.String("pin", rpin.Name))
					continue
				}
				if rpin.HasHandle() {
					c.pins.BindHandle(name, rpin.Handle)
				}
				c.applyPin(rpin, local)
			}
		}

		if c.sState != channelUp {
			c.sState = channelUp
			c.updateError(ErrorNone, "")
			c.updateState(StateConnected)
		}

		if rx.Pparams != nil {
			c.subHB.Start(time.Duration(rx.Pparams.KeepaliveTimer) * time.Millisecond)
		}

	case halproto.MsgPing:
		c.subHB.Refresh()

	case halproto.MsgHalrcommandError:
		c.sState = channelDown
		c.updateError(ErrorCommand, joinNotes(rx.Note))
		c.updateState(StateError)
		c.logger.Warn("protocol error on subscription", zap.Strings("notes", rx.Note))

	default:
		c.logger.Debug("unknown update message", zap.String("type", rx.Type.String()))
	}
}

// applyPin installs a remote value into the local pin. A value field
// that does not match the pin type is a protocol violation; the pin is
// skipped, the connection stays up.
func (c *RemoteComponent) applyPin(remote *halproto.Pin, local *hal.Pin) {
	switch {
	case remote.HalFloat != nil:
		if local.Type() != hal.PinTypeFloat {
			c.logTypeMismatch(remote, local)
			return
		}
		local.RemoteSetFloat(*remote.HalFloat)
	case remote.HalBit != nil:
		if local.Type() != hal.PinTypeBit {
			c.logTypeMismatch(remote, local)
			return
		}
		local.RemoteSetBit(*remote.HalBit)
	case remote.HalS32 != nil:
		if local.Type() != hal.PinTypeS32 {
			c.logTypeMismatch(remote, local)
			return
		}
		local.RemoteSetS32(*remote.HalS32)
	case remote.HalU32 != nil:
		if local.Type() != hal.PinTypeU32 {
			c.logTypeMismatch(remote, local)
			return
		}
		local.RemoteSetU32(*remote.HalU32)
	default:
		c.logger.Error("pin update without value", zap.String("pin", local.Name()))
	}
}

func (c *RemoteComponent) logTypeMismatch(remote *halproto.Pin, local *hal.Pin) {
	c.logger.Error("pin type mismatch in update",
		zap.String("pin", local.Name()),
		zap.String("local_type", string(local.Type())),
		zap.String("wire_type", remote.Type.String()))
}

// heartbeat ticks

// cmdHeartbeatTick runs on every period of the command heartbeat. A
// tick with an outstanding ping is a timeout; either way a new ping
// goes out.
func (c *RemoteComponent) cmdHeartbeatTick() {
	if !c.cmdHB.Active() {
		// tick was in flight when the timer got stopped
		return
	}

	if c.cmdHB.Outstanding() {
		c.cState = channelTrying
		c.unsubscribe()
		c.updateError(ErrorTimeout, "halrcmd service timed out")
		c.updateState(StateError)
		c.logger.Warn("halrcmd timeout")
	}

	c.sendPing()
	c.cmdHB.SetOutstanding(true)
}

// subHeartbeatTick fires when the update channel went silent for the
// whole keepalive period. The server drives this timer with its own
// PINGs, so any tick is a timeout: drop the stale subscription and
// probe the command channel.
func (c *RemoteComponent) subHeartbeatTick() {
	if !c.subHB.Active() {
		return
	}

	c.cState = channelTrying
	c.unsubscribe()
	c.updateError(ErrorTimeout, "halrcomp service timed out")
	c.updateState(StateError)
	c.logger.Warn("halrcomp timeout")

	// recovery pings are sent even when the command heartbeat is off
	c.sendPing()
}

// observables

func (c *RemoteComponent) updateState(state ConnectionState) {
	c.statusMu.Lock()
	if state == c.state {
		c.statusMu.Unlock()
		return
	}
	previous := c.state
	c.state = state
	c.lastChange = time.Now()
	errKind := c.errKind
	c.statusMu.Unlock()

	if previous == StateConnected {
		// observers must see that the values are stale now
		c.pins.UnsyncAll()
	}

	c.logger.Info("connection state changed",
		zap.String("state", string(state)),
		zap.String("previous", string(previous)))

	if state == StateConnected {
		c.updateError(ErrorNone, "")
		c.cmdHB.Start(c.heartbeatPeriod)
	} else {
		c.subHB.Stop()
		// in Error(Timeout) the command heartbeat keeps pinging so the
		// session can recover on PING_ACK
		if !(state == StateError && errKind == ErrorTimeout) {
			c.cmdHB.Stop()
		}
	}

	c.handlersMu.Lock()
	handlers := make([]StateHandler, len(c.stateHandlers))
	copy(handlers, c.stateHandlers)
	c.handlersMu.Unlock()
	for _, h := range handlers {
		h(state)
	}
}

func (c *RemoteComponent) updateError(kind ConnectionError, message string) {
	c.statusMu.Lock()
	if kind == c.errKind && message == c.errString {
		c.statusMu.Unlock()
		return
	}
	c.errKind = kind
	c.errString = message
	c.statusMu.Unlock()

	c.handlersMu.Lock()
	handlers := make([]ErrorHandler, len(c.errorHandlers))
	copy(handlers, c.errorHandlers)
	c.handlersMu.Unlock()
	for _, h := range handlers {
		h(kind, message)
	}
}

// transportHandler marshals transport deliveries onto the event loop,
// dropping deliveries that belong to a finished session.
type transportHandler struct {
	c *RemoteComponent
}

func (t *transportHandler) CommandMessage(frames [][]byte) {
	c := t.c
	session := c.session.Load()
	c.post(func() {
		if session != c.session.Load() || !c.ready {
			return
		}
		c.handleCommandMessage(frames)
	})
}

func (t *transportHandler) UpdateMessage(frames [][]byte) {
	c := t.c
	session := c.session.Load()
	c.post(func() {
		if session != c.session.Load() || !c.ready {
			return
		}
		c.handleUpdateMessage(frames)
	})
}

func (t *transportHandler) TransportError(err error) {
	c := t.c
	session := c.session.Load()
	c.post(func() {
		if session != c.session.Load() || !c.ready {
			return
		}
		c.updateError(ErrorSocket, err.Error())
		c.updateState(StateError)
	})
}

// helpers

func wireType(t hal.PinType) halproto.ValueType {
	switch t {
	case hal.PinTypeBit:
		return halproto.HalBit
	case hal.PinTypeFloat:
		return halproto.HalFloat
	case hal.PinTypeS32:
		return halproto.HalS32
	case hal.PinTypeU32:
		return halproto.HalU32
	}
	return 0
}

func wireDirection(d hal.PinDirection) halproto.PinDirection {
	switch d {
	case hal.DirectionIn:
		return halproto.HalIn
	case hal.DirectionOut:
		return halproto.HalOut
	case hal.DirectionIO:
		return halproto.HalIO
	}
	return 0
}

func fillWireValue(dst *halproto.Pin, src *hal.Pin) {
	switch src.Type() {
	case hal.PinTypeBit:
		dst.HalBit = halproto.Bool(src.Bit())
	case hal.PinTypeFloat:
		dst.HalFloat = halproto.Float64(src.Float())
	case hal.PinTypeS32:
		dst.HalS32 = halproto.Int32(src.S32())
	case hal.PinTypeU32:
		dst.HalU32 = halproto.Uint32(src.U32())
	}
}

func stripComponentPrefix(name string) string {
	if idx := strings.IndexByte(name, '.'); idx != -1 {
		return name[idx+1:]
	}
	return name
}

func joinNotes(notes []string) string {
	var sb strings.Builder
	for _, note := range notes {
		sb.WriteString(note)
		sb.WriteString("\n")
	}
	return sb.String()
}
