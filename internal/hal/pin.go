// Package hal holds the local side of a remote HAL component: typed,
// directional pin value cells organized into groups.
package hal

import (
	"fmt"
	"sync"
)

type PinType string

const (
	PinTypeBit   PinType = "bit"
	PinTypeFloat PinType = "float"
	PinTypeS32   PinType = "s32"
	PinTypeU32   PinType = "u32"
)

type PinDirection string

const (
	DirectionIn  PinDirection = "in"
	DirectionOut PinDirection = "out"
	DirectionIO  PinDirection = "io"
)

// ChangeHandler is called after a pin value changed. fromRemote reports
// whether the write came from the remote side; subscribers that forward
// local writes upstream must ignore remote-originated changes.
type ChangeHandler func(p *Pin, fromRemote bool)

// Pin is a single typed signal endpoint. A pin has two writers, the
// local application and the remote component; the from-remote flag on
// the write path keeps them apart.
type Pin struct {
	name    string
	typ     PinType
	dir     PinDirection
	enabled bool

	mu        sync.RWMutex
	valBit    bool
	valFloat  float64
	valS32    int32
	valU32    uint32
	synced    bool
	handle    uint32
	hasHandle bool

	handlersMu sync.Mutex
	nextID     int
	handlers   map[int]ChangeHandler
}

// NewPin creates an enabled pin with zero value.
func NewPin(name string, typ PinType, dir PinDirection) *Pin {
	return &Pin{
		name:     name,
		typ:      typ,
		dir:      dir,
		enabled:  true,
		handlers: make(map[int]ChangeHandler),
	}
}

func (p *Pin) Name() string            { return p.name }
func (p *Pin) Type() PinType           { return p.typ }
func (p *Pin) Direction() PinDirection { return p.dir }

func (p *Pin) Enabled() bool { return p.enabled }

// SetEnabled marks the pin as ignored when false. Only meaningful
// before the pin is handed to a session.
func (p *Pin) SetEnabled(enabled bool) { p.enabled = enabled }

// Synced reports whether the current value reflects the most recently
// known remote state.
func (p *Pin) Synced() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.synced
}

// SetSynced overrides the synced flag without touching the value.
func (p *Pin) SetSynced(synced bool) {
	p.mu.Lock()
	p.synced = synced
	p.mu.Unlock()
}

// Handle returns the server-assigned handle and whether one was
// assigned in the current session.
func (p *Pin) Handle() (uint32, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.handle, p.hasHandle
}

// SetHandle records the server-assigned handle.
func (p *Pin) SetHandle(handle uint32) {
	p.mu.Lock()
	p.handle = handle
	p.hasHandle = true
	p.mu.Unlock()
}

// ClearHandle drops the handle assignment; done when a session ends or
// a fresh full update replaces the handle index.
func (p *Pin) ClearHandle() {
	p.mu.Lock()
	p.handle = 0
	p.hasHandle = false
	p.mu.Unlock()
}

func (p *Pin) Bit() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.valBit
}

func (p *Pin) Float() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.valFloat
}

func (p *Pin) S32() int32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.valS32
}

func (p *Pin) U32() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.valU32
}

// Value returns the current value as the type-appropriate Go value.
func (p *Pin) Value() interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	switch p.typ {
	case PinTypeBit:
		return p.valBit
	case PinTypeFloat:
		return p.valFloat
	case PinTypeS32:
		return p.valS32
	case PinTypeU32:
		return p.valU32
	}
	return nil
}

// SetBit writes a local value; no-op unless the pin type matches.
func (p *Pin) SetBit(v bool) { p.set(PinTypeBit, v, false) }

// SetFloat writes a local value; no-op unless the pin type matches.
func (p *Pin) SetFloat(v float64) { p.set(PinTypeFloat, v, false) }

// SetS32 writes a local value; no-op unless the pin type matches.
func (p *Pin) SetS32(v int32) { p.set(PinTypeS32, v, false) }

// SetU32 writes a local value; no-op unless the pin type matches.
func (p *Pin) SetU32(v uint32) { p.set(PinTypeU32, v, false) }

// SetValue writes a local value from a dynamically typed source, such
// as an HTTP request or a UI dialog.
func (p *Pin) SetValue(v interface{}) error {
	switch p.typ {
	case PinTypeBit:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("pin %s: expected bool, got %T", p.name, v)
		}
		p.SetBit(b)
	case PinTypeFloat:
		f, ok := toFloat64(v)
		if !ok {
			return fmt.Errorf("pin %s: expected number, got %T", p.name, v)
		}
		p.SetFloat(f)
	case PinTypeS32:
		f, ok := toFloat64(v)
		if !ok {
			return fmt.Errorf("pin %s: expected number, got %T", p.name, v)
		}
		p.SetS32(int32(f))
	case PinTypeU32:
		f, ok := toFloat64(v)
		if !ok || f < 0 {
			return fmt.Errorf("pin %s: expected unsigned number, got %v", p.name, v)
		}
		p.SetU32(uint32(f))
	default:
		return fmt.Errorf("pin %s: unknown type %q", p.name, p.typ)
	}
	return nil
}

// RemoteSetBit applies a value received from the remote side and marks
// the pin synced.
func (p *Pin) RemoteSetBit(v bool) { p.set(PinTypeBit, v, true) }

// RemoteSetFloat applies a value received from the remote side.
func (p *Pin) RemoteSetFloat(v float64) { p.set(PinTypeFloat, v, true) }

// RemoteSetS32 applies a value received from the remote side.
func (p *Pin) RemoteSetS32(v int32) { p.set(PinTypeS32, v, true) }

// RemoteSetU32 applies a value received from the remote side.
func (p *Pin) RemoteSetU32(v uint32) { p.set(PinTypeU32, v, true) }

func (p *Pin) set(typ PinType, v interface{}, fromRemote bool) {
	if typ != p.typ {
		return
	}

	p.mu.Lock()
	changed := false
	switch typ {
	case PinTypeBit:
		val := v.(bool)
		changed = p.valBit != val
		p.valBit = val
	case PinTypeFloat:
		val := v.(float64)
		changed = p.valFloat != val
		p.valFloat = val
	case PinTypeS32:
		val := v.(int32)
		changed = p.valS32 != val
		p.valS32 = val
	case PinTypeU32:
		val := v.(uint32)
		changed = p.valU32 != val
		p.valU32 = val
	}
	if fromRemote {
		changed = changed || !p.synced
		p.synced = true
	} else if changed {
		// a local write is unconfirmed until the remote echoes it
		p.synced = false
	}
	p.mu.Unlock()

	if changed {
		p.notify(fromRemote)
	}
}

// OnChange registers a change handler and returns its removal func.
func (p *Pin) OnChange(h ChangeHandler) (remove func()) {
	p.handlersMu.Lock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = h
	p.handlersMu.Unlock()

	return func() {
		p.handlersMu.Lock()
		delete(p.handlers, id)
		p.handlersMu.Unlock()
	}
}

func (p *Pin) notify(fromRemote bool) {
	p.handlersMu.Lock()
	handlers := make([]ChangeHandler, 0, len(p.handlers))
	for _, h := range p.handlers {
		handlers = append(handlers, h)
	}
	p.handlersMu.Unlock()

	for _, h := range handlers {
		h(p, fromRemote)
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	}
	return 0, false
}
