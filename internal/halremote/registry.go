package halremote

import (
	"sort"

	"github.com/kay54068/halremote/internal/hal"
)

// Registry indexes the pins of one session by local name and by
// server-assigned handle. It is only accessed from the component's
// event loop and needs no locking.
type Registry struct {
	byName   map[string]*hal.Pin
	byHandle map[uint32]*hal.Pin
}

func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]*hal.Pin),
		byHandle: make(map[uint32]*hal.Pin),
	}
}

// Add inserts a pin by name. Pins with an empty name or with the
// enabled flag cleared are ignored.
func (r *Registry) Add(p *hal.Pin) {
	if p.Name() == "" || !p.Enabled() {
		return
	}
	r.byName[p.Name()] = p
}

// BindHandle links a name to a server handle so both indexes refer to
// the same pin. Returns false if the name is not registered.
func (r *Registry) BindHandle(name string, handle uint32) bool {
	p, ok := r.byName[name]
	if !ok {
		return false
	}
	p.SetHandle(handle)
	r.byHandle[handle] = p
	return true
}

// ClearHandles drops the handle index and every pin's handle
// assignment. A full update replaces, never merges, the handle index.
func (r *Registry) ClearHandles() {
	for _, p := range r.byHandle {
		p.ClearHandle()
	}
	r.byHandle = make(map[uint32]*hal.Pin)
}

func (r *Registry) ByName(name string) (*hal.Pin, bool) {
	p, ok := r.byName[name]
	return p, ok
}

func (r *Registry) ByHandle(handle uint32) (*hal.Pin, bool) {
	p, ok := r.byHandle[handle]
	return p, ok
}

// Names returns the registered pin names in sorted order, so envelope
// construction is deterministic.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnsyncAll clears the synced flag on every registered pin.
func (r *Registry) UnsyncAll() {
	for _, p := range r.byName {
		p.SetSynced(false)
	}
}

// Len returns the number of registered pins.
func (r *Registry) Len() int { return len(r.byName) }

// Clear drops both indexes and every handle assignment. The pins
// themselves continue to exist in their container.
func (r *Registry) Clear() {
	r.ClearHandles()
	r.byName = make(map[string]*hal.Pin)
}
