package halremote

import (
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/kay54068/halremote/internal/hal"
)

func TestRegistryAddSkipsDisabledAndUnnamed(t *testing.T) {
	r := NewRegistry()

	enabled := hal.NewPin("a", hal.PinTypeBit, hal.DirectionOut)
	disabled := hal.NewPin("b", hal.PinTypeBit, hal.DirectionOut)
	disabled.SetEnabled(false)
	unnamed := hal.NewPin("", hal.PinTypeBit, hal.DirectionOut)

	r.Add(enabled)
	r.Add(disabled)
	r.Add(unnamed)

	assert.Equal(t, r.Len(), 1)
	if _, ok := r.ByName("a"); !ok {
		t.Fatalf("enabled pin missing")
	}
	if _, ok := r.ByName("b"); ok {
		t.Fatalf("disabled pin registered")
	}
}

func TestRegistryBindHandle(t *testing.T) {
	r := NewRegistry()
	pin := hal.NewPin("x", hal.PinTypeFloat, hal.DirectionOut)
	r.Add(pin)

	if !r.BindHandle("x", 10) {
		t.Fatalf("BindHandle failed for registered pin")
	}
	if r.BindHandle("missing", 11) {
		t.Fatalf("BindHandle succeeded for unknown pin")
	}

	// both indexes must refer to the same pin
	byName, _ := r.ByName("x")
	byHandle, ok := r.ByHandle(10)
	assert.Equal(t, ok, true)
	if byName != byHandle {
		t.Fatalf("name and handle index disagree")
	}

	handle, ok := pin.Handle()
	assert.Equal(t, ok, true)
	assert.Equal(t, handle, uint32(10))
}

func TestRegistryClearHandlesReplacesIndex(t *testing.T) {
	r := NewRegistry()
	x := hal.NewPin("x", hal.PinTypeFloat, hal.DirectionOut)
	y := hal.NewPin("y", hal.PinTypeBit, hal.DirectionIn)
	r.Add(x)
	r.Add(y)
	r.BindHandle("x", 10)
	r.BindHandle("y", 11)

	r.ClearHandles()

	if _, ok := r.ByHandle(10); ok {
		t.Fatalf("stale handle entry survived ClearHandles")
	}
	if _, ok := x.Handle(); ok {
		t.Fatalf("pin handle survived ClearHandles")
	}

	// re-numbering after a fresh full update
	r.BindHandle("x", 20)
	got, ok := r.ByHandle(20)
	assert.Equal(t, ok, true)
	if got != x {
		t.Fatalf("re-bound handle points at wrong pin")
	}
}

func TestRegistryUnsyncAll(t *testing.T) {
	r := NewRegistry()
	x := hal.NewPin("x", hal.PinTypeFloat, hal.DirectionOut)
	y := hal.NewPin("y", hal.PinTypeBit, hal.DirectionIn)
	r.Add(x)
	r.Add(y)

	x.RemoteSetFloat(1.0)
	y.RemoteSetBit(true)
	assert.Equal(t, x.Synced(), true)
	assert.Equal(t, y.Synced(), true)

	r.UnsyncAll()

	assert.Equal(t, x.Synced(), false)
	assert.Equal(t, y.Synced(), false)
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		r.Add(hal.NewPin(name, hal.PinTypeBit, hal.DirectionOut))
	}

	assert.Equal(t, r.Names(), []string{"alpha", "mid", "zeta"})
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()
	x := hal.NewPin("x", hal.PinTypeFloat, hal.DirectionOut)
	r.Add(x)
	r.BindHandle("x", 10)

	r.Clear()

	assert.Equal(t, r.Len(), 0)
	if _, ok := r.ByHandle(10); ok {
		t.Fatalf("handle index survived Clear")
	}
	if _, ok := x.Handle(); ok {
		t.Fatalf("pin handle survived Clear")
	}
}
