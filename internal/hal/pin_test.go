package hal

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestPinLocalWrite(t *testing.T) {
	pin := NewPin("x", PinTypeFloat, DirectionOut)

	var gotPin *Pin
	var gotRemote bool
	calls := 0
	pin.OnChange(func(p *Pin, fromRemote bool) {
		gotPin = p
		gotRemote = fromRemote
		calls++
	})

	pin.SetFloat(1.5)

	assert.Equal(t, calls, 1)
	assert.Equal(t, gotPin, pin)
	assert.Equal(t, gotRemote, false)
	assert.Equal(t, pin.Float(), 1.5)
	assert.Equal(t, pin.Synced(), false)
}

func TestPinRemoteWriteMarksSynced(t *testing.T) {
	pin := NewPin("x", PinTypeFloat, DirectionOut)

	var gotRemote bool
	pin.OnChange(func(p *Pin, fromRemote bool) {
		gotRemote = fromRemote
	})

	pin.RemoteSetFloat(2.5)

	assert.Equal(t, gotRemote, true)
	assert.Equal(t, pin.Float(), 2.5)
	assert.Equal(t, pin.Synced(), true)
}

func TestPinRemoteWriteSameValueStillSyncs(t *testing.T) {
	pin := NewPin("x", PinTypeFloat, DirectionOut)
	pin.SetFloat(1.5)
	assert.Equal(t, pin.Synced(), false)

	// a full update seeding the value the pin already has must still
	// mark it synced and notify observers
	calls := 0
	pin.OnChange(func(p *Pin, fromRemote bool) { calls++ })

	pin.RemoteSetFloat(1.5)

	assert.Equal(t, pin.Synced(), true)
	assert.Equal(t, calls, 1)
}

func TestPinUnchangedValueDoesNotNotify(t *testing.T) {
	pin := NewPin("b", PinTypeBit, DirectionIn)
	calls := 0
	pin.OnChange(func(p *Pin, fromRemote bool) { calls++ })

	pin.SetBit(false)
	assert.Equal(t, calls, 0)
}

func TestPinTypeMismatchedWriteIgnored(t *testing.T) {
	pin := NewPin("b", PinTypeBit, DirectionOut)
	calls := 0
	pin.OnChange(func(p *Pin, fromRemote bool) { calls++ })

	pin.SetFloat(1.0)

	assert.Equal(t, calls, 0)
	assert.Equal(t, pin.Bit(), false)
}

func TestPinHandleAssignment(t *testing.T) {
	pin := NewPin("x", PinTypeU32, DirectionIO)

	if _, ok := pin.Handle(); ok {
		t.Fatalf("new pin must not have a handle")
	}

	pin.SetHandle(0) // handle 0 is valid
	handle, ok := pin.Handle()
	assert.Equal(t, ok, true)
	assert.Equal(t, handle, uint32(0))

	pin.ClearHandle()
	if _, ok := pin.Handle(); ok {
		t.Fatalf("handle not cleared")
	}
}

func TestPinOnChangeRemove(t *testing.T) {
	pin := NewPin("x", PinTypeS32, DirectionOut)
	calls := 0
	remove := pin.OnChange(func(p *Pin, fromRemote bool) { calls++ })

	pin.SetS32(1)
	remove()
	pin.SetS32(2)

	assert.Equal(t, calls, 1)
}

func TestPinSetValueDynamic(t *testing.T) {
	pin := NewPin("x", PinTypeU32, DirectionOut)

	if err := pin.SetValue(float64(7)); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	assert.Equal(t, pin.U32(), uint32(7))

	if err := pin.SetValue("nope"); err == nil {
		t.Fatalf("expected error for string value")
	}
	if err := pin.SetValue(float64(-1)); err == nil {
		t.Fatalf("expected error for negative u32")
	}
}

func TestGroupRecursiveEnumeration(t *testing.T) {
	root := NewGroup("root")
	root.AddPin(NewPin("a", PinTypeBit, DirectionOut))

	child := NewGroup("child")
	child.AddPin(NewPin("b", PinTypeFloat, DirectionIn))

	grandchild := NewGroup("grandchild")
	grandchild.AddPin(NewPin("c", PinTypeS32, DirectionIO))

	child.AddGroup(grandchild)
	root.AddGroup(child)

	pins := root.Pins()
	if len(pins) != 3 {
		t.Fatalf("expected 3 pins, got %d", len(pins))
	}
	names := map[string]bool{}
	for _, p := range pins {
		names[p.Name()] = true
	}
	for _, want := range []string{"a", "b", "c"} {
		if !names[want] {
			t.Fatalf("pin %q missing from enumeration", want)
		}
	}
}
