package halremote

import (
	"testing"
	"time"
)

func TestHeartbeatTicks(t *testing.T) {
	ticks := make(chan struct{}, 16)
	h := newHeartbeat(func() { ticks <- struct{}{} })
	defer h.Stop()

	h.Start(20 * time.Millisecond)

	for i := 0; i < 2; i++ {
		select {
		case <-ticks:
		case <-time.After(time.Second):
			t.Fatalf("tick %d did not arrive", i)
		}
	}
}

func TestHeartbeatZeroPeriodDisabled(t *testing.T) {
	ticks := make(chan struct{}, 16)
	h := newHeartbeat(func() { ticks <- struct{}{} })

	h.Start(0)

	if h.Active() {
		t.Fatalf("heartbeat with period 0 must stay disabled")
	}
	select {
	case <-ticks:
		t.Fatalf("disabled heartbeat ticked")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestHeartbeatStop(t *testing.T) {
	ticks := make(chan struct{}, 16)
	h := newHeartbeat(func() { ticks <- struct{}{} })

	h.Start(20 * time.Millisecond)
	h.Stop()

	select {
	case <-ticks:
		t.Fatalf("stopped heartbeat ticked")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestHeartbeatRefreshDefersTick(t *testing.T) {
	ticks := make(chan struct{}, 16)
	h := newHeartbeat(func() { ticks <- struct{}{} })
	defer h.Stop()

	h.Start(80 * time.Millisecond)

	// keep refreshing faster than the period; no tick may fire
	for i := 0; i < 5; i++ {
		time.Sleep(20 * time.Millisecond)
		h.Refresh()
	}
	select {
	case <-ticks:
		t.Fatalf("refreshed heartbeat ticked early")
	default:
	}

	// once traffic stops, the timer expires
	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatalf("tick did not arrive after refreshes stopped")
	}
}

func TestHeartbeatRefreshWhileStoppedIsNoop(t *testing.T) {
	ticks := make(chan struct{}, 16)
	h := newHeartbeat(func() { ticks <- struct{}{} })

	h.Refresh()

	select {
	case <-ticks:
		t.Fatalf("refresh armed a stopped heartbeat")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHeartbeatStartClearsOutstanding(t *testing.T) {
	h := newHeartbeat(func() {})
	defer h.Stop()

	h.SetOutstanding(true)
	h.Start(time.Hour)

	if h.Outstanding() {
		t.Fatalf("Start must clear the outstanding flag")
	}
}
