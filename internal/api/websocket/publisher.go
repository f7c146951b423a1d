package websocket

import (
	"github.com/kay54068/halremote/internal/hal"
	"github.com/kay54068/halremote/internal/halremote"
)

// PublishComponent wires a remote component and its pin container into
// the hub: every pin change and every connection state or error change
// is broadcast to the connected clients. The returned func detaches the
// pin subscriptions again.
func (h *Hub) PublishComponent(component *halremote.RemoteComponent, container *hal.Group) func() {
	component.RegisterStateHandler(func(state halremote.ConnectionState) {
		h.Broadcast(NewConnectionStateMessage(string(state)))
	})
	component.RegisterErrorHandler(func(kind halremote.ConnectionError, message string) {
		h.Broadcast(NewConnectionErrorMessage(string(kind), message))
	})

	removers := make([]func(), 0)
	for _, pin := range container.Pins() {
		remove := pin.OnChange(func(p *hal.Pin, fromRemote bool) {
			h.Broadcast(NewPinUpdateMessage(
				p.Name(),
				string(p.Type()),
				string(p.Direction()),
				p.Value(),
				p.Synced(),
				fromRemote,
			))
		})
		removers = append(removers, remove)
	}

	return func() {
		for _, remove := range removers {
			remove()
		}
	}
}
