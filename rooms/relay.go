package rooms

import "whiteboard-server/types"

// Transport delivers a signal to one connection. Implementations must not
// block and must not call back into the registry.
type Transport interface {
	Send(conn string, sig types.Signal)
}

// Relay picks the audience for a signal.
type Relay struct {
	transport Transport
}

func NewRelay(t Transport) *Relay {
	return &Relay{transport: t}
}

func (r *Relay) Unicast(conn string, sig types.Signal) {
	r.transport.Send(conn, sig)
}

// Broadcast sends to every connection in the room's group.
func (r *Relay) Broadcast(room *Room, sig types.Signal) {
	r.BroadcastExcept(room, sig, "")
}

// BroadcastExcept sends to the room's group minus except.
func (r *Relay) BroadcastExcept(room *Room, sig types.Signal, except string) {
	for _, id := range room.order {
		if id == except {
			continue
		}
		if _, ok := room.group[id]; ok {
			r.transport.Send(id, sig)
		}
	}
}
