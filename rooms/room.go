// Package rooms holds whiteboard room state: the registry of open rooms,
// per-member write permissions, and the drawing log replayed to joiners.
//
// Nothing in this package locks. The registry is meant to be owned by a
// single goroutine that applies one event at a time.
package rooms

import "whiteboard-server/types"

type State int

const (
	Open State = iota
	Closed
)

func (s State) String() string {
	if s == Closed {
		return "closed"
	}
	return "open"
}

// Room is one shared canvas.
//
// members holds write permissions and may contain ids that never joined
// (see SetPermission). group holds the connections that joined and receive
// room broadcasts.
type Room struct {
	id      string
	owner   string
	state   State
	members map[string]types.Permission
	order   []string
	group   map[string]struct{}
	log     []types.DrawEvent
}

func newRoom(id, owner string) *Room {
	r := &Room{
		id:      id,
		owner:   owner,
		members: make(map[string]types.Permission),
		group:   make(map[string]struct{}),
	}
	r.setPermission(owner, true)
	r.group[owner] = struct{}{}
	return r
}

func (r *Room) ID() string { return r.id }

func (r *Room) Owner() string { return r.owner }

func (r *Room) State() State { return r.state }

// Len is the number of strokes in the log.
func (r *Room) Len() int { return len(r.log) }

func (r *Room) IsOwner(conn string) bool { return conn == r.owner }

func (r *Room) IsMember(conn string) bool {
	_, ok := r.members[conn]
	return ok
}

func (r *Room) CanWrite(conn string) bool {
	p, ok := r.members[conn]
	return ok && p.CanWrite
}

// Drawings returns a copy of the log.
func (r *Room) Drawings() []types.DrawEvent {
	out := make([]types.DrawEvent, len(r.log))
	copy(out, r.log)
	return out
}

// SnapshotMembers lists members in the order they were first added.
func (r *Room) SnapshotMembers() []types.UserEntry {
	out := make([]types.UserEntry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, types.UserEntry{ID: id, Permission: r.members[id]})
	}
	return out
}

func (r *Room) appendDraw(ev types.DrawEvent) types.DrawEvent {
	r.log = append(r.log, ev)
	return ev
}

func (r *Room) clear() {
	r.log = nil
}

// setPermission upserts a member entry. An existing entry keeps its place
// in the display order.
func (r *Room) setPermission(conn string, canWrite bool) {
	if _, ok := r.members[conn]; !ok {
		r.order = append(r.order, conn)
	}
	r.members[conn] = types.Permission{CanWrite: canWrite}
}

func (r *Room) join(conn string) {
	r.setPermission(conn, conn == r.owner)
	r.group[conn] = struct{}{}
}

func (r *Room) remove(conn string) {
	if _, ok := r.members[conn]; ok {
		delete(r.members, conn)
		for i, id := range r.order {
			if id == conn {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	delete(r.group, conn)
}

// Summary is the read-only view served over HTTP.
func (r *Room) Summary() types.RoomSummary {
	return types.RoomSummary{
		ID:       r.id,
		Owner:    r.owner,
		State:    r.state.String(),
		Members:  r.SnapshotMembers(),
		Drawings: len(r.log),
	}
}
