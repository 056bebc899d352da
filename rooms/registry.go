package rooms

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/oklog/ulid/v2"

	"whiteboard-server/types"
)

// Registry maps room ids to open rooms and keeps a reverse index from a
// connection to every room that lists it as a member, so a disconnect
// touches only those rooms.
type Registry struct {
	rooms  map[string]*Room
	index  map[string]map[string]struct{}
	relay  *Relay
	logger *slog.Logger
	newID  func() string
}

func NewRegistry(t Transport, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rooms:  make(map[string]*Room),
		index:  make(map[string]map[string]struct{}),
		relay:  NewRelay(t),
		logger: logger,
		newID:  func() string { return ulid.Make().String() },
	}
}

// Room returns the open room with the given id.
func (g *Registry) Room(id string) (*Room, bool) {
	r, ok := g.rooms[id]
	return r, ok
}

func (g *Registry) Len() int { return len(g.rooms) }

// Summaries lists every open room ordered by id.
func (g *Registry) Summaries() []types.RoomSummary {
	out := make([]types.RoomSummary, 0, len(g.rooms))
	for _, id := range slices.Sorted(maps.Keys(g.rooms)) {
		out = append(out, g.rooms[id].Summary())
	}
	return out
}

// RoomsOf lists the ids of rooms where conn has a member entry.
func (g *Registry) RoomsOf(conn string) []string {
	return slices.Sorted(maps.Keys(g.index[conn]))
}

// CreateRoom opens a room owned by owner and acknowledges with
// room-created. An empty id gets a generated one. Returns the room id.
func (g *Registry) CreateRoom(id, owner string) (string, error) {
	if id == "" {
		id = g.newID()
	}
	if _, exists := g.rooms[id]; exists {
		return id, ErrRoomExists
	}

	room := newRoom(id, owner)
	g.rooms[id] = room
	g.track(owner, id)

	g.logger.Info("room created", "room", id, "owner", owner)
	g.relay.Unicast(owner, types.Signal{Event: types.EventRoomCreated, Payload: id})
	return id, nil
}

// JoinRoom adds conn as a read-only member, replies with the replay log,
// and sends the new user-list to the room.
func (g *Registry) JoinRoom(id, conn string) (types.JoinedRoom, error) {
	room, ok := g.rooms[id]
	if !ok {
		return types.JoinedRoom{}, ErrRoomNotFound
	}

	room.join(conn)
	g.track(conn, id)

	joined := types.JoinedRoom{
		RoomID:   id,
		Drawings: room.Drawings(),
		IsOwner:  room.IsOwner(conn),
	}
	g.logger.Debug("member joined", "room", id, "conn", conn, "replay", len(joined.Drawings))
	g.relay.Unicast(conn, types.Signal{Event: types.EventJoinedRoom, Payload: joined})
	g.relay.Broadcast(room, types.Signal{Event: types.EventUserList, Payload: room.SnapshotMembers()})
	return joined, nil
}

// Draw appends ev to its room's log and relays it to everyone but the
// sender.
func (g *Registry) Draw(conn string, ev types.DrawEvent) error {
	room, ok := g.rooms[ev.RoomID]
	if !ok {
		return ErrRoomNotFound
	}
	if err := authorizeDraw(room, conn); err != nil {
		return err
	}

	ev = room.appendDraw(ev)
	g.relay.BroadcastExcept(room, types.Signal{Event: types.EventDraw, Payload: ev}, conn)
	return nil
}

// ClearBoard empties the log. Only the owner may clear; every member,
// the owner included, is told.
func (g *Registry) ClearBoard(id, conn string) error {
	room, ok := g.rooms[id]
	if !ok {
		return ErrRoomNotFound
	}
	if err := authorizeOwner(room, conn); err != nil {
		return err
	}

	room.clear()
	g.logger.Debug("board cleared", "room", id)
	g.relay.Broadcast(room, types.Signal{Event: types.EventBoardCleared})
	return nil
}

// SetWritePermission grants or revokes write access for user. The user
// does not have to be a member; an entry is created if missing.
func (g *Registry) SetWritePermission(id, actor, user string, canWrite bool) error {
	room, ok := g.rooms[id]
	if !ok {
		return ErrRoomNotFound
	}
	if err := authorizePermissionChange(room, actor, user); err != nil {
		return err
	}

	if !room.IsMember(user) {
		g.logger.Warn("permission set for a connection that never joined", "room", id, "user", user)
	}
	room.setPermission(user, canWrite)
	g.track(user, id)

	g.relay.Broadcast(room, types.Signal{Event: types.EventUserList, Payload: room.SnapshotMembers()})
	g.relay.Unicast(user, types.Signal{Event: types.EventPermissionChanged, Payload: canWrite})
	return nil
}

// RemoveConnection drops conn from every room it belongs to. Rooms it owns
// are closed and their remaining members get room-closed; other rooms get
// a fresh user-list.
func (g *Registry) RemoveConnection(conn string) {
	for _, id := range g.RoomsOf(conn) {
		room, ok := g.rooms[id]
		if !ok || !room.IsMember(conn) {
			continue
		}

		room.remove(conn)
		if room.IsOwner(conn) {
			g.closeRoom(room)
			continue
		}
		g.relay.Broadcast(room, types.Signal{Event: types.EventUserList, Payload: room.SnapshotMembers()})
	}
	delete(g.index, conn)
}

func (g *Registry) closeRoom(room *Room) {
	room.state = Closed
	delete(g.rooms, room.id)
	for member := range room.members {
		g.untrack(member, room.id)
	}
	g.untrack(room.owner, room.id)

	g.logger.Info("room closed", "room", room.id, "members", len(room.group))
	g.relay.Broadcast(room, types.Signal{Event: types.EventRoomClosed})
}

func (g *Registry) track(conn, room string) {
	set, ok := g.index[conn]
	if !ok {
		set = make(map[string]struct{})
		g.index[conn] = set
	}
	set[room] = struct{}{}
}

func (g *Registry) untrack(conn, room string) {
	set, ok := g.index[conn]
	if !ok {
		return
	}
	delete(set, room)
	if len(set) == 0 {
		delete(g.index, conn)
	}
}
