package rooms

import (
	"io"
	"log/slog"
	"testing"

	"github.com/go-playground/assert/v2"

	"whiteboard-server/types"
)

type delivery struct {
	conn string
	sig  types.Signal
}

// recorder is a Transport that keeps every signal it is asked to send.
type recorder struct {
	sent []delivery
}

func (r *recorder) Send(conn string, sig types.Signal) {
	r.sent = append(r.sent, delivery{conn: conn, sig: sig})
}

func (r *recorder) to(conn string) []types.Signal {
	var out []types.Signal
	for _, d := range r.sent {
		if d.conn == conn {
			out = append(out, d.sig)
		}
	}
	return out
}

func (r *recorder) events(conn string) []string {
	var out []string
	for _, sig := range r.to(conn) {
		out = append(out, sig.Event)
	}
	return out
}

func (r *recorder) reset() { r.sent = nil }

func newTestRegistry() (*Registry, *recorder) {
	rec := &recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(rec, logger), rec
}

func segment(room string) types.DrawEvent {
	return types.DrawEvent{RoomID: room, StartX: 0, StartY: 0, EndX: 10, EndY: 10, Color: "#ff0000", LineWidth: 2}
}

// TestCreateRoomTwice verifies that a second create with the same id is a
// silent no-op and the first creator keeps ownership.
func TestCreateRoomTwice(t *testing.T) {
	reg, rec := newTestRegistry()

	id, err := reg.CreateRoom("r1", "a")
	assert.Equal(t, err, nil)
	assert.Equal(t, id, "r1")

	_, err = reg.CreateRoom("r1", "b")
	assert.Equal(t, err, ErrRoomExists)
	assert.Equal(t, reg.Len(), 1)

	room, ok := reg.Room("r1")
	assert.Equal(t, ok, true)
	assert.Equal(t, room.Owner(), "a")
	assert.Equal(t, room.CanWrite("a"), true)
	assert.Equal(t, room.IsMember("b"), false)

	assert.Equal(t, rec.events("a"), []string{types.EventRoomCreated})
	assert.Equal(t, len(rec.to("b")), 0)
}

// TestCreateRoomGeneratesID verifies that an empty id is replaced.
func TestCreateRoomGeneratesID(t *testing.T) {
	reg, rec := newTestRegistry()
	reg.newID = func() string { return "generated" }

	id, err := reg.CreateRoom("", "a")
	assert.Equal(t, err, nil)
	assert.Equal(t, id, "generated")

	sigs := rec.to("a")
	assert.Equal(t, len(sigs), 1)
	assert.Equal(t, sigs[0].Payload, "generated")
}

// TestJoinMissingRoom verifies that joining a room that does not exist
// creates nothing and sends nothing.
func TestJoinMissingRoom(t *testing.T) {
	reg, rec := newTestRegistry()

	_, err := reg.JoinRoom("nope", "b")
	assert.Equal(t, err, ErrRoomNotFound)
	assert.Equal(t, reg.Len(), 0)
	assert.Equal(t, len(rec.sent), 0)
	assert.Equal(t, len(reg.RoomsOf("b")), 0)
}

// TestJoinReplaysLog verifies that a joiner receives the full log and the
// room receives the new member list.
func TestJoinReplaysLog(t *testing.T) {
	reg, rec := newTestRegistry()
	_, _ = reg.CreateRoom("r1", "a")
	assert.Equal(t, reg.Draw("a", segment("r1")), nil)
	assert.Equal(t, reg.Draw("a", segment("r1")), nil)
	rec.reset()

	joined, err := reg.JoinRoom("r1", "b")
	assert.Equal(t, err, nil)
	assert.Equal(t, joined.IsOwner, false)
	assert.Equal(t, len(joined.Drawings), 2)

	assert.Equal(t, rec.events("b"), []string{types.EventJoinedRoom, types.EventUserList})
	assert.Equal(t, rec.events("a"), []string{types.EventUserList})

	users := rec.to("a")[0].Payload.([]types.UserEntry)
	assert.Equal(t, len(users), 2)
	assert.Equal(t, users[0].ID, "a")
	assert.Equal(t, users[0].Permission.CanWrite, true)
	assert.Equal(t, users[1].ID, "b")
	assert.Equal(t, users[1].Permission.CanWrite, false)
}

// TestOwnerRejoinKeepsWrite verifies that the owner joining its own room
// is reported as owner and does not lose write access.
func TestOwnerRejoinKeepsWrite(t *testing.T) {
	reg, _ := newTestRegistry()
	_, _ = reg.CreateRoom("r1", "a")

	joined, err := reg.JoinRoom("r1", "a")
	assert.Equal(t, err, nil)
	assert.Equal(t, joined.IsOwner, true)

	room, _ := reg.Room("r1")
	assert.Equal(t, room.CanWrite("a"), true)
	assert.Equal(t, len(room.SnapshotMembers()), 1)
}

// TestDrawWithoutPermission verifies that read-only members and strangers
// cannot append to the log.
func TestDrawWithoutPermission(t *testing.T) {
	reg, rec := newTestRegistry()
	_, _ = reg.CreateRoom("r1", "a")
	_, _ = reg.JoinRoom("r1", "b")
	rec.reset()

	assert.Equal(t, reg.Draw("b", segment("r1")), ErrWriteDenied)
	assert.Equal(t, reg.Draw("stranger", segment("r1")), ErrWriteDenied)
	assert.Equal(t, reg.Draw("a", segment("missing")), ErrRoomNotFound)

	room, _ := reg.Room("r1")
	assert.Equal(t, room.Len(), 0)
	assert.Equal(t, len(rec.sent), 0)
}

// TestClearBoardOwnerOnly verifies that only the owner can clear and that
// every member, initiator included, is told.
func TestClearBoardOwnerOnly(t *testing.T) {
	reg, rec := newTestRegistry()
	_, _ = reg.CreateRoom("r1", "a")
	_, _ = reg.JoinRoom("r1", "b")
	_ = reg.Draw("a", segment("r1"))
	rec.reset()

	assert.Equal(t, reg.ClearBoard("r1", "b"), ErrNotOwner)
	room, _ := reg.Room("r1")
	assert.Equal(t, room.Len(), 1)
	assert.Equal(t, len(rec.sent), 0)

	assert.Equal(t, reg.ClearBoard("r1", "a"), nil)
	assert.Equal(t, room.Len(), 0)
	assert.Equal(t, rec.events("a"), []string{types.EventBoardCleared})
	assert.Equal(t, rec.events("b"), []string{types.EventBoardCleared})
}

// TestSetWritePermission covers the owner check, the owner's own entry
// and permission for a connection that never joined.
func TestSetWritePermission(t *testing.T) {
	reg, rec := newTestRegistry()
	_, _ = reg.CreateRoom("r1", "a")
	_, _ = reg.JoinRoom("r1", "b")
	rec.reset()

	assert.Equal(t, reg.SetWritePermission("r1", "b", "b", true), ErrNotOwner)
	assert.Equal(t, reg.SetWritePermission("r1", "a", "a", false), ErrOwnerPermission)
	assert.Equal(t, reg.SetWritePermission("nope", "a", "b", true), ErrRoomNotFound)
	assert.Equal(t, len(rec.sent), 0)

	assert.Equal(t, reg.SetWritePermission("r1", "a", "ghost", true), nil)
	room, _ := reg.Room("r1")
	assert.Equal(t, room.IsMember("ghost"), true)
	assert.Equal(t, room.CanWrite("ghost"), true)
	assert.Equal(t, reg.RoomsOf("ghost"), []string{"r1"})
	// ghost is not in the room's group, so it only gets the direct signal.
	assert.Equal(t, rec.events("ghost"), []string{types.EventPermissionChanged})
}

// TestOwnerDisconnectClosesRoom verifies that the owner leaving destroys
// the room and every other member is told.
func TestOwnerDisconnectClosesRoom(t *testing.T) {
	reg, rec := newTestRegistry()
	_, _ = reg.CreateRoom("r1", "a")
	_, _ = reg.JoinRoom("r1", "b")
	_, _ = reg.JoinRoom("r1", "c")
	room, _ := reg.Room("r1")
	rec.reset()

	reg.RemoveConnection("a")

	assert.Equal(t, reg.Len(), 0)
	assert.Equal(t, room.State(), Closed)
	assert.Equal(t, rec.events("b"), []string{types.EventRoomClosed})
	assert.Equal(t, rec.events("c"), []string{types.EventRoomClosed})
	assert.Equal(t, len(rec.to("a")), 0)
	assert.Equal(t, len(reg.RoomsOf("b")), 0)

	rec.reset()
	_, err := reg.JoinRoom("r1", "b")
	assert.Equal(t, err, ErrRoomNotFound)
	assert.Equal(t, len(rec.sent), 0)
}

// TestMemberDisconnectKeepsRoom verifies that a non-owner leaving keeps the
// room open and refreshes the member list.
func TestMemberDisconnectKeepsRoom(t *testing.T) {
	reg, rec := newTestRegistry()
	_, _ = reg.CreateRoom("r1", "a")
	_, _ = reg.JoinRoom("r1", "b")
	rec.reset()

	reg.RemoveConnection("b")

	room, ok := reg.Room("r1")
	assert.Equal(t, ok, true)
	assert.Equal(t, room.State(), Open)
	assert.Equal(t, room.IsMember("b"), false)

	assert.Equal(t, rec.events("a"), []string{types.EventUserList})
	users := rec.to("a")[0].Payload.([]types.UserEntry)
	assert.Equal(t, len(users), 1)
	assert.Equal(t, users[0].ID, "a")
	assert.Equal(t, len(rec.to("b")), 0)
}

// TestDisconnectSpansRooms verifies that one connection leaving several
// rooms is handled in a single call.
func TestDisconnectSpansRooms(t *testing.T) {
	reg, rec := newTestRegistry()
	_, _ = reg.CreateRoom("r1", "a")
	_, _ = reg.CreateRoom("r2", "b")
	_, _ = reg.JoinRoom("r2", "a")
	_, _ = reg.CreateRoom("r3", "c")
	assert.Equal(t, reg.RoomsOf("a"), []string{"r1", "r2"})
	rec.reset()

	reg.RemoveConnection("a")

	assert.Equal(t, reg.Len(), 2)
	_, ok := reg.Room("r1")
	assert.Equal(t, ok, false)
	assert.Equal(t, rec.events("b"), []string{types.EventUserList})
	assert.Equal(t, len(rec.to("c")), 0)
	assert.Equal(t, len(reg.RoomsOf("a")), 0)
}

// TestWhiteboardScenario walks through create, join, grant, draw and clear.
func TestWhiteboardScenario(t *testing.T) {
	reg, rec := newTestRegistry()

	_, err := reg.CreateRoom("r1", "A")
	assert.Equal(t, err, nil)
	room, _ := reg.Room("r1")
	assert.Equal(t, room.CanWrite("A"), true)

	joined, err := reg.JoinRoom("r1", "B")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(joined.Drawings), 0)
	assert.Equal(t, room.CanWrite("B"), false)
	rec.reset()

	assert.Equal(t, reg.SetWritePermission("r1", "A", "B", true), nil)
	assert.Equal(t, rec.events("B"), []string{types.EventUserList, types.EventPermissionChanged})
	assert.Equal(t, rec.to("B")[1].Payload, true)
	assert.Equal(t, rec.events("A"), []string{types.EventUserList})
	rec.reset()

	ev := types.DrawEvent{RoomID: "r1", StartX: 0, StartY: 0, EndX: 10, EndY: 10, Color: "red", LineWidth: 2}
	assert.Equal(t, reg.Draw("B", ev), nil)
	assert.Equal(t, room.Drawings(), []types.DrawEvent{ev})
	assert.Equal(t, rec.events("A"), []string{types.EventDraw})
	assert.Equal(t, rec.to("A")[0].Payload, ev)
	assert.Equal(t, len(rec.to("B")), 0)
	rec.reset()

	assert.Equal(t, reg.ClearBoard("r1", "A"), nil)
	assert.Equal(t, room.Len(), 0)
	assert.Equal(t, rec.events("A"), []string{types.EventBoardCleared})
	assert.Equal(t, rec.events("B"), []string{types.EventBoardCleared})
}

func TestSummaries(t *testing.T) {
	reg, _ := newTestRegistry()
	_, _ = reg.CreateRoom("b-room", "x")
	_, _ = reg.CreateRoom("a-room", "y")
	_ = reg.Draw("y", segment("a-room"))

	got := reg.Summaries()
	assert.Equal(t, len(got), 2)
	assert.Equal(t, got[0].ID, "a-room")
	assert.Equal(t, got[0].Drawings, 1)
	assert.Equal(t, got[0].State, "open")
	assert.Equal(t, got[1].Owner, "x")
}

func TestIsRejection(t *testing.T) {
	assert.Equal(t, IsRejection(ErrWriteDenied), true)
	assert.Equal(t, IsRejection(io.EOF), false)
}
