package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Client to server events.
const (
	EventCreateRoom            = "create-room"
	EventJoinRoom              = "join-room"
	EventDraw                  = "draw"
	EventClearBoard            = "clear-board"
	EventToggleWritePermission = "toggle-write-permission"
)

// Server to client events. EventDraw is reused for the relay.
const (
	EventConnected         = "connected"
	EventRoomCreated       = "room-created"
	EventJoinedRoom        = "joined-room"
	EventUserList          = "user-list"
	EventPermissionChanged = "permission-changed"
	EventBoardCleared      = "board-cleared"
	EventRoomClosed        = "room-closed"
)

// DrawEvent is one line segment. Coordinates are in the sender's canvas
// pixels and are relayed untouched.
type DrawEvent struct {
	RoomID    string  `json:"roomId"`
	StartX    float64 `json:"startX"`
	StartY    float64 `json:"startY"`
	EndX      float64 `json:"endX"`
	EndY      float64 `json:"endY"`
	Color     string  `json:"color"`
	LineWidth Width   `json:"lineWidth"`
}

// Width is a stroke width. Browsers read it from an <input> and send it as
// a string, so the JSON form accepts both "2" and 2.
type Width float64

func (w *Width) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*w = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid line width %s: %w", data, err)
	}
	*w = Width(f)
	return nil
}

type Permission struct {
	CanWrite bool `json:"canWrite"`
}

// UserEntry is one row of a user-list. It is encoded as the pair
// [connectionId, {"canWrite": bool}].
type UserEntry struct {
	_          struct{} `cbor:",toarray"`
	ID         string
	Permission Permission
}

func (e UserEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.ID, e.Permission})
}

func (e *UserEntry) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("user entry: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &e.ID); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &e.Permission)
}

// JoinedRoom acknowledges a join and carries the full replay log.
type JoinedRoom struct {
	RoomID   string      `json:"roomId"`
	Drawings []DrawEvent `json:"drawings"`
	IsOwner  bool        `json:"isOwner"`
}

type TogglePermission struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	CanWrite bool   `json:"canWrite"`
}

// Signal is an outbound event before it is encoded for a connection.
type Signal struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// RoomSummary is the read-only view served by the HTTP API.
type RoomSummary struct {
	ID       string      `json:"id"`
	Owner    string      `json:"owner"`
	State    string      `json:"state"`
	Members  []UserEntry `json:"members"`
	Drawings int         `json:"drawings"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
