package hub

import (
	"errors"
	"fmt"

	"whiteboard-server/codec"
	"whiteboard-server/rooms"
	"whiteboard-server/types"
)

var ErrUnknownEvent = errors.New("unknown event")

// command is one decoded client action, applied on the hub goroutine.
type command interface {
	event() string
	apply(reg *rooms.Registry, conn string) error
}

type createRoom struct{ roomID string }

func (createRoom) event() string { return types.EventCreateRoom }

func (c createRoom) apply(reg *rooms.Registry, conn string) error {
	_, err := reg.CreateRoom(c.roomID, conn)
	return err
}

type joinRoom struct{ roomID string }

func (joinRoom) event() string { return types.EventJoinRoom }

func (c joinRoom) apply(reg *rooms.Registry, conn string) error {
	_, err := reg.JoinRoom(c.roomID, conn)
	return err
}

type draw struct{ ev types.DrawEvent }

func (draw) event() string { return types.EventDraw }

func (c draw) apply(reg *rooms.Registry, conn string) error {
	return reg.Draw(conn, c.ev)
}

type clearBoard struct{ roomID string }

func (clearBoard) event() string { return types.EventClearBoard }

func (c clearBoard) apply(reg *rooms.Registry, conn string) error {
	return reg.ClearBoard(c.roomID, conn)
}

type togglePermission struct{ req types.TogglePermission }

func (togglePermission) event() string { return types.EventToggleWritePermission }

func (c togglePermission) apply(reg *rooms.Registry, conn string) error {
	return reg.SetWritePermission(c.req.RoomID, conn, c.req.UserID, c.req.CanWrite)
}

// parseCommand decodes the payload of f for its event. create-room may
// come without a payload.
func parseCommand(c codec.Codec, f codec.Frame) (command, error) {
	switch f.Event {
	case types.EventCreateRoom:
		var id string
		if len(f.Payload) > 0 {
			if err := c.Unmarshal(f.Payload, &id); err != nil {
				return nil, fmt.Errorf("%s: %w", f.Event, err)
			}
		}
		return createRoom{roomID: id}, nil

	case types.EventJoinRoom:
		var id string
		if err := c.Unmarshal(f.Payload, &id); err != nil {
			return nil, fmt.Errorf("%s: %w", f.Event, err)
		}
		return joinRoom{roomID: id}, nil

	case types.EventDraw:
		var ev types.DrawEvent
		if err := c.Unmarshal(f.Payload, &ev); err != nil {
			return nil, fmt.Errorf("%s: %w", f.Event, err)
		}
		return draw{ev: ev}, nil

	case types.EventClearBoard:
		var id string
		if err := c.Unmarshal(f.Payload, &id); err != nil {
			return nil, fmt.Errorf("%s: %w", f.Event, err)
		}
		return clearBoard{roomID: id}, nil

	case types.EventToggleWritePermission:
		var req types.TogglePermission
		if err := c.Unmarshal(f.Payload, &req); err != nil {
			return nil, fmt.Errorf("%s: %w", f.Event, err)
		}
		return togglePermission{req: req}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
}
