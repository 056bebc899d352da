package rooms

import "errors"

// Rejections. None of these is ever sent to a client; callers log them and
// move on.
var (
	ErrRoomExists      = errors.New("room already exists")
	ErrRoomNotFound    = errors.New("room not found")
	ErrWriteDenied     = errors.New("write permission denied")
	ErrNotOwner        = errors.New("only the room owner may do this")
	ErrOwnerPermission = errors.New("owner write permission is fixed")
)

// IsRejection reports whether err is one of the silent rejections above.
func IsRejection(err error) bool {
	return errors.Is(err, ErrRoomExists) ||
		errors.Is(err, ErrRoomNotFound) ||
		errors.Is(err, ErrWriteDenied) ||
		errors.Is(err, ErrNotOwner) ||
		errors.Is(err, ErrOwnerPermission)
}

func authorizeDraw(room *Room, conn string) error {
	if !room.CanWrite(conn) {
		return ErrWriteDenied
	}
	return nil
}

func authorizeOwner(room *Room, conn string) error {
	if !room.IsOwner(conn) {
		return ErrNotOwner
	}
	return nil
}

// authorizePermissionChange lets the owner change anyone but itself. The
// target does not have to be a member.
func authorizePermissionChange(room *Room, actor, target string) error {
	if err := authorizeOwner(room, actor); err != nil {
		return err
	}
	if room.IsOwner(target) {
		return ErrOwnerPermission
	}
	return nil
}
