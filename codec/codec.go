// Package codec encodes whiteboard envelopes for the wire. The codec for a
// connection is picked by WebSocket subprotocol; clients that ask for none
// get JSON text frames.
package codec

import (
	"errors"

	"github.com/gorilla/websocket"

	"whiteboard-server/types"
)

const (
	JSONSubprotocol = "whiteboard.v1.json"
	CBORSubprotocol = "whiteboard.v1.cbor"
)

var ErrMissingEvent = errors.New("codec: frame has no event name")

// Frame is a decoded inbound envelope whose payload has not been decoded
// yet.
type Frame struct {
	Event   string
	Payload []byte
}

type Codec interface {
	// Name is the subprotocol this codec answers to.
	Name() string
	// MessageType is the websocket frame type to write with.
	MessageType() int
	Encode(sig types.Signal) ([]byte, error)
	Decode(data []byte) (Frame, error)
	// Unmarshal decodes a Frame payload.
	Unmarshal(data []byte, v any) error
}

// Subprotocols lists the supported subprotocols in preference order.
func Subprotocols() []string {
	return []string{JSONSubprotocol, CBORSubprotocol}
}

// ForSubprotocol returns the codec negotiated for a connection.
func ForSubprotocol(name string) Codec {
	if name == CBORSubprotocol {
		return CBOR
	}
	return JSON
}

// Accepts reports whether a frame of the given websocket type can be read
// by c.
func Accepts(c Codec, messageType int) bool {
	switch messageType {
	case websocket.TextMessage, websocket.BinaryMessage:
		return messageType == c.MessageType()
	default:
		return false
	}
}
