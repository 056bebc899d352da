package codec

import (
	"encoding/json"

	"github.com/gorilla/websocket"

	"whiteboard-server/types"
)

// JSON is the default codec, used by browsers.
var JSON Codec = jsonCodec{}

type jsonCodec struct{}

type jsonFrame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func (jsonCodec) Name() string     { return JSONSubprotocol }
func (jsonCodec) MessageType() int { return websocket.TextMessage }

func (jsonCodec) Encode(sig types.Signal) ([]byte, error) {
	return json.Marshal(sig)
}

func (jsonCodec) Decode(data []byte) (Frame, error) {
	var f jsonFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, err
	}
	if f.Event == "" {
		return Frame{}, ErrMissingEvent
	}
	return Frame{Event: f.Event, Payload: f.Payload}, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
