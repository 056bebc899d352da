package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"

	"whiteboard-server/types"
)

// CBOR is the binary codec for native clients.
var CBOR Codec = cborCodec{}

// encMode uses Core Deterministic Encoding so the same signal always
// produces the same bytes.
var encMode cbor.EncMode

// decMode decodes untyped maps as map[string]any and ignores unknown
// fields.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

type cborCodec struct{}

type cborFrame struct {
	Event   string          `cbor:"event"`
	Payload cbor.RawMessage `cbor:"payload"`
}

func (cborCodec) Name() string     { return CBORSubprotocol }
func (cborCodec) MessageType() int { return websocket.BinaryMessage }

func (cborCodec) Encode(sig types.Signal) ([]byte, error) {
	return encMode.Marshal(sig)
}

func (cborCodec) Decode(data []byte) (Frame, error) {
	var f cborFrame
	if err := decMode.Unmarshal(data, &f); err != nil {
		return Frame{}, err
	}
	if f.Event == "" {
		return Frame{}, ErrMissingEvent
	}
	return Frame{Event: f.Event, Payload: f.Payload}, nil
}

func (cborCodec) Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
