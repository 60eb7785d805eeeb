package protocol

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding so the same message always
// produces identical bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("protocol: CBOR encoder initialization failed: " + err.Error())
	}
}

// CBORCodec carries frames as CBOR maps in binary websocket frames.
type CBORCodec struct{}

func (CBORCodec) Name() string { return "cbor" }

func (CBORCodec) Binary() bool { return true }

// Encode encodes the message into a CBOR map
func (CBORCodec) Encode(msg Message) ([]byte, error) {
	data, err := encMode.Marshal(toFrame(msg))
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

// Decode decodes a CBOR map into a message. Unknown keys are ignored.
func (CBORCodec) Decode(data []byte) (Message, error) {
	var f frame
	if err := cbor.Unmarshal(data, &f); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return fromFrame(f)
}
