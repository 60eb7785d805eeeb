package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrMalformedFrame is returned when an inbound frame cannot be
	// parsed or carries no content.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnknownCodec is returned by CodecByName for unregistered names.
	ErrUnknownCodec = errors.New("unknown codec")
)

// Codec converts messages to and from websocket frame payloads.
type Codec interface {
	// Name is the configuration name of the codec.
	Name() string

	// Binary reports whether payloads travel as binary frames rather
	// than text frames.
	Binary() bool

	// Encode serializes an outbound message.
	Encode(msg Message) ([]byte, error)

	// Decode parses an inbound frame, unwrapping a nested "data" object
	// when present.
	Decode(data []byte) (Message, error)
}

// frame is the wire shape shared by every codec.
type frame struct {
	Type      string `json:"type,omitempty" cbor:"type,omitempty"`
	Content   string `json:"content" cbor:"content"`
	Sender    string `json:"sender,omitempty" cbor:"sender,omitempty"`
	Timestamp string `json:"timestamp,omitempty" cbor:"timestamp,omitempty"`
	Data      *frame `json:"data,omitempty" cbor:"data,omitempty"`
}

// toFrame converts a Message to its wire shape. The discriminator is
// only written for non-default categories.
func toFrame(m Message) frame {
	f := frame{
		Content:   m.Content,
		Sender:    m.Sender,
		Timestamp: m.Timestamp,
	}
	if m.Type != MessageTypeMessage {
		f.Type = m.Type.String()
	}
	return f
}

// fromFrame converts a decoded wire frame to a Message. A nested data
// object carries the record while the outer object carries the
// discriminator.
func fromFrame(f frame) (Message, error) {
	inner := f
	if f.Data != nil {
		inner = *f.Data
	}
	if strings.TrimSpace(inner.Content) == "" {
		return Message{}, fmt.Errorf("%w: missing content", ErrMalformedFrame)
	}
	return Message{
		Type:      ParseMessageType(f.Type),
		Content:   inner.Content,
		Sender:    inner.Sender,
		Timestamp: inner.Timestamp,
	}, nil
}

// JSONCodec is the default text-frame codec.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Binary() bool { return false }

// Encode encodes the message into a JSON object
func (JSONCodec) Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(toFrame(msg))
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

// Decode decodes a JSON object into a message
func (JSONCodec) Decode(data []byte) (Message, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return fromFrame(f)
}

var registry = map[string]Codec{
	"json":     JSONCodec{},
	"cbor":     CBORCodec{},
	"protobuf": ProtoCodec{},
}

// CodecByName returns the registered codec for name.
func CodecByName(name string) (Codec, error) {
	c, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	return c, nil
}

// CodecNames lists the registered codec names in sorted order.
func CodecNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
