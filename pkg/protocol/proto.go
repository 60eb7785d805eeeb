package protocol

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtoCodec carries frames as google.protobuf.Struct messages in binary
// websocket frames. Field names match the JSON wire contract.
type ProtoCodec struct{}

func (ProtoCodec) Name() string { return "protobuf" }

func (ProtoCodec) Binary() bool { return true }

// Encode encodes the message into bytes using protobuf
func (ProtoCodec) Encode(msg Message) ([]byte, error) {
	data, err := proto.Marshal(toProto(toFrame(msg)))
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

// Decode decodes bytes into a message using protobuf
func (ProtoCodec) Decode(data []byte) (Message, error) {
	pbMsg := &structpb.Struct{}
	if err := proto.Unmarshal(data, pbMsg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return fromFrame(fromProto(pbMsg))
}

// toProto converts a wire frame to a protobuf Struct, omitting empty
// optional fields the same way the JSON form does.
func toProto(f frame) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"content": structpb.NewStringValue(f.Content),
	}
	if f.Type != "" {
		fields["type"] = structpb.NewStringValue(f.Type)
	}
	if f.Sender != "" {
		fields["sender"] = structpb.NewStringValue(f.Sender)
	}
	if f.Timestamp != "" {
		fields["timestamp"] = structpb.NewStringValue(f.Timestamp)
	}
	if f.Data != nil {
		fields["data"] = structpb.NewStructValue(toProto(*f.Data))
	}
	return &structpb.Struct{Fields: fields}
}

// fromProto populates a wire frame from a protobuf Struct. Non-string
// values read as empty strings.
func fromProto(s *structpb.Struct) frame {
	fields := s.GetFields()
	f := frame{
		Type:      fields["type"].GetStringValue(),
		Content:   fields["content"].GetStringValue(),
		Sender:    fields["sender"].GetStringValue(),
		Timestamp: fields["timestamp"].GetStringValue(),
	}
	if data := fields["data"].GetStructValue(); data != nil {
		inner := fromProto(data)
		f.Data = &inner
	}
	return f
}
