package protocol

import (
	"strings"
	"time"
)

// TimestampLayout is the ISO-8601 form stamped on outgoing messages:
// UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// MessageType represents the category of an inbound event when the
// server multiplexes more than one over a single stream.
type MessageType int

const (
	MessageTypeMessage MessageType = iota
	MessageTypeResponse
)

// String returns the wire discriminator of MessageType
func (mt MessageType) String() string {
	switch mt {
	case MessageTypeMessage:
		return "message"
	case MessageTypeResponse:
		return "response"
	default:
		return "unknown"
	}
}

// ParseMessageType converts a wire discriminator to MessageType.
// Missing or unknown discriminators degrade to MessageTypeMessage so the
// frame is still ingested as a plain chat record.
func ParseMessageType(s string) MessageType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "response":
		return MessageTypeResponse
	default:
		return MessageTypeMessage
	}
}

// Message represents a chat message record
type Message struct {
	Type      MessageType
	Content   string
	Sender    string
	Timestamp string
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Time parses the message timestamp.
func (m Message) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, m.Timestamp)
}

// IsOwn reports whether the message was sent by identity. It is a
// rendering aid only and plays no part in deduplication or ordering.
func (m Message) IsOwn(identity string) bool {
	return identity != "" && m.Sender == identity
}

// DisplaySender returns the label shown next to the message.
func (m Message) DisplaySender(identity string) string {
	switch {
	case m.IsOwn(identity):
		return "You"
	case m.Sender == "":
		return "User"
	default:
		return m.Sender
	}
}

// DisplayTime returns the local wall-clock time of the message, or
// "Just now" when the timestamp is absent or unparsable.
func (m Message) DisplayTime() string {
	if m.Timestamp == "" {
		return "Just now"
	}
	t, err := m.Time()
	if err != nil {
		return "Just now"
	}
	return t.Local().Format("15:04:05")
}

// Form selects which fields an outbound frame carries.
type Form int

const (
	// FormMinimal sends content and timestamp; the server attributes the
	// sender from the connection's identity parameter.
	FormMinimal Form = iota
	// FormExtended additionally repeats the sender in every frame.
	FormExtended
)

// ParseForm converts a configuration value to Form.
func ParseForm(s string) (Form, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "minimal":
		return FormMinimal, true
	case "extended":
		return FormExtended, true
	default:
		return FormMinimal, false
	}
}

// Shape strips the fields the form does not transmit.
func (f Form) Shape(m Message) Message {
	out := Message{Content: m.Content, Timestamp: m.Timestamp}
	if f == FormExtended {
		out.Sender = m.Sender
	}
	return out
}
