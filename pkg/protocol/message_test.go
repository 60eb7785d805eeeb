package protocol_test

import (
	"testing"
	"time"

	"github.com/omochice/livechat/pkg/protocol"
)

func TestParseMessageType(t *testing.T) {
	tests := []struct {
		in   string
		want protocol.MessageType
	}{
		{in: "message", want: protocol.MessageTypeMessage},
		{in: "response", want: protocol.MessageTypeResponse},
		{in: " RESPONSE ", want: protocol.MessageTypeResponse},
		{in: "", want: protocol.MessageTypeMessage},
		{in: "typing", want: protocol.MessageTypeMessage},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := protocol.ParseMessageType(tt.in); got != tt.want {
				t.Errorf("ParseMessageType(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMessageType_String(t *testing.T) {
	if got := protocol.MessageType(42).String(); got != "unknown" {
		t.Errorf("String() = %q, want %q", got, "unknown")
	}
}

func TestFormatTimestamp(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 45, 123456789, time.FixedZone("JST", 9*60*60))
	want := "2024-05-01T03:30:45.123Z"
	if got := protocol.FormatTimestamp(at); got != want {
		t.Errorf("FormatTimestamp() = %q, want %q", got, want)
	}
}

func TestMessage_DisplaySender(t *testing.T) {
	tests := []struct {
		name string
		msg  protocol.Message
		want string
	}{
		{name: "own message", msg: protocol.Message{Sender: "user1"}, want: "You"},
		{name: "other participant", msg: protocol.Message{Sender: "user2"}, want: "user2"},
		{name: "absent sender", msg: protocol.Message{}, want: "User"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.DisplaySender("user1"); got != tt.want {
				t.Errorf("DisplaySender() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessage_IsOwn_EmptyIdentity(t *testing.T) {
	msg := protocol.Message{Content: "hi"}
	if msg.IsOwn("") {
		t.Error("IsOwn(\"\") = true for a message without sender, want false")
	}
}

func TestMessage_DisplayTime(t *testing.T) {
	if got := (protocol.Message{}).DisplayTime(); got != "Just now" {
		t.Errorf("DisplayTime() without timestamp = %q, want %q", got, "Just now")
	}
	if got := (protocol.Message{Timestamp: "yesterday"}).DisplayTime(); got != "Just now" {
		t.Errorf("DisplayTime() with bad timestamp = %q, want %q", got, "Just now")
	}

	at := time.Date(2024, 5, 1, 3, 30, 45, 0, time.UTC)
	msg := protocol.Message{Timestamp: protocol.FormatTimestamp(at)}
	want := at.Local().Format("15:04:05")
	if got := msg.DisplayTime(); got != want {
		t.Errorf("DisplayTime() = %q, want %q", got, want)
	}
}

func TestForm_Shape(t *testing.T) {
	msg := protocol.Message{
		Type:      protocol.MessageTypeResponse,
		Content:   "hello",
		Sender:    "user1",
		Timestamp: "2024-05-01T03:30:45.000Z",
	}

	minimal := protocol.FormMinimal.Shape(msg)
	if minimal.Sender != "" {
		t.Errorf("minimal Sender = %q, want empty", minimal.Sender)
	}
	if minimal.Type != protocol.MessageTypeMessage {
		t.Errorf("minimal Type = %v, want %v", minimal.Type, protocol.MessageTypeMessage)
	}
	if minimal.Content != "hello" || minimal.Timestamp != msg.Timestamp {
		t.Errorf("minimal = %+v, content or timestamp lost", minimal)
	}

	extended := protocol.FormExtended.Shape(msg)
	if extended.Sender != "user1" {
		t.Errorf("extended Sender = %q, want %q", extended.Sender, "user1")
	}
}

func TestParseForm(t *testing.T) {
	if f, ok := protocol.ParseForm("extended"); !ok || f != protocol.FormExtended {
		t.Errorf("ParseForm(extended) = %v, %v", f, ok)
	}
	if f, ok := protocol.ParseForm(""); !ok || f != protocol.FormMinimal {
		t.Errorf("ParseForm(\"\") = %v, %v", f, ok)
	}
	if _, ok := protocol.ParseForm("verbose"); ok {
		t.Error("ParseForm(verbose) ok = true, want false")
	}
}
