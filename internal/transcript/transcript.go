// Package transcript holds the ordered, deduplicated record of chat
// messages shown to the user.
package transcript

import (
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/omochice/livechat/pkg/protocol"
)

// ErrEmptyContent is returned by Compose for blank input.
var ErrEmptyContent = errors.New("message content is empty")

// Key identifies a message by its (timestamp, sender, content) triple.
type Key [32]byte

// KeyOf hashes the identity triple of m. Each field is length-prefixed
// so that field boundaries cannot collide.
func KeyOf(m protocol.Message) Key {
	h := blake3.New()
	var n [8]byte
	for _, field := range [...]string{m.Timestamp, m.Sender, m.Content} {
		binary.BigEndian.PutUint64(n[:], uint64(len(field)))
		_, _ = h.Write(n[:])
		_, _ = h.WriteString(field)
	}
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// Log is an insertion-ordered transcript. It is not safe for concurrent
// use; the event loop owns it.
type Log struct {
	messages []protocol.Message
	seen     map[Key]struct{}
}

// New returns an empty Log.
func New() *Log {
	return &Log{seen: make(map[Key]struct{})}
}

// Ingest appends m unless a message with the same identity triple is
// already present. It reports whether the transcript changed.
func (l *Log) Ingest(m protocol.Message) bool {
	k := KeyOf(m)
	if _, ok := l.seen[k]; ok {
		return false
	}
	l.seen[k] = struct{}{}
	l.messages = append(l.messages, m)
	return true
}

// Contains reports whether a message with m's identity triple is present.
func (l *Log) Contains(m protocol.Message) bool {
	_, ok := l.seen[KeyOf(m)]
	return ok
}

// Len returns the number of messages.
func (l *Log) Len() int { return len(l.messages) }

// Snapshot returns a copy of the messages in arrival order.
func (l *Log) Snapshot() []protocol.Message {
	out := make([]protocol.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Compose builds an outbound message from user input, trimming
// surrounding whitespace. It does not add the message to any Log.
func Compose(text, sender string, now time.Time) (protocol.Message, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return protocol.Message{}, ErrEmptyContent
	}
	return protocol.Message{
		Type:      protocol.MessageTypeMessage,
		Content:   content,
		Sender:    sender,
		Timestamp: protocol.FormatTimestamp(now),
	}, nil
}
