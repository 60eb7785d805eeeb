package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/omochice/livechat/internal/session"
	"github.com/omochice/livechat/pkg/protocol"
)

func TestLineObserver_PrintsNewEntriesOnce(t *testing.T) {
	var buf bytes.Buffer
	obs := &lineObserver{out: &buf, identity: "alice"}

	first := protocol.Message{Content: "hi", Sender: "alice", Timestamp: "bad"}
	second := protocol.Message{Content: "hey", Sender: "bob", Timestamp: "bad"}

	obs.StateChange(session.Connecting)
	obs.StateChange(session.Connected)
	obs.TranscriptChange([]protocol.Message{first})
	obs.TranscriptChange([]protocol.Message{first, second})
	obs.StateChange(session.Disconnected)

	want := strings.Join([]string{
		"*** Connected ***",
		"[Just now] You: hi",
		"[Just now] bob: hey",
		"*** Disconnected ***",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		t.Errorf("output:\n%s\nwant:\n%s", got, want)
	}
}
