package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/omochice/livechat/internal/client"
	"github.com/omochice/livechat/internal/session"
	"github.com/omochice/livechat/internal/transcript"
	"github.com/omochice/livechat/pkg/protocol"
)

// lineObserver prints state changes and new transcript entries.
type lineObserver struct {
	client.BaseObserver

	mu       sync.Mutex
	out      io.Writer
	identity string
	printed  int
}

func (o *lineObserver) StateChange(s session.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch s {
	case session.Connected:
		fmt.Fprintln(o.out, "*** Connected ***")
	case session.Disconnected:
		fmt.Fprintln(o.out, "*** Disconnected ***")
	}
}

// TranscriptChange prints the entries not printed yet. The transcript
// only grows, so the count printed so far marks the new tail.
func (o *lineObserver) TranscriptChange(messages []protocol.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, msg := range messages[min(o.printed, len(messages)):] {
		fmt.Fprintf(o.out, "[%s] %s: %s\n", msg.DisplayTime(), msg.DisplaySender(o.identity), msg.Content)
	}
	o.printed = len(messages)
}

func (o *lineObserver) printf(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.out, format, args...)
}

// runPlain reads lines from in and submits each one until EOF, "quit",
// or ctx is cancelled.
func runPlain(ctx context.Context, c *client.Client, identity string, in io.Reader, out io.Writer) error {
	obs := &lineObserver{out: out, identity: identity}
	c.Subscribe(obs)
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Shutdown()

	obs.printf("Chat - %s\nType your messages (or 'quit' to exit):\n", identity)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return nil
		case err := <-scanErr:
			return err
		case line := <-lines:
			text := strings.TrimSpace(line)
			if text == "quit" || text == "exit" {
				return nil
			}
			err := c.Submit(text)
			switch {
			case err == nil, errors.Is(err, transcript.ErrEmptyContent):
			case errors.Is(err, client.ErrNotConnected):
				obs.printf("not connected, message not sent\n")
			case errors.Is(err, client.ErrClosed):
				return nil
			default:
				return err
			}
		}
	}
}
