package client

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/omochice/livechat/internal/chat"
	"github.com/omochice/livechat/internal/session"
	"github.com/omochice/livechat/pkg/protocol"
)

type fakeConn struct {
	incoming chan []byte
	done     chan struct{}

	mu      sync.Mutex
	written [][]byte
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, io.EOF
	case data := <-c.incoming:
		return data, nil
	}
}

func (c *fakeConn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.ErrClosedPipe
	}
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *fakeConn) RemoteAddr() string { return "fake:0" }

func (c *fakeConn) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

var _ chat.Conn = (*fakeConn)(nil)

// fakeDialer hands out scripted results in order. A nil entry, or
// running out of entries, fails the attempt.
type fakeDialer struct {
	mu      sync.Mutex
	results []*fakeConn
	calls   int
	block   chan struct{}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (chat.Conn, error) {
	d.mu.Lock()
	d.calls++
	var conn *fakeConn
	if len(d.results) > 0 {
		conn = d.results[0]
		d.results = d.results[1:]
	}
	block := d.block
	d.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if conn == nil {
		return nil, errors.New("connection refused")
	}
	return conn, nil
}

func (d *fakeDialer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

var _ session.Dialer = (*fakeDialer)(nil)

// observer records notifications from the loop goroutine.
type observer struct {
	mu         sync.Mutex
	states     []session.State
	transcript []protocol.Message
	changes    int
	pending    []bool
	notify     chan struct{}
}

func newObserver() *observer {
	return &observer{notify: make(chan struct{}, 1)}
}

func (o *observer) poke() {
	select {
	case o.notify <- struct{}{}:
	default:
	}
}

func (o *observer) StateChange(s session.State) {
	o.mu.Lock()
	o.states = append(o.states, s)
	o.mu.Unlock()
	o.poke()
}

func (o *observer) TranscriptChange(m []protocol.Message) {
	o.mu.Lock()
	o.transcript = m
	o.changes++
	o.mu.Unlock()
	o.poke()
}

func (o *observer) ReplyPending(p bool) {
	o.mu.Lock()
	o.pending = append(o.pending, p)
	o.mu.Unlock()
	o.poke()
}

func (o *observer) State() session.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.states) == 0 {
		return session.Disconnected
	}
	return o.states[len(o.states)-1]
}

func (o *observer) States() []session.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]session.State(nil), o.states...)
}

func (o *observer) Transcript() []protocol.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transcript
}

func (o *observer) Changes() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.changes
}

func (o *observer) Pending() []bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]bool(nil), o.pending...)
}

// waitFor blocks until cond holds.
func (o *observer) waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-o.notify:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timeout waiting for %s", what)
		}
	}
}

var _ Observer = (*observer)(nil)
