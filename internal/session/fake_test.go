package session_test

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/omochice/livechat/internal/chat"
	"github.com/omochice/livechat/internal/session"
)

// fakeConn is an in-memory chat.Conn.
type fakeConn struct {
	incoming chan []byte
	failRead chan error
	done     chan struct{}

	mu       sync.Mutex
	written  [][]byte
	writeErr error
	closed   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan []byte, 16),
		failRead: make(chan error, 1),
		done:     make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, io.EOF
	case err := <-c.failRead:
		return nil, err
	case data := <-c.incoming:
		return data, nil
	}
}

func (c *fakeConn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
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

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

var _ chat.Conn = (*fakeConn)(nil)

// fakeDialer hands out scripted results, one per Dial call. A nil conn
// entry means the attempt fails.
type fakeDialer struct {
	mu      sync.Mutex
	results []*fakeConn
	urls    []string
	block   chan struct{}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (chat.Conn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
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
	return len(d.urls)
}

var _ session.Dialer = (*fakeDialer)(nil)

// recorder is a session.Listener that records every notification.
type recorder struct {
	states   []session.State
	opened   int
	closed   int
	received []string
}

func (r *recorder) StateChanged(s session.State) { r.states = append(r.states, s) }
func (r *recorder) SessionOpened() { r.opened++ }
func (r *recorder) SessionClosed() { r.closed++ }
func (r *recorder) MessageReceived(p []byte) { r.received = append(r.received, string(p)) }

var _ session.Listener = (*recorder)(nil)
