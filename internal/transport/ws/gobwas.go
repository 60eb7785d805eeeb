package ws

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/livechat/internal/chat"
)

// GobwasDialer dials with github.com/gobwas/ws. It is the default driver.
type GobwasDialer struct {
	Options
}

// Dial implements Dialer.
func (d *GobwasDialer) Dial(ctx context.Context, url string) (chat.Conn, error) {
	dialer := ws.Dialer{
		Timeout:   d.HandshakeTimeout,
		TLSConfig: d.TLSConfig,
	}
	if len(d.Header) > 0 {
		dialer.Header = ws.HandshakeHeaderHTTP(d.Header)
	}

	conn, br, _, err := dialer.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return NewGobwasConn(conn, br, d.Binary), nil
}

// GobwasConn wraps a client-side net.Conn that completed a gobwas
// handshake.
type GobwasConn struct {
	conn    net.Conn
	rw      io.ReadWriter
	op      ws.OpCode
	readMu  sync.Mutex
	writeMu sync.Mutex
	once    sync.Once
}

// NewGobwasConn wraps conn. br holds bytes the handshake read past the
// response and may be nil.
func NewGobwasConn(conn net.Conn, br *bufio.Reader, binary bool) *GobwasConn {
	var rw io.ReadWriter = conn
	if br != nil {
		rw = struct {
			io.Reader
			io.Writer
		}{br, conn}
	}
	op := ws.OpText
	if binary {
		op = ws.OpBinary
	}
	return &GobwasConn{conn: conn, rw: rw, op: op}
}

// Read implements chat.Conn. Ping and close frames are answered inside
// wsutil.
func (c *GobwasConn) Read(ctx context.Context) ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	_ = c.conn.SetReadDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	data, _, err := wsutil.ReadServerData(c.rw)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return data, nil
}

// Write implements chat.Conn.
func (c *GobwasConn) Write(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(deadline(ctx))
	return wsutil.WriteClientMessage(c.conn, c.op, data)
}

// Close implements chat.Conn. A close frame is sent before the socket
// is closed.
func (c *GobwasConn) Close() error {
	var err error
	c.once.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = wsutil.WriteClientMessage(c.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// RemoteAddr implements chat.Conn.
func (c *GobwasConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
