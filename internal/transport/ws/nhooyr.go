package ws

import (
	"context"
	"fmt"
	"net/http"

	"nhooyr.io/websocket"

	"github.com/omochice/livechat/internal/chat"
)

// NhooyrDialer dials with nhooyr.io/websocket.
type NhooyrDialer struct {
	Options
}

// Dial implements Dialer.
func (d *NhooyrDialer) Dial(ctx context.Context, url string) (chat.Conn, error) {
	ctx, cancel := d.handshakeContext(ctx)
	defer cancel()

	opts := &websocket.DialOptions{HTTPHeader: d.Header}
	if d.TLSConfig != nil {
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{TLSClientConfig: d.TLSConfig},
		}
	}

	conn, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return NewConn(conn, d.Binary), nil
}

// Conn adapts nhooyr.io/websocket to chat.Conn. The relay server uses it
// for accepted connections as well.
type Conn struct {
	conn        *websocket.Conn
	messageType websocket.MessageType
	remoteAddr  string
}

// NewConn wraps a websocket.Conn with empty remote address.
func NewConn(conn *websocket.Conn, binary bool) *Conn {
	return NewConnWithAddr(conn, binary, "")
}

// NewConnWithAddr wraps a websocket.Conn with the specified remote address.
func NewConnWithAddr(conn *websocket.Conn, binary bool, addr string) *Conn {
	messageType := websocket.MessageText
	if binary {
		messageType = websocket.MessageBinary
	}
	return &Conn{conn: conn, messageType: messageType, remoteAddr: addr}
}

// Read implements chat.Conn.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, c.messageType, data)
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}
