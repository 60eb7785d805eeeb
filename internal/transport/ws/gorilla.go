package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/omochice/livechat/internal/chat"
)

// GorillaDialer dials with github.com/gorilla/websocket.
type GorillaDialer struct {
	Options
}

// Dial implements Dialer.
func (d *GorillaDialer) Dial(ctx context.Context, url string) (chat.Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
		TLSClientConfig:  d.TLSConfig,
	}

	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return NewGorillaConn(conn, d.Binary), nil
}

// GorillaConn adapts a gorilla websocket connection to chat.Conn.
type GorillaConn struct {
	conn        *websocket.Conn
	messageType int
	readMu      sync.Mutex
	writeMu     sync.Mutex
	once        sync.Once
}

// NewGorillaConn wraps conn.
func NewGorillaConn(conn *websocket.Conn, binary bool) *GorillaConn {
	messageType := websocket.TextMessage
	if binary {
		messageType = websocket.BinaryMessage
	}
	return &GorillaConn{conn: conn, messageType: messageType}
}

// Read implements chat.Conn.
func (c *GorillaConn) Read(ctx context.Context) ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Write implements chat.Conn.
func (c *GorillaConn) Write(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(deadline(ctx))
	return c.conn.WriteMessage(c.messageType, data)
}

// Close implements chat.Conn.
func (c *GorillaConn) Close() error {
	var err error
	c.once.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

// RemoteAddr implements chat.Conn.
func (c *GorillaConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
