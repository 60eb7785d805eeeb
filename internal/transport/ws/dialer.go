// Package ws provides the websocket transports: client dialers built on
// three websocket libraries and the development relay server.
package ws

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/omochice/livechat/internal/chat"
)

// ErrUnknownDriver is returned by NewDialer for unregistered driver names.
var ErrUnknownDriver = errors.New("unknown websocket driver")

// Options configures a Dialer.
type Options struct {
	// Binary selects binary data frames instead of text frames.
	Binary bool

	// Header is sent with the opening handshake.
	Header http.Header

	// TLSConfig is used for wss:// endpoints. Nil means defaults.
	TLSConfig *tls.Config

	// HandshakeTimeout bounds connect plus handshake. Zero means the
	// caller's context is the only bound.
	HandshakeTimeout time.Duration
}

// Dialer opens a websocket connection to url.
type Dialer interface {
	Dial(ctx context.Context, url string) (chat.Conn, error)
}

var drivers = map[string]func(Options) Dialer{
	"gobwas":  func(o Options) Dialer { return &GobwasDialer{Options: o} },
	"gorilla": func(o Options) Dialer { return &GorillaDialer{Options: o} },
	"nhooyr":  func(o Options) Dialer { return &NhooyrDialer{Options: o} },
}

// NewDialer returns the Dialer registered as driver.
func NewDialer(driver string, opts Options) (Dialer, error) {
	ctor, ok := drivers[strings.ToLower(strings.TrimSpace(driver))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	return ctor(opts), nil
}

// DriverNames lists the registered drivers in sorted order.
func DriverNames() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// handshakeContext applies the handshake timeout to ctx.
func (o Options) handshakeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.HandshakeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.HandshakeTimeout)
}

// deadline returns the ctx deadline or the zero time.
func deadline(ctx context.Context) time.Time {
	d, _ := ctx.Deadline()
	return d
}
