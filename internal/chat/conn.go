// Package chat holds the transport-agnostic pieces shared by the client
// and the development relay.
package chat

import "context"

// Conn abstracts one websocket connection regardless of the library that
// produced it. Frame type (text or binary) is fixed when the Conn is
// created.
type Conn interface {
	// Read blocks until one complete data frame arrives. Control frames
	// are handled internally. Returns an error once the connection is
	// closed or ctx is done.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a single data frame.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection. Safe to call more than once.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
