package tezbridge

import (
	"context"
	"io"
)

// Handler processes one inbound frame. reply sends a frame back to the
// peer the inbound frame came from. A non-nil return stops the transport's
// Listen loop and is returned from it.
type Handler func(frame io.Reader, reply func(io.Reader) error) error

// Transport defines the interface for underlying frame delivery mechanisms.
// Implementations carry whole frames between a service and its clients.
type Transport interface {
	// Send delivers one frame to the remote peer.
	// The reader contains the frame payload and will be consumed by the transport.
	Send(reader io.Reader) error

	// Listen delivers inbound frames to handler, one at a time and in
	// arrival order. It returns nil when the input ends, the context's error
	// when ctx is done, or the first error returned by handler.
	Listen(ctx context.Context, handler Handler) error

	// Close cleans up resources and closes connections.
	Close() error
}
