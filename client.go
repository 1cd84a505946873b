package tezbridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by pending and future requests once the client has
// been closed or its transport has stopped.
var ErrClosed = errors.New("tezbridge: client closed")

// RemoteError is an error response from the service.
type RemoteError struct {
	Kind    RequestKind
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s request failed: %s", e.Kind, e.Message)
}

// Client sends Encode and Decode requests to a Service and matches the
// responses to their requests by id, so any number of requests may be in
// flight at once.
type Client struct {
	transport  Transport
	encoder    Encoder
	nextID     atomic.Uint64
	bindingsMu sync.RWMutex
	bindings   map[uint64]*Binding

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once
	err      error

	// RequestTimeout bounds each request when positive. Defaults to
	// DefaultRequestTimeout.
	RequestTimeout time.Duration

	// Logger receives warnings about responses that match no request. If
	// nil, slog.Default() is used.
	Logger *slog.Logger
}

// NewClient creates a client speaking to a service over transport. Call
// Start before making requests.
func NewClient(transport Transport, encoder Encoder) *Client {
	return &Client{
		transport:      transport,
		encoder:        encoder,
		bindings:       make(map[uint64]*Binding),
		done:           make(chan struct{}),
		RequestTimeout: DefaultRequestTimeout,
	}
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Start begins reading responses in the background. It stops when ctx is
// canceled, the client is closed, or the transport ends, after which every
// request fails with ErrClosed.
func (c *Client) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go func() {
		err := c.transport.Listen(ctx, c.handleMessage)
		c.shutdown(err)
	}()
}

// Close stops the client and closes its transport.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	c.shutdown(nil)
	return c.transport.Close()
}

func (c *Client) shutdown(err error) {
	c.doneOnce.Do(func() {
		if err == nil || errors.Is(err, context.Canceled) {
			c.err = ErrClosed
		} else {
			c.err = fmt.Errorf("%w: %w", ErrClosed, err)
		}
		close(c.done)
	})
}

func (c *Client) handleMessage(frame io.Reader, reply func(io.Reader) error) error {
	var res Response
	if err := newMessage(c.encoder, frame, reply).Into(&res); err != nil {
		c.logger().Warn("dropping unreadable response", "error", err)
		return nil
	}

	c.bindingsMu.RLock()
	binding, ok := c.bindings[res.ID]
	c.bindingsMu.RUnlock()
	if !ok {
		c.logger().Warn("dropping response for unknown request", "id", res.ID)
		return nil
	}

	select {
	case binding.responseChan <- &res:
	default:
		c.logger().Warn("dropping duplicate response", "id", res.ID)
	}
	return nil
}
