// Package nats provides a NATS transport for tezbridge. Frames travel over
// a chunked streaming protocol so a frame of any size can be sent without
// loading it into a single NATS message.
//
// A service transport queue subscribes to the service's subject, so any
// number of service instances share the load. A client transport listens
// on a private inbox and names it as the reply subject of each frame it
// sends.
package nats

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/RobertWHurst/tezbridge"
)

// SendTimeout is the maximum time to wait for a send acknowledgment.
const SendTimeout = 5 * time.Second

// ChunkSize is the size of each chunk when streaming large frames.
const ChunkSize = 1024 * 16

// ChunkTimeout is the maximum time to wait for the next chunk of a frame.
var ChunkTimeout = 5 * time.Minute

var (
	// ErrNoTarget is returned by Send on a service transport, which only
	// answers frames.
	ErrNoTarget = errors.New("nats: transport has no send target")

	// ErrFrameTooLarge is reported when an incoming stream grows past the
	// transport's MaxFrameSize.
	ErrFrameTooLarge = errors.New("nats: frame exceeds maximum size")
)

// Transport implements tezbridge.Transport using NATS as the message
// broker.
type Transport struct {
	NatsConnection *nats.Conn
	Subscription   *nats.Subscription

	// MaxFrameSize bounds incoming frames in bytes. Zero means unlimited.
	MaxFrameSize int

	// Logger receives warnings about frames that could not be received.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	target string
	inbox  string
	frames chan inbound

	closed    chan struct{}
	closeOnce sync.Once
}

type inbound struct {
	reader       io.Reader
	replySubject string
}

// Send is the header that opens a stream.
type Send struct {
	ReplySubject string `msgpack:"replySubject"`
}

// SendAck is the acknowledgment response containing the data subject for
// streaming.
type SendAck struct {
	DataSubject string `msgpack:"dataSubject"`
}

// Chunk represents a piece of streamed data with sequencing information.
type Chunk struct {
	Index int    `msgpack:"index"`
	Data  []byte `msgpack:"data,omitempty"`
	Error string `msgpack:"error,omitempty"`
	IsEOF bool   `msgpack:"isEof,omitempty"`
}

var _ tezbridge.Transport = &Transport{}

// NewServiceTransport creates the transport a service listens on. All
// instances created with the same serviceName share its requests.
func NewServiceTransport(natsConnection *nats.Conn, serviceName string) (*Transport, error) {
	t := newTransport(natsConnection)
	subject := namespace(serviceName)
	subscription, err := natsConnection.QueueSubscribe(subject, subject, t.receive)
	if err != nil {
		return nil, err
	}
	t.Subscription = subscription
	return t, nil
}

// NewClientTransport creates a transport sending requests to the service
// named serviceName and receiving its responses on a private inbox.
func NewClientTransport(natsConnection *nats.Conn, serviceName string) (*Transport, error) {
	t := newTransport(natsConnection)
	t.target = namespace(serviceName)
	t.inbox = natsConnection.NewRespInbox()
	subscription, err := natsConnection.Subscribe(t.inbox, t.receive)
	if err != nil {
		return nil, err
	}
	t.Subscription = subscription
	return t, nil
}

func newTransport(natsConnection *nats.Conn) *Transport {
	return &Transport{
		NatsConnection: natsConnection,
		frames:         make(chan inbound),
		closed:         make(chan struct{}),
	}
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// Send streams the frame to the service. Only client transports can send.
func (t *Transport) Send(reader io.Reader) error {
	if t.target == "" {
		return ErrNoTarget
	}
	return t.sendTo(t.target, t.inbox, reader)
}

func (t *Transport) sendTo(subject, replySubject string, reader io.Reader) error {
	sendBuf, err := msgpack.Marshal(&Send{ReplySubject: replySubject})
	if err != nil {
		return err
	}

	sendAckMsg, err := t.NatsConnection.Request(subject, sendBuf, SendTimeout)
	if err != nil {
		return err
	}

	var sendAck SendAck
	err = msgpack.Unmarshal(sendAckMsg.Data, &sendAck)
	if err != nil {
		return err
	}

	return streamChunks(reader, func(chunk []byte) error {
		return t.NatsConnection.Publish(sendAck.DataSubject, chunk)
	})
}

// streamChunks reads reader to the end, passing each encoded chunk to
// publish. A read error is sent as a final error chunk and returned.
func streamChunks(reader io.Reader, publish func([]byte) error) error {
	buf := make([]byte, ChunkSize)
	index := 0
	for {
		n, err := reader.Read(buf)
		isEOF := errors.Is(err, io.EOF)

		chunk := &Chunk{Index: index, Data: buf[:n], IsEOF: isEOF}
		if err != nil && !isEOF {
			chunk = &Chunk{Index: index, Error: err.Error()}
		}

		chunkBuf, marshalErr := msgpack.Marshal(chunk)
		if marshalErr != nil {
			return marshalErr
		}
		if pubErr := publish(chunkBuf); pubErr != nil {
			return pubErr
		}

		if err != nil && !isEOF {
			return err
		}
		if isEOF {
			return nil
		}
		index += 1
	}
}

// receive acknowledges an incoming stream and collects its chunks in the
// background. Only a complete frame reaches Listen. A stream that fails
// belongs to one sender, so it is logged and dropped.
func (t *Transport) receive(natsMsg *nats.Msg) {
	var send Send
	if err := msgpack.Unmarshal(natsMsg.Data, &send); err != nil {
		t.logger().Warn("dropping stream with unreadable header", "error", err)
		return
	}

	dataSubject := t.NatsConnection.NewRespInbox()

	ackBuf, err := msgpack.Marshal(&SendAck{DataSubject: dataSubject})
	if err != nil {
		t.logger().Warn("dropping stream", "error", err)
		return
	}

	dataSubscription, err := t.NatsConnection.SubscribeSync(dataSubject)
	if err != nil {
		t.logger().Warn("dropping stream", "error", err)
		return
	}

	if err := natsMsg.Respond(ackBuf); err != nil {
		dataSubscription.Unsubscribe()
		t.logger().Warn("failed to acknowledge frame", "error", err)
		return
	}

	go func() {
		defer dataSubscription.Unsubscribe()
		t.collect(send.ReplySubject, func() ([]byte, error) {
			dataMsg, err := dataSubscription.NextMsg(ChunkTimeout)
			if err != nil {
				return nil, err
			}
			return dataMsg.Data, nil
		})
	}()
}

// collect reads one stream from next and delivers it as a frame.
func (t *Transport) collect(replySubject string, next func() ([]byte, error)) {
	frame := &frameBuffer{max: t.MaxFrameSize}
	if err := readChunks(next, frame); err != nil {
		t.logger().Warn("dropping incomplete frame",
			"replySubject", replySubject,
			"bytes", frame.buf.Len(),
			"error", err,
		)
		return
	}
	t.deliver(inbound{reader: bytes.NewReader(frame.buf.Bytes()), replySubject: replySubject})
}

// frameBuffer accumulates a frame, refusing to grow past max when max is
// positive.
type frameBuffer struct {
	buf bytes.Buffer
	max int
}

func (f *frameBuffer) Write(p []byte) (int, error) {
	if f.max > 0 && f.buf.Len()+len(p) > f.max {
		return 0, ErrFrameTooLarge
	}
	return f.buf.Write(p)
}

// readChunks writes the data of each chunk returned by next to w until
// the final chunk. A nil return means the stream ended cleanly.
func readChunks(next func() ([]byte, error), w io.Writer) error {
	for {
		data, err := next()
		if err != nil {
			return err
		}

		var chunk Chunk
		if err := msgpack.Unmarshal(data, &chunk); err != nil {
			return err
		}
		if chunk.Error != "" {
			return errors.New(chunk.Error)
		}
		if _, err := w.Write(chunk.Data); err != nil {
			return err
		}
		if chunk.IsEOF {
			return nil
		}
	}
}

func (t *Transport) deliver(frame inbound) {
	select {
	case t.frames <- frame:
	case <-t.closed:
	}
}

// Listen passes each received frame to handler until ctx is done or the
// transport is closed. Frames carrying a reply subject can be answered.
func (t *Transport) Listen(ctx context.Context, handler tezbridge.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.closed:
			return nil
		case frame := <-t.frames:
			var reply func(io.Reader) error
			if frame.replySubject != "" {
				replySubject := frame.replySubject
				reply = func(reader io.Reader) error {
					return t.sendTo(replySubject, "", reader)
				}
			}
			if err := handler(frame.reader, reply); err != nil {
				return err
			}
		}
	}
}

// Close unsubscribes and ends Listen. The connection is left open.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		if t.Subscription != nil {
			err = t.Subscription.Unsubscribe()
		}
	})
	return err
}
