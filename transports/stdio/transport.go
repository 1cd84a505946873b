// Package stdio provides a newline-delimited transport over a pair of byte
// streams: a service's stdin and stdout, or the pipes of a spawned service
// process.
//
// Each frame is written as a single line. Writes are serialized, so
// concurrent replies never interleave.
package stdio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/RobertWHurst/tezbridge"
)

// ReadChunkSize is the size of each read from the input stream.
const ReadChunkSize = 1024 * 64

// ErrEmbeddedNewline is returned by Send when a frame contains a newline
// and so cannot be written as a single line.
var ErrEmbeddedNewline = errors.New("stdio: frame contains a newline")

// Transport implements tezbridge.Transport over a reader and a writer.
type Transport struct {
	// MaxFrameSize bounds inbound frames. Zero means unlimited.
	MaxFrameSize int

	// Logger receives warnings about discarded input. If nil,
	// slog.Default() is used.
	Logger *slog.Logger

	reader    io.Reader
	writer    io.Writer
	writeMu   sync.Mutex
	closer    func() error
	closeOnce sync.Once
	closeErr  error
}

var _ tezbridge.Transport = &Transport{}

// New creates a transport reading frames from reader and writing frames
// to writer.
func New(reader io.Reader, writer io.Writer) *Transport {
	return &Transport{reader: reader, writer: writer}
}

// NewStandard creates a transport over the process's stdin and stdout.
func NewStandard() *Transport {
	return New(os.Stdin, os.Stdout)
}

// Spawn starts the named service binary and returns a transport speaking
// to it over its stdin and stdout. The child's stderr is passed through.
// Close ends the child's input and waits for it to exit.
func Spawn(ctx context.Context, name string, args ...string) (*Transport, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdin of %s: %w", name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdout of %s: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}

	t := New(stdout, stdin)
	t.closer = func() error {
		stdin.Close()
		return cmd.Wait()
	}
	return t, nil
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// Send writes the frame read from reader followed by a newline.
func (t *Transport) Send(reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if bytes.IndexByte(data, '\n') >= 0 {
		return ErrEmbeddedNewline
	}

	line := make([]byte, 0, len(data)+1)
	line = append(line, data...)
	line = append(line, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err = t.writer.Write(line)
	return err
}

type readResult struct {
	data []byte
	err  error
}

// Listen reads the input in chunks, splits it into frames, and passes each
// frame to handler along with a reply func that writes to the output. At
// the end of input an unterminated trailing frame is discarded.
func (t *Transport) Listen(ctx context.Context, handler tezbridge.Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan readResult)
	go t.readLoop(ctx, chunks)

	framer := &Framer{MaxFrameSize: t.MaxFrameSize}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk := <-chunks:
			if len(chunk.data) > 0 {
				frames, framingErr := framer.Push(chunk.data)
				for _, frame := range frames {
					if err := handler(bytes.NewReader(frame), t.Send); err != nil {
						return err
					}
				}
				if framingErr != nil {
					return framingErr
				}
			}

			if chunk.err != nil {
				if !errors.Is(chunk.err, io.EOF) {
					return fmt.Errorf("reading input: %w", chunk.err)
				}
				if pending := framer.Pending(); len(pending) > 0 {
					t.logger().Warn("discarding unterminated frame at end of input", "bytes", len(pending))
				}
				return nil
			}
		}
	}
}

func (t *Transport) readLoop(ctx context.Context, out chan<- readResult) {
	for {
		buf := make([]byte, ReadChunkSize)
		n, err := t.reader.Read(buf)
		select {
		case out <- readResult{data: buf[:n], err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// Close releases the transport. For a spawned service it closes the
// child's input and waits for the child to exit.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		if t.closer != nil {
			t.closeErr = t.closer()
		}
	})
	return t.closeErr
}
