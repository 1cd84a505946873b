package stdio

import (
	"bytes"
	"errors"
	"unicode/utf8"
)

var (
	// ErrInvalidEncoding is returned when a frame is not valid UTF-8.
	ErrInvalidEncoding = errors.New("stdio: input is not valid UTF-8")

	// ErrFrameTooLarge is returned when a frame grows past the framer's
	// MaxFrameSize.
	ErrFrameTooLarge = errors.New("stdio: frame exceeds maximum size")
)

// Framer splits a byte stream into newline-terminated frames. Bytes after
// the last newline are kept until a later chunk completes them.
type Framer struct {
	// MaxFrameSize is the largest frame accepted, in bytes, excluding the
	// newline. Zero means unlimited.
	MaxFrameSize int

	buf []byte
}

// Push appends chunk to the buffer and returns every frame it completes,
// without their newlines. When an error is returned, the frames preceding
// the offending one are still returned.
func (f *Framer) Push(chunk []byte) ([][]byte, error) {
	f.buf = append(f.buf, chunk...)

	var frames [][]byte
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		frame := f.buf[:i]
		if f.MaxFrameSize > 0 && len(frame) > f.MaxFrameSize {
			return frames, ErrFrameTooLarge
		}
		if !utf8.Valid(frame) {
			return frames, ErrInvalidEncoding
		}
		frames = append(frames, bytes.Clone(frame))
		f.buf = f.buf[i+1:]
	}

	if f.MaxFrameSize > 0 && len(f.buf) > f.MaxFrameSize {
		return frames, ErrFrameTooLarge
	}
	if len(f.buf) == 0 {
		f.buf = nil
	}
	return frames, nil
}

// Pending returns the bytes of the unterminated trailing frame.
func (f *Framer) Pending() []byte {
	return f.buf
}
