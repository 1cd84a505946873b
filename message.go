package tezbridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/RobertWHurst/tezbridge/micheline"
)

// MaxDecodeSize bounds how much of a streamed frame Message.Into will read.
// Zero or less means unlimited. Frames a transport already holds in memory
// were bounded by that transport and are read whole.
var MaxDecodeSize = int64(1024 * 1024 * 5) // 5 MB

var (
	// ErrNoReply is returned by Message.Reply when the frame's transport
	// offers no way to answer it.
	ErrNoReply = errors.New("tezbridge: message cannot be replied to")

	// ErrMessageTooLarge is returned by Message.Into when a streamed frame
	// exceeds MaxDecodeSize.
	ErrMessageTooLarge = errors.New("tezbridge: message exceeds maximum decode size")
)

// RequestKind selects the conversion a request asks for.
type RequestKind string

const (
	EncodeRequest RequestKind = "Encode"
	DecodeRequest RequestKind = "Decode"
)

// Status tells a successful response from a failed one.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusError   Status = "Error"
)

// Request is one line of the protocol as sent by a client. ID is echoed in
// the matching response.
type Request struct {
	ID      uint64         `json:"id"`
	Content RequestContent `json:"content"`
}

// RequestContent carries an Encode request's canonical Data or a Decode
// request's Michelson tree, both typed by Schema.
type RequestContent struct {
	Kind      RequestKind     `json:"kind"`
	Schema    micheline.Node  `json:"schema"`
	Data      *Value          `json:"data,omitempty"`
	Michelson *micheline.Node `json:"michelson,omitempty"`
}

// Response is one line of the protocol as sent by the service.
type Response struct {
	ID      uint64          `json:"id"`
	Content ResponseContent `json:"content"`
}

// ResponseContent holds the JSON of the converted value on success, or the
// rendered error otherwise.
type ResponseContent struct {
	Status Status          `json:"status"`
	Value  json.RawMessage `json:"value,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// inboundRequest defers decoding of the content so a malformed content
// body can be answered with an error response instead of ending the
// service.
type inboundRequest struct {
	ID      uint64          `json:"id"`
	Content json.RawMessage `json:"content"`
}

// rawContent reads Data and Michelson without their own unmarshalers so a
// JSON null in data is told apart from a missing field.
type rawContent struct {
	Kind      RequestKind     `json:"kind"`
	Schema    json.RawMessage `json:"schema"`
	Data      json.RawMessage `json:"data"`
	Michelson json.RawMessage `json:"michelson"`
}

// Message is one inbound frame together with the means to answer it.
type Message struct {
	data    io.Reader
	reply   func(io.Reader) error
	encoder Encoder
	err     error
}

func newMessage(encoder Encoder, frame io.Reader, reply func(io.Reader) error) *Message {
	return &Message{data: frame, reply: reply, encoder: encoder}
}

// Into decodes the frame into v.
func (m *Message) Into(v any) error {
	if m.err != nil {
		return m.err
	}
	data, err := m.readAll()
	if err != nil {
		return err
	}
	return m.encoder.Decode(data, v)
}

func (m *Message) readAll() ([]byte, error) {
	if _, buffered := m.data.(interface{ Len() int }); buffered || MaxDecodeSize <= 0 {
		return io.ReadAll(m.data)
	}
	data, err := io.ReadAll(io.LimitReader(m.data, MaxDecodeSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxDecodeSize {
		return nil, ErrMessageTooLarge
	}
	return data, nil
}

func (m *Message) Read(p []byte) (n int, err error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.data.Read(p)
}

// Reply encodes v and sends it back to the frame's sender. The value v can
// be a struct (encoded), string, []byte, or io.Reader.
func (m *Message) Reply(v any) error {
	if m.err != nil {
		return m.err
	}
	if m.reply == nil {
		return ErrNoReply
	}

	data, err := intoDataReader(m.encoder, v)
	if err != nil {
		return err
	}

	return m.reply(data)
}

func intoDataReader(encoder Encoder, v any) (io.Reader, error) {
	var data io.Reader
	if r, ok := v.(io.Reader); ok {
		data = r
	} else {
		switch dv := v.(type) {
		case []byte:
			data = bytes.NewReader(dv)
		case string:
			data = strings.NewReader(dv)
		default:
			encodedData, err := encoder.Encode(v)
			if err != nil {
				return nil, err
			}
			data = bytes.NewReader(encodedData)
		}
	}
	return data, nil
}
