// Package json provides the JSON encoder used on the line protocol.
// It uses Go's standard encoding/json package for serialization.
package json

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/RobertWHurst/tezbridge"
)

// Encoder implements tezbridge.Encoder using JSON serialization. Output
// never contains a raw newline, so each encoded message fits on one line.
type Encoder struct{}

var _ tezbridge.Encoder = &Encoder{}

// Encode serializes v to compact JSON bytes.
func (e *Encoder) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// ErrTrailingData is returned by Decode when data holds more than one JSON
// value.
var ErrTrailingData = errors.New("json: unexpected data after top-level value")

// Decode deserializes JSON bytes into v. Numbers decoded into interface
// values are kept as json.Number so large integers survive. Anything other
// than whitespace after the value is an error.
func (d *Encoder) Decode(data []byte, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(v); err != nil {
		return err
	}
	if _, err := decoder.Token(); err != io.EOF {
		return fmt.Errorf("%w at offset %d", ErrTrailingData, decoder.InputOffset())
	}
	return nil
}

// New creates a new JSON encoder.
func New() *Encoder {
	return &Encoder{}
}
