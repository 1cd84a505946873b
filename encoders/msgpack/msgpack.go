// Package msgpack provides a MessagePack encoder for the NATS transport.
package msgpack

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/RobertWHurst/tezbridge"
	"github.com/RobertWHurst/tezbridge/encoders/internal/jsonmodel"
)

// Encoder implements tezbridge.Encoder using MessagePack. Values are
// serialized through their JSON data model, so any type with JSON
// marshalling can be carried.
type Encoder struct{}

var _ tezbridge.Encoder = &Encoder{}

func (e *Encoder) Encode(v any) ([]byte, error) {
	native, err := jsonmodel.ToNative(v)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(native)
}

func (d *Encoder) Decode(data []byte, v any) error {
	var native any
	if err := msgpack.Unmarshal(data, &native); err != nil {
		return err
	}
	return jsonmodel.FromNative(native, v)
}

func New() *Encoder {
	return &Encoder{}
}
