// Package protobuf provides a Protocol Buffers encoder for the NATS
// transport. Values that are proto messages are marshalled directly; any
// other value travels as a google.protobuf.Value built from its JSON data
// model.
package protobuf

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RobertWHurst/tezbridge"
	"github.com/RobertWHurst/tezbridge/encoders/internal/jsonmodel"
)

type Encoder struct{}

var _ tezbridge.Encoder = &Encoder{}

func (e *Encoder) Encode(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	native, err := jsonmodel.ToNative(v)
	if err != nil {
		return nil, err
	}
	value, err := structpb.NewValue(native)
	if err != nil {
		return nil, fmt.Errorf("converting to protobuf value: %w", err)
	}
	return proto.Marshal(value)
}

func (e *Encoder) Decode(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	var value structpb.Value
	if err := proto.Unmarshal(data, &value); err != nil {
		return err
	}
	return jsonmodel.FromNative(value.AsInterface(), v)
}

func New() *Encoder {
	return &Encoder{}
}
