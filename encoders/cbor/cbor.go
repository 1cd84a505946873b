// Package cbor provides a CBOR encoder for the NATS transport. Messages
// are encoded with Core Deterministic Encoding, so equal values always
// produce identical bytes.
package cbor

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/RobertWHurst/tezbridge"
	"github.com/RobertWHurst/tezbridge/encoders/internal/jsonmodel"
)

var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cbor: encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("cbor: decoder initialization failed: " + err.Error())
	}
}

// Encoder implements tezbridge.Encoder using CBOR. Values are serialized
// through their JSON data model.
type Encoder struct{}

var _ tezbridge.Encoder = &Encoder{}

func (e *Encoder) Encode(v any) ([]byte, error) {
	native, err := jsonmodel.ToNative(v)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(native)
}

func (d *Encoder) Decode(data []byte, v any) error {
	var native any
	if err := decMode.Unmarshal(data, &native); err != nil {
		return err
	}
	return jsonmodel.FromNative(native, v)
}

func New() *Encoder {
	return &Encoder{}
}
