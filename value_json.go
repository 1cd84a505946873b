package tezbridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrInvalidValue is returned when JSON input cannot be read as a canonical
// value.
var ErrInvalidValue = errors.New("tezbridge: invalid canonical value")

// ParseValue reads canonical JSON. Object key order is preserved, JSON
// numbers become numbers with their literal text, and the reserved marker
// objects become sentinels.
func ParseValue(data []byte) (Value, error) {
	if !gjson.ValidBytes(data) {
		return Value{}, fmt.Errorf("%w: malformed JSON", ErrInvalidValue)
	}
	return valueFromResult(gjson.ParseBytes(data)), nil
}

// MustParseValue is like ParseValue but panics on error.
func MustParseValue(text string) Value {
	v, err := ParseValue([]byte(text))
	if err != nil {
		panic(err)
	}
	return v
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseValue(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func valueFromResult(result gjson.Result) Value {
	switch result.Type {
	case gjson.Null:
		return Null()
	case gjson.True:
		return Bool(true)
	case gjson.False:
		return Bool(false)
	case gjson.Number:
		return Number(result.Raw)
	case gjson.String:
		return String(result.Str)
	}

	if result.IsArray() {
		items := []Value{}
		result.ForEach(func(_, item gjson.Result) bool {
			items = append(items, valueFromResult(item))
			return true
		})
		return Sequence(items...)
	}

	var fields []Field
	result.ForEach(func(key, item gjson.Result) bool {
		fields = append(fields, Field{Key: key.Str, Value: valueFromResult(item)})
		return true
	})
	return sentinelOrRecord(fields)
}

func sentinelOrRecord(fields []Field) Value {
	if len(fields) == 1 {
		payload := fields[0].Value
		switch fields[0].Key {
		case MapMarker:
			if payload.kind == KindRecord {
				return Map(payload.fields...)
			}
		case UnitMarker:
			if payload.kind == KindNull {
				return Unit()
			}
		case EnumMarker:
			if payload.kind == KindString {
				return Enum(payload.text)
			}
		}
	}
	return Record(fields...)
}

// MarshalJSON implements json.Marshaler. Numbers render as JSON strings and
// fields keep their order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindNumber, KindString:
		writeJSONString(buf, v.text)
	case KindBool:
		if v.flag {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindSequence:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindRecord:
		return writeFields(buf, v.fields)
	case KindMap:
		buf.WriteString(`{"` + MapMarker + `":`)
		if err := writeFields(buf, v.fields); err != nil {
			return err
		}
		buf.WriteByte('}')
	case KindUnit:
		buf.WriteString(`{"` + UnitMarker + `":null}`)
	case KindEnum:
		buf.WriteString(`{"` + EnumMarker + `":`)
		writeJSONString(buf, v.text)
		buf.WriteByte('}')
	default:
		return fmt.Errorf("tezbridge: cannot marshal %s value", v.kind)
	}
	return nil
}

func writeFields(buf *bytes.Buffer, fields []Field) error {
	buf.WriteByte('{')
	for i, field := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(buf, field.Key)
		buf.WriteByte(':')
		if err := field.Value.writeJSON(buf); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	data, _ := json.Marshal(s)
	buf.Write(data)
}
