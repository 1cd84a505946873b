package tezbridge

import (
	"fmt"
	"math/big"
)

// Marker keys reserved by the canonical JSON form. A single-key object
// using one of these keys with the matching payload shape is a sentinel,
// not a record.
const (
	MapMarker  = "MichelsonMap"
	UnitMarker = "__unit__"
	EnumMarker = "__enum__"
)

// Kind identifies the variant held by a canonical Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
	KindSequence
	KindRecord
	KindMap
	KindUnit
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindSequence:
		return "sequence"
	case KindRecord:
		return "record"
	case KindMap:
		return "map"
	case KindUnit:
		return "unit"
	case KindEnum:
		return "enum"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Field is a keyed member of a record or map.
type Field struct {
	Key   string
	Value Value
}

// F is shorthand for building a Field.
func F(key string, value Value) Field {
	return Field{Key: key, Value: value}
}

// Value is the canonical, JSON friendly representation of a contract value.
// The zero Value is null.
//
// Numbers carry their decimal text and never pass through a binary float.
// Records and maps keep the insertion order of their fields.
type Value struct {
	kind   Kind
	text   string
	flag   bool
	items  []Value
	fields []Field
}

func Null() Value { return Value{} }

// Number returns a number holding the given decimal text verbatim.
func Number(text string) Value { return Value{kind: KindNumber, text: text} }

func NumberFromBig(n *big.Int) Value { return Number(n.String()) }

func String(s string) Value { return Value{kind: KindString, text: s} }

func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

func Sequence(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindSequence, items: items}
}

// Record returns a record with the given fields in order. A duplicate key
// replaces the earlier value in place.
func Record(fields ...Field) Value {
	return Value{kind: KindRecord, fields: dedupe(fields)}
}

// Map returns a map sentinel whose payload has the given entries. Keys are
// already stringified.
func Map(entries ...Field) Value {
	return Value{kind: KindMap, fields: dedupe(entries)}
}

// Unit returns the unit sentinel.
func Unit() Value { return Value{kind: KindUnit} }

// Enum returns the enum sentinel for a variant name.
func Enum(variant string) Value { return Value{kind: KindEnum, text: variant} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Text returns the decimal text of a number, the content of a string, or
// the variant name of an enum.
func (v Value) Text() string { return v.text }

// AsBool returns the content of a bool value.
func (v Value) AsBool() bool { return v.flag }

// Items returns the elements of a sequence.
func (v Value) Items() []Value { return v.items }

// Fields returns the fields of a record or the entries of a map, in order.
func (v Value) Fields() []Field { return v.fields }

// Get returns the field of a record or the entry of a map with the given key.
func (v Value) Get(key string) (Value, bool) {
	for _, field := range v.fields {
		if field.Key == key {
			return field.Value, true
		}
	}
	return Value{}, false
}

// Equal reports whether v and other have the same JSON meaning. A number
// and a string with identical text are equal since both render as the same
// JSON string, and record or map fields compare without regard to order.
func (v Value) Equal(other Value) bool {
	if v.isTextual() && other.isTextual() {
		return v.text == other.text
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.flag == other.flag
	case KindEnum:
		return v.text == other.text
	case KindSequence:
		if len(v.items) != len(other.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	case KindRecord, KindMap:
		if len(v.fields) != len(other.fields) {
			return false
		}
		for _, field := range v.fields {
			match, ok := other.Get(field.Key)
			if !ok || !field.Value.Equal(match) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (v Value) isTextual() bool {
	return v.kind == KindNumber || v.kind == KindString
}

// String renders v as its canonical JSON.
func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s value: %v>", v.kind, err)
	}
	return string(data)
}

func dedupe(fields []Field) []Field {
	out := make([]Field, 0, len(fields))
next:
	for _, field := range fields {
		for i := range out {
			if out[i].Key == field.Key {
				out[i].Value = field.Value
				continue next
			}
		}
		out = append(out, field)
	}
	return out
}
