// Package typed holds the values a schema engine produces when it executes
// a Michelson value against a type, and accepts when it encodes one back.
//
// Integers are arbitrary precision, maps keep their typed keys, and unit is
// a distinct sentinel rather than a plain object.
package typed

import (
	"fmt"
	"math/big"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindString
	KindBool
	KindList
	KindObject
	KindMap
	KindUnit
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	case KindMap:
		return "map"
	case KindUnit:
		return "unit"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Field is a named member of an object.
type Field struct {
	Key   string
	Value Value
}

// Entry is one key/value association of a map. Keys are typed.
type Entry struct {
	Key   Value
	Value Value
}

// Value is an engine value. The zero Value is null.
type Value struct {
	kind    Kind
	num     *big.Int
	text    string
	flag    bool
	items   []Value
	fields  []Field
	entries []Entry
}

func Null() Value { return Value{} }

func Int(n *big.Int) Value {
	return Value{kind: KindInt, num: new(big.Int).Set(n)}
}

func Int64(n int64) Value {
	return Value{kind: KindInt, num: big.NewInt(n)}
}

func String(s string) Value { return Value{kind: KindString, text: s} }

func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

func List(items ...Value) Value {
	return Value{kind: KindList, items: items}
}

// Object returns an object with fields in the given order. A later field
// with a duplicate key replaces the earlier value in place.
func Object(fields ...Field) Value {
	out := make([]Field, 0, len(fields))
	for _, field := range fields {
		out = setField(out, field)
	}
	return Value{kind: KindObject, fields: out}
}

// Map returns a map with entries in the given order.
func Map(entries ...Entry) Value {
	return Value{kind: KindMap, entries: entries}
}

// MapFromFields builds a map whose keys are the string keys of fields.
func MapFromFields(fields ...Field) Value {
	entries := make([]Entry, len(fields))
	for i, field := range fields {
		entries[i] = Entry{Key: String(field.Key), Value: field.Value}
	}
	return Map(entries...)
}

// Unit returns the unit sentinel.
func Unit() Value { return Value{kind: KindUnit} }

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsMap() bool    { return v.kind == KindMap }
func (v Value) IsUnit() bool   { return v.kind == KindUnit }
func (v Value) Items() []Value { return v.items }
func (v Value) Fields() []Field {
	return v.fields
}
func (v Value) Entries() []Entry { return v.entries }

// BigInt returns the integer held by an int value, or nil.
func (v Value) BigInt() *big.Int {
	if v.kind != KindInt {
		return nil
	}
	return new(big.Int).Set(v.num)
}

// Text returns the content of a string value.
func (v Value) Text() string { return v.text }

// AsBool returns the content of a bool value.
func (v Value) AsBool() bool { return v.flag }

// Get returns the field of an object with the given key.
func (v Value) Get(key string) (Value, bool) {
	for _, field := range v.fields {
		if field.Key == key {
			return field.Value, true
		}
	}
	return Value{}, false
}

// Equal reports deep equality. Object fields compare without regard to
// order; list items and map entries compare positionally.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.num.Cmp(other.num) == 0
	case KindString:
		return v.text == other.text
	case KindBool:
		return v.flag == other.flag
	case KindList:
		if len(v.items) != len(other.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
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
	case KindMap:
		if len(v.entries) != len(other.entries) {
			return false
		}
		for i := range v.entries {
			if !v.entries[i].Key.Equal(other.entries[i].Key) || !v.entries[i].Value.Equal(other.entries[i].Value) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders v for diagnostics.
func (v Value) String() string {
	var sb strings.Builder
	v.describe(&sb)
	return sb.String()
}

func (v Value) describe(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindInt:
		sb.WriteString(v.num.String())
	case KindString:
		fmt.Fprintf(sb, "%q", v.text)
	case KindBool:
		fmt.Fprintf(sb, "%t", v.flag)
	case KindUnit:
		sb.WriteString("Unit")
	case KindList:
		sb.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.describe(sb)
		}
		sb.WriteByte(']')
	case KindObject:
		sb.WriteByte('{')
		for i, field := range v.fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%s: ", field.Key)
			field.Value.describe(sb)
		}
		sb.WriteByte('}')
	case KindMap:
		sb.WriteString("map{")
		for i, entry := range v.entries {
			if i > 0 {
				sb.WriteString(", ")
			}
			entry.Key.describe(sb)
			sb.WriteString(" => ")
			entry.Value.describe(sb)
		}
		sb.WriteByte('}')
	}
}

func setField(fields []Field, field Field) []Field {
	for i := range fields {
		if fields[i].Key == field.Key {
			fields[i].Value = field.Value
			return fields
		}
	}
	return append(fields, field)
}
