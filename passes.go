package tezbridge

import (
	"math/big"
	"unicode"
	"unicode/utf8"

	"github.com/RobertWHurst/tezbridge/typed"
)

// node is the intermediate tree the conversion passes operate on. It holds
// canonical and engine variants side by side, since a value is half way
// between the two while the passes run.
type node struct {
	kind    nodeKind
	text    string
	flag    bool
	num     *big.Int
	items   []node
	fields  []nodeField
	entries []nodeEntry
}

type nodeKind uint8

const (
	nodeNull nodeKind = iota
	nodeNumber
	nodeString
	nodeBool
	nodeSequence
	nodeRecord
	nodeMap // canonical map sentinel
	nodeUnit
	nodeEnum
	nodeInt // engine big integer
	nodeEngineMap
	nodeEngineUnit
)

type nodeField struct {
	key   string
	value node
}

type nodeEntry struct {
	key   node
	value node
}

// pass is one pure rewrite of the whole tree.
type pass func(node) node

// Order matters: numbers and units must be canonical before enum
// detection can recognise a single-field record holding unit.
var decodePasses = []pass{
	unwrapTopMap,
	decodeMaps,
	decodeNumbers,
	decodeUnits,
	decodeEnums,
}

// Enums expand to records holding canonical unit, which the unit pass then
// turns into the engine sentinel.
var encodePasses = []pass{
	encodeEnums,
	encodeUnits,
	encodeMaps,
	wrapTopMap,
}

func decodeMaps(n node) node    { return shallow(n, isEngineMap, engineMapToSentinel) }
func decodeNumbers(n node) node { return deep(n, isInt, intToNumber) }
func decodeUnits(n node) node   { return deep(n, isEngineUnit, engineUnitToUnit) }
func decodeEnums(n node) node   { return deep(n, isUnitVariant, unitVariantToEnum) }
func encodeEnums(n node) node   { return deep(n, isEnum, enumToUnitVariant) }
func encodeUnits(n node) node   { return deep(n, isUnit, unitToEngineUnit) }
func encodeMaps(n node) node    { return shallow(n, isSentinelMap, sentinelToEngineMap) }

func runPasses(passes []pass, n node) node {
	for _, p := range passes {
		n = p(n)
	}
	return n
}

// deep rewrites every node matching match, descending into sequences,
// records and map sentinel payloads. A rewritten node is not descended
// into, and engine maps are left untouched.
func deep(n node, match func(node) bool, rewrite func(node) node) node {
	if match(n) {
		return rewrite(n)
	}
	switch n.kind {
	case nodeSequence:
		items := make([]node, len(n.items))
		for i, item := range n.items {
			items[i] = deep(item, match, rewrite)
		}
		return node{kind: n.kind, items: items}
	case nodeRecord, nodeMap:
		fields := make([]nodeField, len(n.fields))
		for i, field := range n.fields {
			fields[i] = nodeField{key: field.key, value: deep(field.value, match, rewrite)}
		}
		return node{kind: n.kind, fields: fields}
	}
	return n
}

// shallow rewrites the direct fields of a record and the direct elements of
// a sequence that match.
func shallow(n node, match func(node) bool, rewrite func(node) node) node {
	switch n.kind {
	case nodeSequence:
		items := make([]node, len(n.items))
		for i, item := range n.items {
			if match(item) {
				item = rewrite(item)
			}
			items[i] = item
		}
		return node{kind: n.kind, items: items}
	case nodeRecord:
		fields := make([]nodeField, len(n.fields))
		for i, field := range n.fields {
			if match(field.value) {
				field.value = rewrite(field.value)
			}
			fields[i] = field
		}
		return node{kind: n.kind, fields: fields}
	}
	return n
}

func isEngineMap(n node) bool   { return n.kind == nodeEngineMap }
func isSentinelMap(n node) bool { return n.kind == nodeMap }
func isInt(n node) bool         { return n.kind == nodeInt }
func isEngineUnit(n node) bool  { return n.kind == nodeEngineUnit }
func isUnit(n node) bool        { return n.kind == nodeUnit }
func isEnum(n node) bool        { return n.kind == nodeEnum }

// isUnitVariant matches a record with exactly one field whose value is the
// canonical unit, the shape an argument-less variant executes to. A map
// payload is a nodeMap rather than a nodeRecord, so a one-entry map whose
// value is unit stays a map instead of becoming an enum.
func isUnitVariant(n node) bool {
	return n.kind == nodeRecord && len(n.fields) == 1 && n.fields[0].value.kind == nodeUnit
}

func unwrapTopMap(n node) node {
	if isEngineMap(n) {
		return engineMapToSentinel(n)
	}
	return n
}

func wrapTopMap(n node) node {
	if isSentinelMap(n) {
		return sentinelToEngineMap(n)
	}
	return n
}

func engineMapToSentinel(n node) node {
	fields := make([]nodeField, 0, len(n.entries))
	for _, entry := range n.entries {
		fields = setNodeField(fields, nodeField{key: stringifyKey(entry.key), value: entry.value})
	}
	return node{kind: nodeMap, fields: fields}
}

func sentinelToEngineMap(n node) node {
	entries := make([]nodeEntry, len(n.fields))
	for i, field := range n.fields {
		entries[i] = nodeEntry{key: node{kind: nodeString, text: field.key}, value: field.value}
	}
	return node{kind: nodeEngineMap, entries: entries}
}

func intToNumber(n node) node {
	return node{kind: nodeNumber, text: n.num.String()}
}

func engineUnitToUnit(node) node { return node{kind: nodeUnit} }

func unitToEngineUnit(node) node { return node{kind: nodeEngineUnit} }

func unitVariantToEnum(n node) node {
	return node{kind: nodeEnum, text: upperFirst(n.fields[0].key)}
}

func enumToUnitVariant(n node) node {
	return node{kind: nodeRecord, fields: []nodeField{
		{key: lowerFirst(n.text), value: node{kind: nodeEngineUnit}},
	}}
}

// stringifyKey renders an engine map key as a canonical object key.
// Composite keys become their compact canonical JSON.
func stringifyKey(key node) string {
	switch key.kind {
	case nodeInt:
		return key.num.String()
	case nodeString, nodeNumber:
		return key.text
	case nodeBool:
		if key.flag {
			return "true"
		}
		return "false"
	}
	return lowerValue(decodeEnums(decodeUnits(decodeNumbers(key)))).String()
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

func setNodeField(fields []nodeField, field nodeField) []nodeField {
	for i := range fields {
		if fields[i].key == field.key {
			fields[i].value = field.value
			return fields
		}
	}
	return append(fields, field)
}

// liftTyped converts an engine value into the pass tree.
func liftTyped(v typed.Value) node {
	switch v.Kind() {
	case typed.KindInt:
		return node{kind: nodeInt, num: v.BigInt()}
	case typed.KindString:
		return node{kind: nodeString, text: v.Text()}
	case typed.KindBool:
		return node{kind: nodeBool, flag: v.AsBool()}
	case typed.KindUnit:
		return node{kind: nodeEngineUnit}
	case typed.KindList:
		items := make([]node, len(v.Items()))
		for i, item := range v.Items() {
			items[i] = liftTyped(item)
		}
		return node{kind: nodeSequence, items: items}
	case typed.KindObject:
		fields := make([]nodeField, len(v.Fields()))
		for i, field := range v.Fields() {
			fields[i] = nodeField{key: field.Key, value: liftTyped(field.Value)}
		}
		return node{kind: nodeRecord, fields: fields}
	case typed.KindMap:
		entries := make([]nodeEntry, len(v.Entries()))
		for i, entry := range v.Entries() {
			entries[i] = nodeEntry{key: liftTyped(entry.Key), value: liftTyped(entry.Value)}
		}
		return node{kind: nodeEngineMap, entries: entries}
	default:
		return node{kind: nodeNull}
	}
}

// lowerValue converts the pass tree into a canonical value. Engine variants
// the decode passes did not reach are rendered in canonical form: integers
// as numbers, unit as the unit sentinel and maps as plain records of
// stringified keys.
func lowerValue(n node) Value {
	switch n.kind {
	case nodeNumber:
		return Number(n.text)
	case nodeInt:
		return NumberFromBig(n.num)
	case nodeString:
		return String(n.text)
	case nodeBool:
		return Bool(n.flag)
	case nodeUnit, nodeEngineUnit:
		return Unit()
	case nodeEnum:
		return Enum(n.text)
	case nodeSequence:
		items := make([]Value, len(n.items))
		for i, item := range n.items {
			items[i] = lowerValue(item)
		}
		return Sequence(items...)
	case nodeRecord:
		return Record(lowerFields(n.fields)...)
	case nodeMap:
		return Map(lowerFields(n.fields)...)
	case nodeEngineMap:
		fields := make([]Field, len(n.entries))
		for i, entry := range n.entries {
			fields[i] = Field{Key: stringifyKey(entry.key), Value: lowerValue(entry.value)}
		}
		return Record(fields...)
	default:
		return Null()
	}
}

func lowerFields(fields []nodeField) []Field {
	out := make([]Field, len(fields))
	for i, field := range fields {
		out[i] = Field{Key: field.key, Value: lowerValue(field.value)}
	}
	return out
}

// liftValue converts a canonical value into the pass tree.
func liftValue(v Value) node {
	switch v.Kind() {
	case KindNumber:
		return node{kind: nodeNumber, text: v.Text()}
	case KindString:
		return node{kind: nodeString, text: v.Text()}
	case KindBool:
		return node{kind: nodeBool, flag: v.AsBool()}
	case KindUnit:
		return node{kind: nodeUnit}
	case KindEnum:
		return node{kind: nodeEnum, text: v.Text()}
	case KindSequence:
		items := make([]node, len(v.Items()))
		for i, item := range v.Items() {
			items[i] = liftValue(item)
		}
		return node{kind: nodeSequence, items: items}
	case KindRecord, KindMap:
		fields := make([]nodeField, len(v.Fields()))
		for i, field := range v.Fields() {
			fields[i] = nodeField{key: field.Key, value: liftValue(field.Value)}
		}
		kind := nodeRecord
		if v.Kind() == KindMap {
			kind = nodeMap
		}
		return node{kind: kind, fields: fields}
	default:
		return node{kind: nodeNull}
	}
}

// lowerTyped converts the pass tree into an engine value. Numbers become
// engine integers when their text is a base 10 integer and strings
// otherwise. Canonical sentinels the encode passes did not reach are handed
// over as plain marker objects.
func lowerTyped(n node) typed.Value {
	switch n.kind {
	case nodeNumber:
		if i, ok := new(big.Int).SetString(n.text, 10); ok {
			return typed.Int(i)
		}
		return typed.String(n.text)
	case nodeInt:
		return typed.Int(n.num)
	case nodeString:
		return typed.String(n.text)
	case nodeBool:
		return typed.Bool(n.flag)
	case nodeEngineUnit:
		return typed.Unit()
	case nodeUnit:
		return typed.Object(typed.Field{Key: UnitMarker, Value: typed.Null()})
	case nodeEnum:
		return typed.Object(typed.Field{Key: EnumMarker, Value: typed.String(n.text)})
	case nodeSequence:
		items := make([]typed.Value, len(n.items))
		for i, item := range n.items {
			items[i] = lowerTyped(item)
		}
		return typed.List(items...)
	case nodeRecord:
		return typed.Object(lowerTypedFields(n.fields)...)
	case nodeMap:
		return typed.Object(typed.Field{Key: MapMarker, Value: typed.Object(lowerTypedFields(n.fields)...)})
	case nodeEngineMap:
		entries := make([]typed.Entry, len(n.entries))
		for i, entry := range n.entries {
			entries[i] = typed.Entry{Key: lowerTyped(entry.key), Value: lowerTyped(entry.value)}
		}
		return typed.Map(entries...)
	default:
		return typed.Null()
	}
}

func lowerTypedFields(fields []nodeField) []typed.Field {
	out := make([]typed.Field, len(fields))
	for i, field := range fields {
		out[i] = typed.Field{Key: field.key, Value: lowerTyped(field.value)}
	}
	return out
}
