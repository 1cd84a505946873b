package taquito

import (
	"math/big"
	"slices"

	"github.com/RobertWHurst/tezbridge/micheline"
	"github.com/RobertWHurst/tezbridge/typed"
	"github.com/tidwall/gjson"
)

// mapToken covers map and big_map. Entries are sorted by key on encode. A
// big_map given by its identifier executes to the decimal id.
type mapToken struct {
	base
	key, value token
	big        bool
}

func (t *mapToken) execute(value micheline.Node) (typed.Value, error) {
	if t.big && value.Kind == micheline.KindInt {
		return typed.String(value.Text), nil
	}
	if value.Kind != micheline.KindSeq {
		return typed.Value{}, mismatch(t.prim(), "expected a sequence of Elt, got %s", value)
	}
	entries := make([]typed.Entry, len(value.Items))
	for i, elt := range value.Items {
		if !elt.IsPrim("Elt") || len(elt.Args) != 2 {
			return typed.Value{}, mismatch(t.prim(), "expected Elt, got %s", elt)
		}
		key, err := t.key.execute(elt.Args[0])
		if err != nil {
			return typed.Value{}, err
		}
		val, err := t.value.execute(elt.Args[1])
		if err != nil {
			return typed.Value{}, err
		}
		entries[i] = typed.Entry{Key: key, Value: val}
	}
	return typed.Map(entries...), nil
}

func (t *mapToken) encode(value typed.Value) (micheline.Node, error) {
	if t.big {
		if id, ok := bigMapID(value); ok {
			return micheline.IntFromBig(id), nil
		}
	}
	if !value.IsMap() {
		return micheline.Node{}, mismatch(t.prim(), "expected a map, got %s", value)
	}

	elts := make([]micheline.Node, len(value.Entries()))
	for i, entry := range value.Entries() {
		key, err := t.key.encode(t.mapKey(entry.Key))
		if err != nil {
			return micheline.Node{}, err
		}
		val, err := t.value.encode(entry.Value)
		if err != nil {
			return micheline.Node{}, err
		}
		elts[i] = micheline.Prim("Elt", key, val)
	}
	slices.SortStableFunc(elts, func(a, b micheline.Node) int {
		return compareNodes(a.Args[0], b.Args[0])
	})
	return micheline.Seq(elts...), nil
}

// mapKey recovers a composite key from its stringified JSON form. Keys of
// scalar types are passed through.
func (t *mapToken) mapKey(key typed.Value) typed.Value {
	if key.Kind() != typed.KindString {
		return key
	}
	switch t.key.(type) {
	case *pairToken, *orToken, *optionToken:
	default:
		return key
	}
	if !gjson.Valid(key.Text()) {
		return key
	}
	return typedFromJSON(gjson.Parse(key.Text()))
}

func bigMapID(value typed.Value) (*big.Int, bool) {
	switch value.Kind() {
	case typed.KindInt:
		return value.BigInt(), true
	case typed.KindString:
		return new(big.Int).SetString(value.Text(), 10)
	}
	return nil, false
}

func typedFromJSON(result gjson.Result) typed.Value {
	switch result.Type {
	case gjson.Null:
		return typed.Null()
	case gjson.True:
		return typed.Bool(true)
	case gjson.False:
		return typed.Bool(false)
	case gjson.Number:
		if n, ok := new(big.Int).SetString(result.Raw, 10); ok {
			return typed.Int(n)
		}
		return typed.String(result.Raw)
	case gjson.String:
		return typed.String(result.Str)
	}

	if result.IsArray() {
		var items []typed.Value
		result.ForEach(func(_, item gjson.Result) bool {
			items = append(items, typedFromJSON(item))
			return true
		})
		return typed.List(items...)
	}

	var fields []typed.Field
	result.ForEach(func(key, item gjson.Result) bool {
		fields = append(fields, typed.Field{Key: key.Str, Value: typedFromJSON(item)})
		return true
	})
	return typed.Object(fields...)
}
