package tezbridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobertWHurst/tezbridge/engines/taquito"
	"github.com/RobertWHurst/tezbridge/micheline"
	"github.com/RobertWHurst/tezbridge/typed"
)

const registerSchema = `{"prim":"pair","args":[
	{"prim":"pair","args":[
		{"prim":"pair","args":[
			{"prim":"big_map","args":[
				{"prim":"key_hash"},
				{"prim":"list","args":[{"prim":"pair","args":[
					{"prim":"pair","args":[
						{"prim":"pair","args":[
							{"prim":"key_hash","annots":["%baking_account"]},
							{"prim":"key","annots":["%public_key"]}]},
						{"prim":"bytes","annots":["%tls_cert"]}]},
					{"prim":"timestamp"}]}]}],
			"annots":["%old_validator_map"]},
			{"prim":"set","args":[{"prim":"key_hash"}],"annots":["%old_validators"]}]},
		{"prim":"address","annots":["%owner"]},
		{"prim":"or","args":[
			{"prim":"or","args":[
				{"prim":"unit","annots":["%genesis"]},
				{"prim":"unit","annots":["%open"]}]},
			{"prim":"unit","annots":["%sealed"]}],
		"annots":["%state"]}]},
	{"prim":"big_map","args":[
		{"prim":"key_hash"},
		{"prim":"pair","args":[
			{"prim":"pair","args":[
				{"prim":"key_hash","annots":["%baking_account"]},
				{"prim":"key","annots":["%public_key"]}]},
			{"prim":"bytes","annots":["%tls_cert"]}]}],
	"annots":["%validator_map"]},
	{"prim":"set","args":[{"prim":"key_hash"}],"annots":["%validators"]}]}`

const (
	baker  = "tz1d8LSBpEsLtLkCmaj2yBdv2xF4wSYNAa8c"
	burn   = "tz1burnburnburnburnburnburnburjAYjjX"
	pubKey = "edpku2tvek7QFRYm12819P8RwSY8m7zSzKV9RMnWHy3xVbrBwN5zAg"
)

const adtSchema = `{"prim":"pair","args":[
	{"prim":"or","args":[
		{"prim":"or","args":[
			{"prim":"pair","args":[{"prim":"int"},{"prim":"string"}],"annots":["%decrement"]},
			{"prim":"pair","args":[{"prim":"int"},{"prim":"int"}],"annots":["%increment"]}]},
		{"prim":"unit","annots":["%reset"]}],
	"annots":["%a"]},
	{"prim":"int","annots":["%i"]}]}`

const counterSchema = `{"prim":"or","args":[
	{"prim":"or","args":[
		{"prim":"int","annots":["%decrement"]},
		{"prim":"int","annots":["%increment"]}]},
	{"prim":"unit","annots":["%reset"]}]}`

const counterInRecordSchema = `{"prim":"pair","args":[
	{"prim":"or","args":[
		{"prim":"or","args":[
			{"prim":"int","annots":["%decrement"]},
			{"prim":"int","annots":["%increment"]}]},
		{"prim":"unit","annots":["%reset"]}],
	"annots":["%a"]},
	{"prim":"int","annots":["%i"]}]}`

type conversionCase struct {
	name     string
	schema   string
	data     string
	expected string
}

var conversionCases = []conversionCase{
	{
		name:     "unit",
		schema:   `{"prim":"unit","annots":["%a"]}`,
		data:     `{"__unit__":null}`,
		expected: `{"prim":"Unit"}`,
	},
	{
		name:     "map",
		schema:   `{"prim":"map","args":[{"prim":"string"},{"prim":"int"}]}`,
		data:     `{"MichelsonMap":{"field":"1"}}`,
		expected: `[{"prim":"Elt","args":[{"string":"field"},{"int":"1"}]}]`,
	},
	{
		name: "enum",
		schema: `{"prim":"or","args":[
			{"prim":"unit","annots":["%aaA"]},
			{"prim":"unit","annots":["%ccC"]}]}`,
		data:     `{"__enum__":"AaA"}`,
		expected: `{"prim":"Left","args":[{"prim":"Unit"}]}`,
	},
	{
		name:   "register storage",
		schema: registerSchema,
		data: `{
			"state":{"__enum__":"Genesis"},
			"owner":"` + burn + `",
			"validators":["` + baker + `"],
			"old_validators":[],
			"old_validator_map":{"MichelsonMap":{}},
			"validator_map":{"MichelsonMap":{"` + baker + `":{
				"baking_account":"` + baker + `",
				"public_key":"` + pubKey + `",
				"tls_cert":""}}}}`,
		expected: `{"prim":"Pair","args":[
			{"prim":"Pair","args":[
				{"prim":"Pair","args":[[],[]]},
				{"prim":"Pair","args":[
					{"string":"` + burn + `"},
					{"prim":"Left","args":[{"prim":"Left","args":[{"prim":"Unit"}]}]}]}]},
			{"prim":"Pair","args":[
				[{"prim":"Elt","args":[
					{"string":"` + baker + `"},
					{"prim":"Pair","args":[
						{"prim":"Pair","args":[{"string":"` + baker + `"},{"string":"` + pubKey + `"}]},
						{"bytes":""}]}]}],
				[{"string":"` + baker + `"}]]}]}`,
	},
	{
		name:   "register storage with history",
		schema: registerSchema,
		data: `{
			"state":{"__enum__":"Genesis"},
			"owner":"` + burn + `",
			"validators":["` + baker + `"],
			"old_validators":["` + baker + `"],
			"old_validator_map":{"MichelsonMap":{"` + baker + `":[{
				"baking_account":"` + baker + `",
				"public_key":"` + pubKey + `",
				"tls_cert":"",
				"3":"2022-09-23T00:00:00.000Z"}]}},
			"validator_map":{"MichelsonMap":{"` + baker + `":{
				"baking_account":"` + baker + `",
				"public_key":"` + pubKey + `",
				"tls_cert":""}}}}`,
		expected: `{"prim":"Pair","args":[
			{"prim":"Pair","args":[
				{"prim":"Pair","args":[
					[{"prim":"Elt","args":[
						{"string":"` + baker + `"},
						[{"prim":"Pair","args":[
							{"prim":"Pair","args":[
								{"prim":"Pair","args":[{"string":"` + baker + `"},{"string":"` + pubKey + `"}]},
								{"bytes":""}]},
							{"string":"2022-09-23T00:00:00.000Z"}]}]]}],
					[{"string":"` + baker + `"}]]},
				{"prim":"Pair","args":[
					{"string":"` + burn + `"},
					{"prim":"Left","args":[{"prim":"Left","args":[{"prim":"Unit"}]}]}]}]},
			{"prim":"Pair","args":[
				[{"prim":"Elt","args":[
					{"string":"` + baker + `"},
					{"prim":"Pair","args":[
						{"prim":"Pair","args":[{"string":"` + baker + `"},{"string":"` + pubKey + `"}]},
						{"bytes":""}]}]}],
				[{"string":"` + baker + `"}]]}]}`,
	},
	{
		name:     "enum with parameter",
		schema:   counterSchema,
		data:     `{"decrement":"1"}`,
		expected: `{"prim":"Left","args":[{"prim":"Left","args":[{"int":"1"}]}]}`,
	},
	{
		name:   "enum with parameter in record",
		schema: counterInRecordSchema,
		data:   `{"a":{"decrement":"1"},"i":"42"}`,
		expected: `{"prim":"Pair","args":[
			{"prim":"Left","args":[{"prim":"Left","args":[{"int":"1"}]}]},
			{"int":"42"}]}`,
	},
	{
		name:   "enum in record",
		schema: counterInRecordSchema,
		data:   `{"a":{"__enum__":"Reset"},"i":"42"}`,
		expected: `{"prim":"Pair","args":[
			{"prim":"Right","args":[{"prim":"Unit"}]},
			{"int":"42"}]}`,
	},
	{
		name: "record in record",
		schema: `{"prim":"pair","args":[
			{"prim":"int","annots":["%a"]},
			{"prim":"pair","args":[
				{"prim":"int","annots":["%c"]},
				{"prim":"int","annots":["%d"]}],
			"annots":["%b"]}]}`,
		data: `{"a":"0","b":{"c":"2","d":"3"}}`,
		expected: `{"prim":"Pair","args":[
			{"int":"0"},
			{"prim":"Pair","args":[{"int":"2"},{"int":"3"}]}]}`,
	},
	{
		name:   "adt",
		schema: adtSchema,
		data:   `{"a":{"decrement":{"0":"1","1":"foo"}},"i":"42"}`,
		expected: `{"prim":"Pair","args":[
			{"prim":"Left","args":[{"prim":"Left","args":[
				{"prim":"Pair","args":[{"int":"1"},{"string":"foo"}]}]}]},
			{"int":"42"}]}`,
	},
	{
		name:     "option some",
		schema:   `{"prim":"option","args":[{"prim":"int"}],"annots":["%a"]}`,
		data:     `"1"`,
		expected: `{"prim":"Some","args":[{"int":"1"}]}`,
	},
	{
		name:     "option none",
		schema:   `{"prim":"option","args":[{"prim":"int"}],"annots":["%a"]}`,
		data:     `null`,
		expected: `{"prim":"None"}`,
	},
	{
		name: "option some in record",
		schema: `{"prim":"pair","args":[
			{"prim":"option","args":[{"prim":"int"}],"annots":["%a"]},
			{"prim":"int","annots":["%b"]}]}`,
		data:     `{"a":"1","b":"1"}`,
		expected: `{"prim":"Pair","args":[{"prim":"Some","args":[{"int":"1"}]},{"int":"1"}]}`,
	},
	{
		name: "option none in record",
		schema: `{"prim":"pair","args":[
			{"prim":"option","args":[{"prim":"int"}],"annots":["%a"]},
			{"prim":"int","annots":["%b"]}]}`,
		data:     `{"a":null,"b":"1"}`,
		expected: `{"prim":"Pair","args":[{"prim":"None"},{"int":"1"}]}`,
	},
	{
		name:     "integer beyond float precision",
		schema:   `{"prim":"nat"}`,
		data:     `"123456789012345678901234567890"`,
		expected: `{"int":"123456789012345678901234567890"}`,
	},
	{
		name:     "composite map key",
		schema:   `{"prim":"map","args":[{"prim":"pair","args":[{"prim":"int"},{"prim":"string"}]},{"prim":"bool"}]}`,
		data:     `{"MichelsonMap":{"{\"0\":\"1\",\"1\":\"a\"}":true}}`,
		expected: `[{"prim":"Elt","args":[{"prim":"Pair","args":[{"int":"1"},{"string":"a"}]},{"prim":"True"}]}]`,
	},
}

func TestBridgeConversions(t *testing.T) {
	bridge := NewBridge(taquito.New())
	ctx := context.Background()

	for _, tc := range conversionCases {
		t.Run(tc.name, func(t *testing.T) {
			schema := micheline.MustParse(tc.schema)
			data := MustParseValue(tc.data)

			encoded, err := bridge.EncodeFromCanonical(ctx, schema, data)
			require.NoError(t, err)
			assert.JSONEq(t, tc.expected, encoded.String())

			back, err := bridge.DecodeToCanonical(ctx, schema, encoded)
			require.NoError(t, err)
			assert.True(t, data.Equal(back), "round trip mismatch:\nexpected %s\n     got %s", data, back)
		})
	}
}

func TestBridgeDecodeDoesNotMutateInput(t *testing.T) {
	bridge := NewBridge(taquito.New())
	schema := micheline.MustParse(counterInRecordSchema)
	tree := micheline.MustParse(`{"prim":"Pair","args":[{"prim":"Right","args":[{"prim":"Unit"}]},{"int":"42"}]}`)
	before := tree.String()

	_, err := bridge.DecodeToCanonical(context.Background(), schema, tree)
	require.NoError(t, err)
	assert.Equal(t, before, tree.String())
}

func TestBridgeEnumCasing(t *testing.T) {
	bridge := NewBridge(taquito.New())
	schema := micheline.MustParse(`{"prim":"or","args":[
		{"prim":"unit","annots":["%fooBar"]},
		{"prim":"unit","annots":["%xYZ"]}]}`)

	encoded, err := bridge.EncodeFromCanonical(context.Background(), schema, Enum("XYZ"))
	require.NoError(t, err)
	assert.Equal(t, `{"prim":"Right","args":[{"prim":"Unit"}]}`, encoded.String())

	back, err := bridge.DecodeToCanonical(context.Background(), schema, encoded)
	require.NoError(t, err)
	assert.Equal(t, `{"__enum__":"XYZ"}`, back.String())

	decoded, err := bridge.DecodeToCanonical(context.Background(), schema, micheline.MustParse(`{"prim":"Left","args":[{"prim":"Unit"}]}`))
	require.NoError(t, err)
	assert.Equal(t, `{"__enum__":"FooBar"}`, decoded.String())
}

func TestBridgeDecodeIntegerKeys(t *testing.T) {
	bridge := NewBridge(taquito.New())
	schema := micheline.MustParse(`{"prim":"map","args":[{"prim":"nat"},{"prim":"unit"}]}`)
	tree := micheline.MustParse(`[{"prim":"Elt","args":[{"int":"7"},{"prim":"Unit"}]}]`)

	back, err := bridge.DecodeToCanonical(context.Background(), schema, tree)
	require.NoError(t, err)
	assert.Equal(t, `{"MichelsonMap":{"7":{"__unit__":null}}}`, back.String())
}

type stubEngine struct {
	executed typed.Value
	encoded  typed.Value
	err      error
}

func (e *stubEngine) Execute(context.Context, micheline.Node, micheline.Node) (typed.Value, error) {
	return e.executed, e.err
}

func (e *stubEngine) Encode(_ context.Context, _ micheline.Node, v typed.Value) (micheline.Node, error) {
	e.encoded = v
	return micheline.Prim("Unit"), e.err
}

func TestBridgeNestedMapsBeyondFirstLevel(t *testing.T) {
	inner := typed.Map(typed.Entry{Key: typed.Int64(1), Value: typed.Int64(2)})
	engine := &stubEngine{executed: typed.Object(
		typed.Field{Key: "outer", Value: typed.Object(typed.Field{Key: "inner", Value: inner})},
	)}
	bridge := NewBridge(engine)

	back, err := bridge.DecodeToCanonical(context.Background(), micheline.Prim("unit"), micheline.Prim("Unit"))
	require.NoError(t, err)
	assert.Equal(t, `{"outer":{"inner":{"1":"2"}}}`, back.String())
}

func TestBridgeEncodePreparesEngineValue(t *testing.T) {
	engine := &stubEngine{}
	bridge := NewBridge(engine)

	value := MustParseValue(`{"m":{"MichelsonMap":{"k":{"__enum__":"On"}}},"n":12,"u":{"__unit__":null}}`)
	_, err := bridge.EncodeFromCanonical(context.Background(), micheline.Prim("unit"), value)
	require.NoError(t, err)

	expected := typed.Object(
		typed.Field{Key: "m", Value: typed.MapFromFields(typed.Field{
			Key:   "k",
			Value: typed.Object(typed.Field{Key: "on", Value: typed.Unit()}),
		})},
		typed.Field{Key: "n", Value: typed.Int64(12)},
		typed.Field{Key: "u", Value: typed.Unit()},
	)
	assert.True(t, expected.Equal(engine.encoded), "expected %s, got %s", expected, engine.encoded)
}

func TestBridgeEngineErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	bridge := NewBridge(&stubEngine{err: boom})

	_, err := bridge.DecodeToCanonical(context.Background(), micheline.Prim("unit"), micheline.Prim("Unit"))
	assert.ErrorIs(t, err, boom)

	_, err = bridge.EncodeFromCanonical(context.Background(), micheline.Prim("unit"), Unit())
	assert.ErrorIs(t, err, boom)
}

func TestBridgeSchemaMismatch(t *testing.T) {
	bridge := NewBridge(taquito.New())
	_, err := bridge.EncodeFromCanonical(context.Background(), micheline.Prim("nat"), String("-1"))
	assert.ErrorIs(t, err, taquito.ErrMismatch)
}
