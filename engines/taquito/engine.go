// Package taquito implements a schema engine with the value semantics of
// the Taquito michelson-encoder: a type schema is compiled into a token
// tree, and each token knows how to execute a Micheline value into a typed
// value and how to encode one back.
//
// Field naming follows Taquito. A pair member is named by its first field
// annotation, or by its positional index when it has none, and unannotated
// nested pairs are flattened into their parent. A union (or) value becomes
// an object with a single field named after the branch taken, with nested
// unions flattened.
package taquito

import (
	"context"
	"errors"
	"fmt"

	"github.com/RobertWHurst/tezbridge/micheline"
	"github.com/RobertWHurst/tezbridge/typed"
)

var (
	// ErrInvalidSchema is returned when a schema node is not a well formed
	// type expression.
	ErrInvalidSchema = errors.New("taquito: invalid schema")

	// ErrUnsupportedType is returned for type primitives the engine does not
	// implement.
	ErrUnsupportedType = errors.New("taquito: unsupported type")

	// ErrMismatch is returned when a value does not have the shape its type
	// requires.
	ErrMismatch = errors.New("taquito: value does not match type")
)

// Engine is a stateless schema engine. The zero value is ready to use.
type Engine struct{}

// New creates an Engine.
func New() *Engine {
	return &Engine{}
}

// Execute interprets tree as a value of the type described by schema.
func (e *Engine) Execute(ctx context.Context, schema, tree micheline.Node) (typed.Value, error) {
	if err := ctx.Err(); err != nil {
		return typed.Value{}, err
	}
	tok, err := compile(schema, 0)
	if err != nil {
		return typed.Value{}, err
	}
	return tok.execute(tree)
}

// Encode produces the Micheline form of value for the type described by
// schema.
func (e *Engine) Encode(ctx context.Context, schema micheline.Node, value typed.Value) (micheline.Node, error) {
	if err := ctx.Err(); err != nil {
		return micheline.Node{}, err
	}
	tok, err := compile(schema, 0)
	if err != nil {
		return micheline.Node{}, err
	}
	return tok.encode(value)
}

func mismatch(prim, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMismatch, prim, fmt.Sprintf(format, args...))
}
