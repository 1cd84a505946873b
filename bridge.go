package tezbridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RobertWHurst/tezbridge/micheline"
)

// Bridge converts between canonical values and Micheline trees for a given
// type schema. It wraps an Engine with the conversion passes that map
// between the engine's typed values and the canonical JSON form.
//
// A Bridge holds no state between calls and is safe for concurrent use.
type Bridge struct {
	engine Engine

	// Logger receives debug output about each conversion. If nil,
	// slog.Default() is used.
	Logger *slog.Logger
}

// NewBridge creates a Bridge backed by engine.
func NewBridge(engine Engine) *Bridge {
	return &Bridge{engine: engine}
}

func (b *Bridge) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// DecodeToCanonical executes tree against schema and returns its canonical
// form. Neither argument is modified.
func (b *Bridge) DecodeToCanonical(ctx context.Context, schema, tree micheline.Node) (Value, error) {
	executed, err := b.engine.Execute(ctx, schema.Clone(), tree.Clone())
	if err != nil {
		return Value{}, fmt.Errorf("executing value against schema: %w", err)
	}

	value := lowerValue(runPasses(decodePasses, liftTyped(executed)))
	b.logger().Debug("decoded value", "kind", value.Kind())
	return value, nil
}

// EncodeFromCanonical converts value to the engine's typed form and returns
// the Micheline tree the engine produces for schema.
func (b *Bridge) EncodeFromCanonical(ctx context.Context, schema micheline.Node, value Value) (micheline.Node, error) {
	prepared := lowerTyped(runPasses(encodePasses, liftValue(value)))

	tree, err := b.engine.Encode(ctx, schema.Clone(), prepared)
	if err != nil {
		return micheline.Node{}, fmt.Errorf("encoding value against schema: %w", err)
	}
	b.logger().Debug("encoded value", "kind", tree.Kind)
	return tree, nil
}
