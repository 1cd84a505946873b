package tezbridge

import (
	"context"

	"github.com/RobertWHurst/tezbridge/micheline"
	"github.com/RobertWHurst/tezbridge/typed"
)

// Engine executes Micheline values against a type schema and encodes typed
// values back into Micheline. The Bridge never interprets schema nodes
// itself; the engine is the source of truth for both directions.
type Engine interface {
	// Execute interprets tree as a value of the type described by schema.
	Execute(ctx context.Context, schema, tree micheline.Node) (typed.Value, error)

	// Encode produces the Micheline form of value for the type described by
	// schema.
	Encode(ctx context.Context, schema micheline.Node, value typed.Value) (micheline.Node, error)
}
