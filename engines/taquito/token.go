package taquito

import (
	"fmt"
	"strconv"

	"github.com/RobertWHurst/tezbridge/micheline"
	"github.com/RobertWHurst/tezbridge/typed"
)

// token is a compiled schema node.
type token interface {
	execute(value micheline.Node) (typed.Value, error)
	encode(value typed.Value) (micheline.Node, error)

	// annot is the field name the token contributes to its parent object.
	annot() string
	hasAnnots() bool
}

type base struct {
	node micheline.Node
	idx  int
}

func (b base) annot() string {
	if annot, ok := b.node.Annot(); ok {
		return annot
	}
	return strconv.Itoa(b.idx)
}

func (b base) hasAnnots() bool {
	return len(b.node.Annots) > 0
}

func (b base) prim() string {
	return b.node.Prim
}

// compile builds the token tree for schema. idx is the positional name the
// token takes when it carries no annotation.
func compile(schema micheline.Node, idx int) (token, error) {
	if schema.Kind != micheline.KindPrim {
		return nil, fmt.Errorf("%w: expected a type primitive, got %s", ErrInvalidSchema, schema.Kind)
	}
	b := base{node: schema, idx: idx}

	switch schema.Prim {
	case "int":
		return &intToken{base: b}, nil
	case "nat", "mutez":
		return &intToken{base: b, natural: true}, nil
	case "string", "address", "key", "key_hash", "signature", "chain_id", "contract":
		return &stringToken{base: b}, nil
	case "bytes":
		return &bytesToken{base: b}, nil
	case "bool":
		return &boolToken{base: b}, nil
	case "unit":
		return &unitToken{base: b}, nil
	case "timestamp":
		return &timestampToken{base: b}, nil
	case "option":
		if err := requireArgs(schema, 1); err != nil {
			return nil, err
		}
		inner, err := compile(schema.Args[0], idx)
		if err != nil {
			return nil, err
		}
		return &optionToken{base: b, inner: inner}, nil
	case "list", "set":
		if err := requireArgs(schema, 1); err != nil {
			return nil, err
		}
		elem, err := compile(schema.Args[0], 0)
		if err != nil {
			return nil, err
		}
		return &listToken{base: b, elem: elem, sorted: schema.Prim == "set"}, nil
	case "map", "big_map":
		if err := requireArgs(schema, 2); err != nil {
			return nil, err
		}
		key, err := compile(schema.Args[0], 0)
		if err != nil {
			return nil, err
		}
		value, err := compile(schema.Args[1], 1)
		if err != nil {
			return nil, err
		}
		return &mapToken{base: b, key: key, value: value, big: schema.Prim == "big_map"}, nil
	case "pair":
		return compilePair(b)
	case "or":
		return compileOr(b)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, schema.Prim)
	}
}

func requireArgs(schema micheline.Node, n int) error {
	if len(schema.Args) != n {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrInvalidSchema, schema.Prim, n, len(schema.Args))
	}
	return nil
}
