package taquito

import (
	"fmt"
	"slices"

	"github.com/RobertWHurst/tezbridge/micheline"
	"github.com/RobertWHurst/tezbridge/typed"
)

type pairToken struct {
	base
	left, right token
}

// compilePair builds a pair token. Pairs with more than two arguments are
// right combs. The right member is numbered after every key the left
// member contributes.
func compilePair(b base) (token, error) {
	args := b.node.Args
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: pair takes at least 2 arguments, got %d", ErrInvalidSchema, len(args))
	}
	rightSchema := args[1]
	if len(args) > 2 {
		rightSchema = micheline.Prim("pair", args[1:]...)
	}

	left, err := compile(args[0], b.idx)
	if err != nil {
		return nil, err
	}
	next := b.idx + 1
	if pair, ok := left.(*pairToken); ok {
		next = b.idx + pair.keyCount()
	}
	right, err := compile(rightSchema, next)
	if err != nil {
		return nil, err
	}
	return &pairToken{base: b, left: left, right: right}, nil
}

// keyCount is the number of fields the pair's object has.
func (t *pairToken) keyCount() int {
	return memberKeys(t.left) + memberKeys(t.right)
}

func memberKeys(tok token) int {
	if pair, ok := tok.(*pairToken); ok && !pair.hasAnnots() {
		return pair.keyCount()
	}
	return 1
}

func (t *pairToken) execute(value micheline.Node) (typed.Value, error) {
	leftValue, rightValue, err := splitPair(value)
	if err != nil {
		return typed.Value{}, err
	}
	left, err := t.left.execute(leftValue)
	if err != nil {
		return typed.Value{}, err
	}
	right, err := t.right.execute(rightValue)
	if err != nil {
		return typed.Value{}, err
	}
	fields := append(members(t.left, left), members(t.right, right)...)
	return typed.Object(fields...), nil
}

// members returns the fields a member contributes to the parent object.
func members(tok token, value typed.Value) []typed.Field {
	if pair, ok := tok.(*pairToken); ok && !pair.hasAnnots() {
		return value.Fields()
	}
	return []typed.Field{{Key: tok.annot(), Value: value}}
}

func splitPair(value micheline.Node) (micheline.Node, micheline.Node, error) {
	var args []micheline.Node
	switch {
	case value.IsPrim("Pair"):
		args = value.Args
	case value.Kind == micheline.KindSeq:
		args = value.Items
	default:
		return micheline.Node{}, micheline.Node{}, mismatch("pair", "expected Pair, got %s", value)
	}
	switch {
	case len(args) < 2:
		return micheline.Node{}, micheline.Node{}, mismatch("pair", "expected at least 2 values, got %d", len(args))
	case len(args) == 2:
		return args[0], args[1], nil
	default:
		return args[0], micheline.Prim("Pair", args[1:]...), nil
	}
}

func (t *pairToken) encode(value typed.Value) (micheline.Node, error) {
	if value.Kind() != typed.KindObject {
		return micheline.Node{}, mismatch("pair", "expected an object, got %s", value)
	}
	left, err := t.left.encode(member(t.left, value))
	if err != nil {
		return micheline.Node{}, err
	}
	right, err := t.right.encode(member(t.right, value))
	if err != nil {
		return micheline.Node{}, err
	}
	return micheline.Prim("Pair", left, right), nil
}

// member selects the part of the parent object a member encodes from. A
// missing field encodes as null.
func member(tok token, value typed.Value) typed.Value {
	if pair, ok := tok.(*pairToken); ok && !pair.hasAnnots() {
		return value
	}
	field, _ := value.Get(tok.annot())
	return field
}

type orToken struct {
	base
	left, right token
}

func compileOr(b base) (token, error) {
	if err := requireArgs(b.node, 2); err != nil {
		return nil, err
	}
	left, err := compile(b.node.Args[0], b.idx)
	if err != nil {
		return nil, err
	}
	right, err := compile(b.node.Args[1], b.idx+variantKeys(left))
	if err != nil {
		return nil, err
	}
	return &orToken{base: b, left: left, right: right}, nil
}

func variantKeys(tok token) int {
	if or, ok := tok.(*orToken); ok {
		return variantKeys(or.left) + variantKeys(or.right)
	}
	return 1
}

// hasVariant reports whether a leaf branch named label is reachable
// through nested unions.
func (t *orToken) hasVariant(label string) bool {
	for _, branch := range []token{t.left, t.right} {
		if or, ok := branch.(*orToken); ok {
			if or.hasVariant(label) {
				return true
			}
		} else if branch.annot() == label {
			return true
		}
	}
	return false
}

func (t *orToken) execute(value micheline.Node) (typed.Value, error) {
	var branch token
	switch {
	case value.IsPrim("Left") && len(value.Args) == 1:
		branch = t.left
	case value.IsPrim("Right") && len(value.Args) == 1:
		branch = t.right
	default:
		return typed.Value{}, mismatch("or", "expected Left or Right, got %s", value)
	}
	inner, err := branch.execute(value.Args[0])
	if err != nil {
		return typed.Value{}, err
	}
	if _, ok := branch.(*orToken); ok {
		return inner, nil
	}
	return typed.Object(typed.Field{Key: branch.annot(), Value: inner}), nil
}

func (t *orToken) encode(value typed.Value) (micheline.Node, error) {
	if value.Kind() != typed.KindObject || len(value.Fields()) == 0 {
		return micheline.Node{}, mismatch("or", "expected an object naming a branch, got %s", value)
	}
	variant := value.Fields()[0]

	branches := []struct {
		tok  token
		prim string
	}{{t.left, "Left"}, {t.right, "Right"}}

	for _, branch := range branches {
		if _, ok := branch.tok.(*orToken); !ok && branch.tok.annot() == variant.Key {
			inner, err := branch.tok.encode(variant.Value)
			if err != nil {
				return micheline.Node{}, err
			}
			return micheline.Prim(branch.prim, inner), nil
		}
	}
	for _, branch := range branches {
		if or, ok := branch.tok.(*orToken); ok && or.hasVariant(variant.Key) {
			inner, err := or.encode(value)
			if err != nil {
				return micheline.Node{}, err
			}
			return micheline.Prim(branch.prim, inner), nil
		}
	}
	return micheline.Node{}, mismatch("or", "no branch named %q", variant.Key)
}

type optionToken struct {
	base
	inner token
}

func (t *optionToken) execute(value micheline.Node) (typed.Value, error) {
	switch {
	case value.IsPrim("None"):
		return typed.Null(), nil
	case value.IsPrim("Some") && len(value.Args) == 1:
		return t.inner.execute(value.Args[0])
	}
	return typed.Value{}, mismatch("option", "expected None or Some, got %s", value)
}

func (t *optionToken) encode(value typed.Value) (micheline.Node, error) {
	if value.IsNull() {
		return micheline.Prim("None"), nil
	}
	inner, err := t.inner.encode(value)
	if err != nil {
		return micheline.Node{}, err
	}
	return micheline.Prim("Some", inner), nil
}

// listToken covers list and set. Set elements are sorted on encode.
type listToken struct {
	base
	elem   token
	sorted bool
}

func (t *listToken) execute(value micheline.Node) (typed.Value, error) {
	if value.Kind != micheline.KindSeq {
		return typed.Value{}, mismatch(t.prim(), "expected a sequence, got %s", value)
	}
	items := make([]typed.Value, len(value.Items))
	for i, item := range value.Items {
		executed, err := t.elem.execute(item)
		if err != nil {
			return typed.Value{}, err
		}
		items[i] = executed
	}
	return typed.List(items...), nil
}

func (t *listToken) encode(value typed.Value) (micheline.Node, error) {
	if value.Kind() != typed.KindList {
		return micheline.Node{}, mismatch(t.prim(), "expected a list, got %s", value)
	}
	items := make([]micheline.Node, len(value.Items()))
	for i, item := range value.Items() {
		encoded, err := t.elem.encode(item)
		if err != nil {
			return micheline.Node{}, err
		}
		items[i] = encoded
	}
	if t.sorted {
		slices.SortStableFunc(items, compareNodes)
	}
	return micheline.Seq(items...), nil
}
