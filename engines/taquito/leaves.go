package taquito

import (
	"math/big"
	"strings"
	"time"

	"github.com/RobertWHurst/tezbridge/micheline"
	"github.com/RobertWHurst/tezbridge/typed"
)

// timestampLayout is the ISO 8601 form timestamps execute to.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// intToken covers int, nat and mutez.
type intToken struct {
	base
	natural bool
}

func (t *intToken) execute(value micheline.Node) (typed.Value, error) {
	if value.Kind != micheline.KindInt {
		return typed.Value{}, mismatch(t.prim(), "expected an int literal, got %s", value)
	}
	n, ok := new(big.Int).SetString(value.Text, 10)
	if !ok {
		return typed.Value{}, mismatch(t.prim(), "invalid integer %q", value.Text)
	}
	return typed.Int(n), nil
}

func (t *intToken) encode(value typed.Value) (micheline.Node, error) {
	var n *big.Int
	switch value.Kind() {
	case typed.KindInt:
		n = value.BigInt()
	case typed.KindString:
		parsed, ok := new(big.Int).SetString(value.Text(), 10)
		if !ok {
			return micheline.Node{}, mismatch(t.prim(), "%q is not an integer", value.Text())
		}
		n = parsed
	default:
		return micheline.Node{}, mismatch(t.prim(), "expected an integer, got %s", value)
	}
	if t.natural && n.Sign() < 0 {
		return micheline.Node{}, mismatch(t.prim(), "%s is negative", n)
	}
	return micheline.IntFromBig(n), nil
}

// stringToken covers string and the string-shaped domain types such as
// address, key_hash and signature.
type stringToken struct {
	base
}

func (t *stringToken) execute(value micheline.Node) (typed.Value, error) {
	if value.Kind != micheline.KindString {
		return typed.Value{}, mismatch(t.prim(), "expected a string literal, got %s", value)
	}
	return typed.String(value.Text), nil
}

func (t *stringToken) encode(value typed.Value) (micheline.Node, error) {
	if value.Kind() != typed.KindString {
		return micheline.Node{}, mismatch(t.prim(), "expected a string, got %s", value)
	}
	return micheline.String(value.Text()), nil
}

type bytesToken struct {
	base
}

func (t *bytesToken) execute(value micheline.Node) (typed.Value, error) {
	if value.Kind != micheline.KindBytes {
		return typed.Value{}, mismatch(t.prim(), "expected a bytes literal, got %s", value)
	}
	return typed.String(value.Text), nil
}

func (t *bytesToken) encode(value typed.Value) (micheline.Node, error) {
	if value.Kind() != typed.KindString {
		return micheline.Node{}, mismatch(t.prim(), "expected a hex string, got %s", value)
	}
	hex := value.Text()
	if len(hex) >= 2 && (hex[:2] == "0x" || hex[:2] == "0X") {
		hex = hex[2:]
	}
	if strings.IndexFunc(hex, func(r rune) bool { return !isHexDigit(r) }) >= 0 {
		return micheline.Node{}, mismatch(t.prim(), "%q is not hex", value.Text())
	}
	return micheline.Bytes(hex), nil
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

type boolToken struct {
	base
}

func (t *boolToken) execute(value micheline.Node) (typed.Value, error) {
	switch {
	case value.IsPrim("True"):
		return typed.Bool(true), nil
	case value.IsPrim("False"):
		return typed.Bool(false), nil
	}
	return typed.Value{}, mismatch(t.prim(), "expected True or False, got %s", value)
}

func (t *boolToken) encode(value typed.Value) (micheline.Node, error) {
	var b bool
	switch {
	case value.Kind() == typed.KindBool:
		b = value.AsBool()
	case value.Kind() == typed.KindString && value.Text() == "true":
		b = true
	case value.Kind() == typed.KindString && value.Text() == "false":
		b = false
	default:
		return micheline.Node{}, mismatch(t.prim(), "expected a boolean, got %s", value)
	}
	if b {
		return micheline.Prim("True"), nil
	}
	return micheline.Prim("False"), nil
}

type unitToken struct {
	base
}

func (t *unitToken) execute(value micheline.Node) (typed.Value, error) {
	if !value.IsPrim("Unit") {
		return typed.Value{}, mismatch(t.prim(), "expected Unit, got %s", value)
	}
	return typed.Unit(), nil
}

func (t *unitToken) encode(typed.Value) (micheline.Node, error) {
	return micheline.Prim("Unit"), nil
}

type timestampToken struct {
	base
}

func (t *timestampToken) execute(value micheline.Node) (typed.Value, error) {
	switch value.Kind {
	case micheline.KindString:
		parsed, err := time.Parse(time.RFC3339Nano, value.Text)
		if err != nil {
			return typed.String(value.Text), nil
		}
		return typed.String(parsed.UTC().Format(timestampLayout)), nil
	case micheline.KindInt:
		seconds, ok := new(big.Int).SetString(value.Text, 10)
		if !ok || !seconds.IsInt64() {
			return typed.Value{}, mismatch(t.prim(), "invalid unix time %q", value.Text)
		}
		return typed.String(time.Unix(seconds.Int64(), 0).UTC().Format(timestampLayout)), nil
	}
	return typed.Value{}, mismatch(t.prim(), "expected a string or int literal, got %s", value)
}

func (t *timestampToken) encode(value typed.Value) (micheline.Node, error) {
	switch value.Kind() {
	case typed.KindString:
		return micheline.String(value.Text()), nil
	case typed.KindInt:
		return micheline.IntFromBig(value.BigInt()), nil
	}
	return micheline.Node{}, mismatch(t.prim(), "expected a string or integer, got %s", value)
}
