package micheline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/tidwall/gjson"
)

// ErrInvalid is returned when JSON input is not a Micheline expression.
var ErrInvalid = errors.New("micheline: invalid expression")

// Parse decodes Micheline JSON. Argument and item order is preserved.
func Parse(data []byte) (Node, error) {
	if !gjson.ValidBytes(data) {
		return Node{}, fmt.Errorf("%w: malformed JSON", ErrInvalid)
	}
	return fromResult(gjson.ParseBytes(data))
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Node) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

func fromResult(result gjson.Result) (Node, error) {
	if result.IsArray() {
		items := []Node{}
		var err error
		result.ForEach(func(_, item gjson.Result) bool {
			var node Node
			node, err = fromResult(item)
			if err != nil {
				return false
			}
			items = append(items, node)
			return true
		})
		if err != nil {
			return Node{}, err
		}
		return Node{Kind: KindSeq, Items: items}, nil
	}
	if !result.IsObject() {
		return Node{}, fmt.Errorf("%w: expected object or array, got %s", ErrInvalid, result.Type)
	}

	if literal := result.Get("int"); literal.Exists() {
		text, err := intText(literal)
		if err != nil {
			return Node{}, err
		}
		return Int(text), nil
	}
	if literal := result.Get("string"); literal.Exists() {
		if literal.Type != gjson.String {
			return Node{}, fmt.Errorf("%w: string literal must be a JSON string", ErrInvalid)
		}
		return String(literal.Str), nil
	}
	if literal := result.Get("bytes"); literal.Exists() {
		if literal.Type != gjson.String {
			return Node{}, fmt.Errorf("%w: bytes literal must be a JSON string", ErrInvalid)
		}
		return Bytes(literal.Str), nil
	}

	prim := result.Get("prim")
	if prim.Type != gjson.String {
		return Node{}, fmt.Errorf("%w: object has no int, string, bytes or prim field", ErrInvalid)
	}
	node := Node{Kind: KindPrim, Prim: prim.Str}

	if args := result.Get("args"); args.Exists() {
		if !args.IsArray() {
			return Node{}, fmt.Errorf("%w: args of %s must be an array", ErrInvalid, prim.Str)
		}
		var err error
		args.ForEach(func(_, arg gjson.Result) bool {
			var child Node
			child, err = fromResult(arg)
			if err != nil {
				return false
			}
			node.Args = append(node.Args, child)
			return true
		})
		if err != nil {
			return Node{}, err
		}
	}

	if annots := result.Get("annots"); annots.Exists() {
		if !annots.IsArray() {
			return Node{}, fmt.Errorf("%w: annots of %s must be an array", ErrInvalid, prim.Str)
		}
		var err error
		annots.ForEach(func(_, annot gjson.Result) bool {
			if annot.Type != gjson.String {
				err = fmt.Errorf("%w: annotation of %s must be a string", ErrInvalid, prim.Str)
				return false
			}
			node.Annots = append(node.Annots, annot.Str)
			return true
		})
		if err != nil {
			return Node{}, err
		}
	}

	return node, nil
}

// intText accepts both `"int":"42"` and the non-standard `"int":42`.
func intText(literal gjson.Result) (string, error) {
	var text string
	switch literal.Type {
	case gjson.String:
		text = literal.Str
	case gjson.Number:
		text = literal.Raw
	default:
		return "", fmt.Errorf("%w: int literal must be a string or number", ErrInvalid)
	}
	n, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return "", fmt.Errorf("%w: int literal %q is not a base 10 integer", ErrInvalid, text)
	}
	return n.String(), nil
}

// MarshalJSON implements json.Marshaler. Empty args and annots are omitted
// and an empty sequence renders as [].
func (n Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n Node) writeJSON(buf *bytes.Buffer) error {
	switch n.Kind {
	case KindInt:
		writeLiteral(buf, "int", n.Text)
	case KindString:
		writeLiteral(buf, "string", n.Text)
	case KindBytes:
		writeLiteral(buf, "bytes", n.Text)
	case KindPrim:
		buf.WriteString(`{"prim":`)
		writeString(buf, n.Prim)
		if len(n.Args) > 0 {
			buf.WriteString(`,"args":`)
			if err := writeNodes(buf, n.Args); err != nil {
				return err
			}
		}
		if len(n.Annots) > 0 {
			buf.WriteString(`,"annots":[`)
			for i, annot := range n.Annots {
				if i > 0 {
					buf.WriteByte(',')
				}
				writeString(buf, annot)
			}
			buf.WriteByte(']')
		}
		buf.WriteByte('}')
	case KindSeq:
		return writeNodes(buf, n.Items)
	default:
		return fmt.Errorf("micheline: cannot marshal %s node", n.Kind)
	}
	return nil
}

func writeNodes(buf *bytes.Buffer, nodes []Node) error {
	buf.WriteByte('[')
	for i, node := range nodes {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := node.writeJSON(buf); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeLiteral(buf *bytes.Buffer, key, text string) {
	buf.WriteByte('{')
	writeString(buf, key)
	buf.WriteByte(':')
	writeString(buf, text)
	buf.WriteByte('}')
}

func writeString(buf *bytes.Buffer, s string) {
	// json.Marshal of a string cannot fail.
	data, _ := json.Marshal(s)
	buf.Write(data)
}

// MustParse is like Parse but panics on error. It is intended for
// fixtures and package-level schema constants.
func MustParse(text string) Node {
	node, err := Parse([]byte(text))
	if err != nil {
		panic(err)
	}
	return node
}
