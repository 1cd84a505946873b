// Package micheline provides the low-level Michelson expression tree
// exchanged with schema engines, in its JSON (Micheline) form.
//
// A Node is one of five variants: an integer literal, a string literal, a
// byte literal, a primitive application (with optional arguments and
// annotations), or a sequence. Both data values and type schemas are
// expressed as Nodes.
package micheline

import (
	"fmt"
	"math/big"
	"strings"
)

// Kind identifies the variant held by a Node.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindString
	KindBytes
	KindPrim
	KindSeq
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindPrim:
		return "prim"
	case KindSeq:
		return "seq"
	default:
		return "invalid"
	}
}

// Node is a Micheline expression.
type Node struct {
	Kind Kind

	// Text holds the decimal digits of an int literal, the content of a
	// string literal, or the hex digits of a bytes literal.
	Text string

	// Prim, Args and Annots describe a primitive application.
	Prim   string
	Args   []Node
	Annots []string

	// Items holds the elements of a sequence.
	Items []Node
}

// Int returns an integer literal node. The text must be base 10.
func Int(text string) Node {
	return Node{Kind: KindInt, Text: text}
}

// IntFromBig returns an integer literal node for n.
func IntFromBig(n *big.Int) Node {
	return Node{Kind: KindInt, Text: n.String()}
}

// String returns a string literal node.
func String(s string) Node {
	return Node{Kind: KindString, Text: s}
}

// Bytes returns a bytes literal node from hex digits.
func Bytes(hex string) Node {
	return Node{Kind: KindBytes, Text: hex}
}

// Prim returns a primitive application node.
func Prim(name string, args ...Node) Node {
	return Node{Kind: KindPrim, Prim: name, Args: args}
}

// Seq returns a sequence node. A Seq with no items is the empty sequence.
func Seq(items ...Node) Node {
	if items == nil {
		items = []Node{}
	}
	return Node{Kind: KindSeq, Items: items}
}

// WithAnnots returns a copy of n carrying the given annotations.
func (n Node) WithAnnots(annots ...string) Node {
	n.Annots = append([]string(nil), annots...)
	return n
}

// IsPrim reports whether n is an application of the named primitive.
func (n Node) IsPrim(name string) bool {
	return n.Kind == KindPrim && n.Prim == name
}

// Annot returns the first annotation with its leading '%' or ':' sigil
// removed, and whether the node carries any annotation at all.
func (n Node) Annot() (string, bool) {
	if len(n.Annots) == 0 {
		return "", false
	}
	return stripSigil(n.Annots[0]), true
}

// stripSigil removes the first '%' or ':' of an annotation together with
// a LIGO "_Liq_entry_" prefix following it.
func stripSigil(annot string) string {
	i := strings.IndexAny(annot, "%:")
	if i < 0 {
		return annot
	}
	rest := strings.TrimPrefix(annot[i+1:], "_Liq_entry_")
	return annot[:i] + rest
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	out := n
	if n.Args != nil {
		out.Args = make([]Node, len(n.Args))
		for i, arg := range n.Args {
			out.Args[i] = arg.Clone()
		}
	}
	if n.Annots != nil {
		out.Annots = append([]string(nil), n.Annots...)
	}
	if n.Items != nil {
		out.Items = make([]Node, len(n.Items))
		for i, item := range n.Items {
			out.Items[i] = item.Clone()
		}
	}
	return out
}

// Equal reports whether n and other are structurally identical. Absent and
// empty argument or annotation lists are equal.
func (n Node) Equal(other Node) bool {
	if n.Kind != other.Kind {
		return false
	}
	switch n.Kind {
	case KindInt, KindString, KindBytes:
		return n.Text == other.Text
	case KindPrim:
		if n.Prim != other.Prim || len(n.Args) != len(other.Args) || len(n.Annots) != len(other.Annots) {
			return false
		}
		for i := range n.Annots {
			if n.Annots[i] != other.Annots[i] {
				return false
			}
		}
		return equalNodes(n.Args, other.Args)
	case KindSeq:
		return equalNodes(n.Items, other.Items)
	default:
		return true
	}
}

func equalNodes(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// String renders n as compact Micheline JSON.
func (n Node) String() string {
	data, err := n.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s node: %v>", n.Kind, err)
	}
	return string(data)
}
