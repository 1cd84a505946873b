package taquito

import (
	"cmp"
	"math/big"
	"strings"

	"github.com/RobertWHurst/tezbridge/micheline"
)

// compareNodes orders encoded comparable values: integers numerically,
// strings and bytes lexicographically, and constructors by name and then
// arguments. Constructor names sort the way Michelson orders them
// (False < True, Left < Right, None < Some).
func compareNodes(a, b micheline.Node) int {
	if a.Kind != b.Kind {
		return cmp.Compare(a.Kind, b.Kind)
	}
	switch a.Kind {
	case micheline.KindInt:
		x, okX := new(big.Int).SetString(a.Text, 10)
		y, okY := new(big.Int).SetString(b.Text, 10)
		if okX && okY {
			return x.Cmp(y)
		}
		return strings.Compare(a.Text, b.Text)
	case micheline.KindString, micheline.KindBytes:
		return strings.Compare(a.Text, b.Text)
	case micheline.KindPrim:
		if c := strings.Compare(a.Prim, b.Prim); c != 0 {
			return c
		}
		return compareSeqs(a.Args, b.Args)
	case micheline.KindSeq:
		return compareSeqs(a.Items, b.Items)
	}
	return 0
}

func compareSeqs(a, b []micheline.Node) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareNodes(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}
