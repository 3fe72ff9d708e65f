package expr

import (
	"strconv"
	"strings"
)

// Node is a parsed expression.
type Node interface {
	Pos() int
	String() string
}

type (
	NumberLit struct {
		Value  float64
		Offset int
	}
	StringLit struct {
		Value  string
		Offset int
	}
	BoolLit struct {
		Value  bool
		Offset int
	}
	Ident struct {
		Name   string
		Offset int
	}
	Unary struct {
		Op     string
		X      Node
		Offset int
	}
	Binary struct {
		Op     string
		X, Y   Node
		Offset int
	}
	// Call is a built-in function application, f(a, b).
	Call struct {
		Name   string
		Args   []Node
		Offset int
	}
	// Index is a table lookup, tbl[x] or tbl[x, col].
	Index struct {
		Name   string
		Args   []Node
		Offset int
	}
)

func (n *NumberLit) Pos() int { return n.Offset }
func (n *StringLit) Pos() int { return n.Offset }
func (n *BoolLit) Pos() int   { return n.Offset }
func (n *Ident) Pos() int     { return n.Offset }
func (n *Unary) Pos() int     { return n.Offset }
func (n *Binary) Pos() int    { return n.Offset }
func (n *Call) Pos() int      { return n.Offset }
func (n *Index) Pos() int     { return n.Offset }

func (n *NumberLit) String() string { return strconv.FormatFloat(n.Value, 'g', -1, 64) }
func (n *StringLit) String() string { return strconv.Quote(n.Value) }
func (n *BoolLit) String() string   { return strconv.FormatBool(n.Value) }
func (n *Ident) String() string     { return n.Name }
func (n *Unary) String() string     { return "(" + n.Op + n.X.String() + ")" }
func (n *Binary) String() string {
	return "(" + n.X.String() + " " + n.Op + " " + n.Y.String() + ")"
}
func (n *Call) String() string  { return n.Name + "(" + joinNodes(n.Args) + ")" }
func (n *Index) String() string { return n.Name + "[" + joinNodes(n.Args) + "]" }

func joinNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}

// Walk calls fn for n and every node below it, depth first.
func Walk(n Node, fn func(Node)) {
	if n == nil {
		return
	}
	fn(n)
	switch v := n.(type) {
	case *Unary:
		Walk(v.X, fn)
	case *Binary:
		Walk(v.X, fn)
		Walk(v.Y, fn)
	case *Call:
		for _, a := range v.Args {
			Walk(a, fn)
		}
	case *Index:
		for _, a := range v.Args {
			Walk(a, fn)
		}
	}
}
