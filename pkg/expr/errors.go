package expr

import (
	"fmt"
	"strings"
)

// SyntaxError reports a malformed expression.
type SyntaxError struct {
	Expr  string // The full expression text
	Pos   int    // Byte offset of the offending token
	Token string // The offending token, empty at end of input
	Msg   string
}

func (e *SyntaxError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("syntax error in %q: %s", e.Expr, e.Msg)
	}
	return fmt.Sprintf("syntax error in %q at %d near %q: %s", e.Expr, e.Pos, e.Token, e.Msg)
}

// UndefinedReferenceError reports a name that does not resolve to any
// Parameter, Variable, Table, function or Markov state.
type UndefinedReferenceError struct {
	Name string
	Kind string // "object", "function", "table" or "state"
}

func (e *UndefinedReferenceError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "object"
	}
	return fmt.Sprintf("undefined %s: %s", kind, e.Name)
}

// CycleError reports a dependency cycle between definitions.
// Path starts and ends with the same name.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular reference: %s", strings.Join(e.Path, " -> "))
}

// TypeError reports an operator or function applied to a value of the wrong kind.
// The interpreter never coerces between numbers, booleans and strings.
type TypeError struct {
	Op   string
	Want Kind
	Got  Kind
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Op, e.Want, e.Got)
}

// ArgumentError reports an invalid argument to a function or operator,
// such as a negative standard deviation or a division by zero.
type ArgumentError struct {
	Func string
	Msg  string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Func, e.Msg)
}
