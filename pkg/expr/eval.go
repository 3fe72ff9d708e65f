package expr

import (
	"fmt"
	"math"
	"slices"
)

// Evaluator evaluates expressions against an Env.
// It is not safe for concurrent use; create one per goroutine.
type Evaluator struct {
	env       Env
	finalize  bool
	stream    StreamID
	locals    map[string]Numeric
	resolving []string
}

// NewEvaluator creates an evaluator. See the package documentation for finalize.
func NewEvaluator(env Env, finalize bool) *Evaluator {
	return &Evaluator{env: env, finalize: finalize, stream: StreamParams}
}

// Evaluate parses and evaluates text in one call.
func Evaluate(text string, env Env, finalize bool) (Numeric, error) {
	return NewEvaluator(env, finalize).Evaluate(text)
}

// EvaluateFloat evaluates text and requires a numeric result.
func EvaluateFloat(text string, env Env, finalize bool) (float64, error) {
	return NewEvaluator(env, finalize).Float(text)
}

// Finalize reports whether stochastic terms commit draws.
func (e *Evaluator) Finalize() bool { return e.finalize }

// UseStream selects the stream used for draws in top-level expressions.
// Parameter definitions always draw from StreamParams.
func (e *Evaluator) UseStream(id StreamID) *Evaluator {
	e.stream = id
	return e
}

// SetLocal binds a name that shadows model symbols, such as the cycle index.
func (e *Evaluator) SetLocal(name string, v Numeric) {
	if e.locals == nil {
		e.locals = make(map[string]Numeric)
	}
	e.locals[name] = v
}

// Evaluate parses and evaluates text.
func (e *Evaluator) Evaluate(text string) (Numeric, error) {
	n, err := Parse(text)
	if err != nil {
		return Numeric{}, err
	}
	return e.Eval(n)
}

// Float evaluates text and requires a numeric result.
func (e *Evaluator) Float(text string) (float64, error) {
	v, err := e.Evaluate(text)
	if err != nil {
		return 0, err
	}
	f, err := v.Float()
	if err != nil {
		return 0, fmt.Errorf("%q: %w", text, err)
	}
	return f, nil
}

// Truth evaluates text and requires a boolean result.
func (e *Evaluator) Truth(text string) (bool, error) {
	v, err := e.Evaluate(text)
	if err != nil {
		return false, err
	}
	b, err := v.Truth()
	if err != nil {
		return false, fmt.Errorf("%q: %w", text, err)
	}
	return b, nil
}

// Eval evaluates a parsed expression.
func (e *Evaluator) Eval(n Node) (Numeric, error) {
	switch v := n.(type) {
	case *NumberLit:
		return Number(v.Value), nil
	case *StringLit:
		return String(v.Value), nil
	case *BoolLit:
		return Bool(v.Value), nil
	case *Ident:
		return e.resolve(v.Name)
	case *Unary:
		return e.evalUnary(v)
	case *Binary:
		return e.evalBinary(v)
	case *Call:
		return e.call(v)
	case *Index:
		return e.index(v)
	}
	return Numeric{}, fmt.Errorf("unsupported expression node %T", n)
}

func (e *Evaluator) resolve(name string) (Numeric, error) {
	if v, ok := e.locals[name]; ok {
		return v, nil
	}
	sym, ok := e.env.Lookup(name)
	if !ok {
		return Numeric{}, &UndefinedReferenceError{Name: name}
	}
	if sym.Kind == SymbolTable {
		return Numeric{}, fmt.Errorf("table %s must be indexed, e.g. %s[x]", name, name)
	}
	if sym.Fixed {
		return sym.Value, nil
	}
	if i := slices.Index(e.resolving, name); i >= 0 {
		path := append(slices.Clone(e.resolving[i:]), name)
		return Numeric{}, &CycleError{Path: path}
	}
	e.resolving = append(e.resolving, name)
	prev := e.stream
	if sym.Kind == SymbolParameter {
		e.stream = StreamParams
	}
	defer func() {
		e.resolving = e.resolving[:len(e.resolving)-1]
		e.stream = prev
	}()
	v, err := e.Evaluate(sym.Expression)
	if err != nil {
		return Numeric{}, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func (e *Evaluator) evalUnary(u *Unary) (Numeric, error) {
	x, err := e.Eval(u.X)
	if err != nil {
		return Numeric{}, err
	}
	switch u.Op {
	case "-":
		if x.Kind != KindNumber {
			return Numeric{}, &TypeError{Op: "unary -", Want: KindNumber, Got: x.Kind}
		}
		return Number(-x.Num), nil
	case "!":
		if x.Kind != KindBool {
			return Numeric{}, &TypeError{Op: "!", Want: KindBool, Got: x.Kind}
		}
		return Bool(!x.Bool), nil
	}
	return Numeric{}, fmt.Errorf("unknown unary operator %s", u.Op)
}

func (e *Evaluator) evalBinary(b *Binary) (Numeric, error) {
	x, err := e.Eval(b.X)
	if err != nil {
		return Numeric{}, err
	}
	// && and || short-circuit.
	if b.Op == "&&" || b.Op == "||" {
		if x.Kind != KindBool {
			return Numeric{}, &TypeError{Op: b.Op, Want: KindBool, Got: x.Kind}
		}
		if (b.Op == "&&" && !x.Bool) || (b.Op == "||" && x.Bool) {
			return x, nil
		}
		y, err := e.Eval(b.Y)
		if err != nil {
			return Numeric{}, err
		}
		if y.Kind != KindBool {
			return Numeric{}, &TypeError{Op: b.Op, Want: KindBool, Got: y.Kind}
		}
		return y, nil
	}
	y, err := e.Eval(b.Y)
	if err != nil {
		return Numeric{}, err
	}
	switch b.Op {
	case "==", "!=":
		if x.Kind != y.Kind {
			return Numeric{}, &TypeError{Op: b.Op, Want: x.Kind, Got: y.Kind}
		}
		eq := x == y
		if b.Op == "!=" {
			eq = !eq
		}
		return Bool(eq), nil
	}
	if x.Kind != KindNumber {
		return Numeric{}, &TypeError{Op: b.Op, Want: KindNumber, Got: x.Kind}
	}
	if y.Kind != KindNumber {
		return Numeric{}, &TypeError{Op: b.Op, Want: KindNumber, Got: y.Kind}
	}
	l, r := x.Num, y.Num
	switch b.Op {
	case "+":
		return Number(l + r), nil
	case "-":
		return Number(l - r), nil
	case "*":
		return Number(l * r), nil
	case "/":
		if r == 0 {
			return Numeric{}, &ArgumentError{Func: "/", Msg: "division by zero"}
		}
		return Number(l / r), nil
	case "^":
		v := math.Pow(l, r)
		if math.IsNaN(v) {
			return Numeric{}, &ArgumentError{Func: "^", Msg: fmt.Sprintf("%g^%g is undefined", l, r)}
		}
		return Number(v), nil
	case "<":
		return Bool(l < r), nil
	case "<=":
		return Bool(l <= r), nil
	case ">":
		return Bool(l > r), nil
	case ">=":
		return Bool(l >= r), nil
	}
	return Numeric{}, fmt.Errorf("unknown operator %s", b.Op)
}

func (e *Evaluator) index(ix *Index) (Numeric, error) {
	sym, ok := e.env.Lookup(ix.Name)
	if !ok || sym.Kind != SymbolTable || sym.Table == nil {
		return Numeric{}, &UndefinedReferenceError{Name: ix.Name, Kind: "table"}
	}
	if len(ix.Args) < 1 || len(ix.Args) > 2 {
		return Numeric{}, &ArgumentError{Func: ix.Name, Msg: "expected [key] or [key, column]"}
	}
	args, err := e.floats(ix.Name, ix.Args)
	if err != nil {
		return Numeric{}, err
	}
	col := 1
	if len(args) == 2 {
		col = int(args[1])
	}
	v, err := sym.Table.Lookup(args[0], col)
	if err != nil {
		return Numeric{}, fmt.Errorf("%s: %w", ix.Name, err)
	}
	return Number(v), nil
}

func (e *Evaluator) floats(fn string, nodes []Node) ([]float64, error) {
	out := make([]float64, len(nodes))
	for i, n := range nodes {
		v, err := e.Eval(n)
		if err != nil {
			return nil, err
		}
		if v.Kind != KindNumber {
			return nil, &TypeError{Op: fn, Want: KindNumber, Got: v.Kind}
		}
		out[i] = v.Num
	}
	return out, nil
}
