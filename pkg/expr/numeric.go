package expr

import (
	"strconv"
)

// Kind tags the dynamic type of a Numeric.
type Kind string

const (
	KindNumber Kind = "number"
	KindBool   Kind = "bool"
	KindString Kind = "string"
)

// Numeric is the result of evaluating an expression.
type Numeric struct {
	Kind Kind    `json:"kind" yaml:"kind"`
	Num  float64 `json:"num,omitempty" yaml:"num,omitempty"`
	Bool bool    `json:"bool,omitempty" yaml:"bool,omitempty"`
	Str  string  `json:"str,omitempty" yaml:"str,omitempty"`
}

// Number wraps a float64.
func Number(f float64) Numeric { return Numeric{Kind: KindNumber, Num: f} }

// Bool wraps a bool.
func Bool(b bool) Numeric { return Numeric{Kind: KindBool, Bool: b} }

// String wraps a string.
func String(s string) Numeric { return Numeric{Kind: KindString, Str: s} }

// IsZero reports whether the value was never set.
func (n Numeric) IsZero() bool { return n.Kind == "" }

// Float returns the numeric value or a TypeError.
func (n Numeric) Float() (float64, error) {
	if n.Kind != KindNumber {
		return 0, &TypeError{Op: "value", Want: KindNumber, Got: n.Kind}
	}
	return n.Num, nil
}

// Truth returns the boolean value or a TypeError.
func (n Numeric) Truth() (bool, error) {
	if n.Kind != KindBool {
		return false, &TypeError{Op: "condition", Want: KindBool, Got: n.Kind}
	}
	return n.Bool, nil
}

func (n Numeric) String() string {
	switch n.Kind {
	case KindNumber:
		return strconv.FormatFloat(n.Num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(n.Bool)
	case KindString:
		return strconv.Quote(n.Str)
	default:
		return "<unset>"
	}
}
