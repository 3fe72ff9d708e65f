package expr

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

type builtin struct {
	minArgs, maxArgs int
	fn               func(args []float64) (float64, error)
}

var builtins = map[string]builtin{
	"abs":   {1, 1, func(a []float64) (float64, error) { return math.Abs(a[0]), nil }},
	"exp":   {1, 1, func(a []float64) (float64, error) { return math.Exp(a[0]), nil }},
	"ln":    {1, 1, positive("ln", math.Log)},
	"log":   {1, 1, positive("log", math.Log)},
	"log10": {1, 1, positive("log10", math.Log10)},
	"sqrt": {1, 1, func(a []float64) (float64, error) {
		if a[0] < 0 {
			return 0, &ArgumentError{Func: "sqrt", Msg: "negative argument"}
		}
		return math.Sqrt(a[0]), nil
	}},
	"floor": {1, 1, func(a []float64) (float64, error) { return math.Floor(a[0]), nil }},
	"ceil":  {1, 1, func(a []float64) (float64, error) { return math.Ceil(a[0]), nil }},
	"round": {1, 2, func(a []float64) (float64, error) {
		if len(a) == 1 {
			return math.Round(a[0]), nil
		}
		scale := math.Pow(10, a[1])
		return math.Round(a[0]*scale) / scale, nil
	}},
	"min": {1, -1, func(a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m, nil
	}},
	"max": {1, -1, func(a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m, nil
	}},
	// probToRate converts a probability over t time units into a constant rate.
	"probToRate": {1, 2, func(a []float64) (float64, error) {
		if a[0] < 0 || a[0] >= 1 {
			return 0, &ArgumentError{Func: "probToRate", Msg: "probability must be in [0,1)"}
		}
		t := 1.0
		if len(a) == 2 {
			t = a[1]
		}
		return -math.Log(1-a[0]) / t, nil
	}},
	// rateToProb converts a constant rate into a probability over t time units.
	"rateToProb": {1, 2, func(a []float64) (float64, error) {
		if a[0] < 0 {
			return 0, &ArgumentError{Func: "rateToProb", Msg: "rate must be non-negative"}
		}
		t := 1.0
		if len(a) == 2 {
			t = a[1]
		}
		return 1 - math.Exp(-a[0]*t), nil
	}},
}

func positive(name string, f func(float64) float64) func([]float64) (float64, error) {
	return func(a []float64) (float64, error) {
		if a[0] <= 0 {
			return 0, &ArgumentError{Func: name, Msg: "argument must be positive"}
		}
		return f(a[0]), nil
	}
}

// sampler is the subset of a gonum distribution the interpreter needs.
// Draws use inverse-transform sampling so that one uniform from the stream
// maps to one value, which keeps common random numbers aligned.
type sampler interface {
	Mean() float64
	Quantile(p float64) float64
}

type distribution struct {
	args  int
	build func(a []float64) (sampler, error)
}

var distributions = map[string]distribution{
	"Uniform": {2, func(a []float64) (sampler, error) {
		if a[1] < a[0] {
			return nil, &ArgumentError{Func: "Uniform", Msg: "max must not be below min"}
		}
		return distuv.Uniform{Min: a[0], Max: a[1]}, nil
	}},
	"Normal": {2, func(a []float64) (sampler, error) {
		if a[1] <= 0 {
			return nil, &ArgumentError{Func: "Normal", Msg: "sigma must be positive"}
		}
		return distuv.Normal{Mu: a[0], Sigma: a[1]}, nil
	}},
	"LogNormal": {2, func(a []float64) (sampler, error) {
		if a[1] <= 0 {
			return nil, &ArgumentError{Func: "LogNormal", Msg: "sigma must be positive"}
		}
		return distuv.LogNormal{Mu: a[0], Sigma: a[1]}, nil
	}},
	"Beta": {2, func(a []float64) (sampler, error) {
		if a[0] <= 0 || a[1] <= 0 {
			return nil, &ArgumentError{Func: "Beta", Msg: "shape parameters must be positive"}
		}
		return distuv.Beta{Alpha: a[0], Beta: a[1]}, nil
	}},
	// Gamma(shape, scale).
	"Gamma": {2, func(a []float64) (sampler, error) {
		if a[0] <= 0 || a[1] <= 0 {
			return nil, &ArgumentError{Func: "Gamma", Msg: "shape and scale must be positive"}
		}
		return distuv.Gamma{Alpha: a[0], Beta: 1 / a[1]}, nil
	}},
	// Triangular(min, mode, max).
	"Triangular": {3, func(a []float64) (sampler, error) {
		if !(a[0] <= a[1] && a[1] <= a[2]) || a[0] == a[2] {
			return nil, &ArgumentError{Func: "Triangular", Msg: "expected min <= mode <= max with min < max"}
		}
		return distuv.NewTriangle(a[0], a[2], a[1], nil), nil
	}},
	"Exponential": {1, func(a []float64) (sampler, error) {
		if a[0] <= 0 {
			return nil, &ArgumentError{Func: "Exponential", Msg: "rate must be positive"}
		}
		return distuv.Exponential{Rate: a[0]}, nil
	}},
	// Weibull(shape, scale).
	"Weibull": {2, func(a []float64) (sampler, error) {
		if a[0] <= 0 || a[1] <= 0 {
			return nil, &ArgumentError{Func: "Weibull", Msg: "shape and scale must be positive"}
		}
		return distuv.Weibull{K: a[0], Lambda: a[1]}, nil
	}},
	"Bernoulli": {1, func(a []float64) (sampler, error) {
		if a[0] < 0 || a[0] > 1 {
			return nil, &ArgumentError{Func: "Bernoulli", Msg: "p must be in [0,1]"}
		}
		d := distuv.Bernoulli{P: a[0]}
		return discrete{mean: d.Mean(), cdf: d.CDF}, nil
	}},
	"Poisson": {1, func(a []float64) (sampler, error) {
		if a[0] <= 0 {
			return nil, &ArgumentError{Func: "Poisson", Msg: "lambda must be positive"}
		}
		d := distuv.Poisson{Lambda: a[0]}
		return discrete{mean: d.Mean(), cdf: d.CDF}, nil
	}},
	// Binomial(n, p).
	"Binomial": {2, func(a []float64) (sampler, error) {
		if a[0] < 0 || a[1] < 0 || a[1] > 1 {
			return nil, &ArgumentError{Func: "Binomial", Msg: "expected n >= 0 and p in [0,1]"}
		}
		d := distuv.Binomial{N: math.Floor(a[0]), P: a[1]}
		return discrete{mean: d.Mean(), cdf: d.CDF}, nil
	}},
}

// discrete inverts a CDF over the non-negative integers.
type discrete struct {
	mean float64
	cdf  func(float64) float64
}

const maxDiscreteSearch = 1 << 20

func (d discrete) Mean() float64 { return d.mean }

func (d discrete) Quantile(p float64) float64 {
	for k := 0.0; k < maxDiscreteSearch; k++ {
		if d.cdf(k) >= p {
			return k
		}
	}
	return maxDiscreteSearch
}

// IsFunction reports whether name is a built-in function or distribution.
func IsFunction(name string) bool {
	if _, ok := builtins[name]; ok {
		return true
	}
	if name == "if" {
		return true
	}
	_, ok := distributions[name]
	return ok
}

// IsStochastic reports whether text calls any distribution function.
func IsStochastic(text string) bool {
	n, err := Parse(text)
	if err != nil {
		return false
	}
	stochastic := false
	Walk(n, func(n Node) {
		if c, ok := n.(*Call); ok {
			if _, ok := distributions[c.Name]; ok {
				stochastic = true
			}
		}
	})
	return stochastic
}

func (e *Evaluator) call(c *Call) (Numeric, error) {
	if c.Name == "if" {
		return e.callIf(c)
	}
	if d, ok := distributions[c.Name]; ok {
		if len(c.Args) != d.args {
			return Numeric{}, &ArgumentError{Func: c.Name, Msg: fmt.Sprintf("expected %d arguments, got %d", d.args, len(c.Args))}
		}
		args, err := e.floats(c.Name, c.Args)
		if err != nil {
			return Numeric{}, err
		}
		dist, err := d.build(args)
		if err != nil {
			return Numeric{}, err
		}
		if !e.finalize {
			return Number(dist.Mean()), nil
		}
		streams := e.env.Streams()
		if streams == nil {
			return Numeric{}, fmt.Errorf("%s: no random stream available", c.Name)
		}
		return Number(dist.Quantile(streams.Float64(e.stream))), nil
	}
	b, ok := builtins[c.Name]
	if !ok {
		return Numeric{}, &UndefinedReferenceError{Name: c.Name, Kind: "function"}
	}
	if len(c.Args) < b.minArgs || (b.maxArgs >= 0 && len(c.Args) > b.maxArgs) {
		return Numeric{}, &ArgumentError{Func: c.Name, Msg: fmt.Sprintf("wrong number of arguments (%d)", len(c.Args))}
	}
	args, err := e.floats(c.Name, c.Args)
	if err != nil {
		return Numeric{}, err
	}
	v, err := b.fn(args)
	if err != nil {
		return Numeric{}, err
	}
	return Number(v), nil
}

// callIf evaluates only the selected branch.
func (e *Evaluator) callIf(c *Call) (Numeric, error) {
	if len(c.Args) != 3 {
		return Numeric{}, &ArgumentError{Func: "if", Msg: "expected if(condition, then, else)"}
	}
	cond, err := e.Eval(c.Args[0])
	if err != nil {
		return Numeric{}, err
	}
	if cond.Kind != KindBool {
		return Numeric{}, &TypeError{Op: "if", Want: KindBool, Got: cond.Kind}
	}
	if cond.Bool {
		return e.Eval(c.Args[1])
	}
	return e.Eval(c.Args[2])
}

// FunctionNames lists every built-in, for completion and documentation.
func FunctionNames() []string {
	names := []string{"if"}
	for n := range builtins {
		names = append(names, n)
	}
	for n := range distributions {
		names = append(names, n)
	}
	return names
}
