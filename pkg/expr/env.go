package expr

// SymbolKind identifies the namespace a name resolved in.
type SymbolKind int

const (
	SymbolParameter SymbolKind = iota
	SymbolVariable
	SymbolTable
)

// Symbol is a resolved model name.
type Symbol struct {
	Kind       SymbolKind
	Name       string
	Expression string
	// Fixed reports that Value is authoritative and Expression must not be
	// re-evaluated (a locked parameter, a parameter already resolved for this
	// run, or an initialized variable).
	Fixed bool
	Value Numeric
	Table Table
}

// Table is a lookup table addressable as tbl[x] or tbl[x, col].
type Table interface {
	Lookup(key float64, col int) (float64, error)
}

// Env resolves names for the evaluator.
type Env interface {
	Lookup(name string) (Symbol, bool)
	Streams() *Streams
}
