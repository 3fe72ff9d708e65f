package domain

import (
	"strings"

	"github.com/aretw0/arbor/pkg/expr"
)

// VarUpdate assigns a new value to a Variable during a chain rollout.
type VarUpdate struct {
	Name       string
	Expression string
}

// ParseVarUpdates splits "v1 = expr; v2 = expr" into updates. Every target
// must be a Variable of m and every right-hand side must parse.
func ParseVarUpdates(text string, m *Model) ([]VarUpdate, error) {
	var out []VarUpdate
	for _, clause := range strings.Split(text, ";") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		pos := strings.IndexByte(clause, '=')
		if pos < 0 {
			return nil, &expr.SyntaxError{Expr: clause, Msg: "no assignment operator (=) found"}
		}
		u := VarUpdate{
			Name:       strings.TrimSpace(clause[:pos]),
			Expression: strings.TrimSpace(clause[pos+1:]),
		}
		if m.Variable(u.Name) == nil {
			return nil, &expr.UndefinedReferenceError{Name: u.Name, Kind: "variable"}
		}
		if _, err := expr.Parse(u.Expression); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
