package expr

import (
	"slices"
)

// Definition is a named expression taking part in dependency ordering.
type Definition struct {
	Name       string
	Expression string
}

// Order returns definitions sorted so that every definition appears after
// the definitions it references. Ties keep input order. References to names
// outside defs are ignored. A reference cycle yields a CycleError.
func Order(defs []Definition) ([]Definition, error) {
	index := make(map[string]int, len(defs))
	for i, d := range defs {
		index[d.Name] = i
	}
	deps := make([][]int, len(defs))
	for i, d := range defs {
		names, err := Identifiers(d.Expression)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			if j, ok := index[n]; ok {
				deps[i] = append(deps[i], j)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(defs))
	var stack []string
	out := make([]Definition, 0, len(defs))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			start := slices.Index(stack, defs[i].Name)
			path := append(slices.Clone(stack[start:]), defs[i].Name)
			return &CycleError{Path: path}
		}
		state[i] = visiting
		stack = append(stack, defs[i].Name)
		for _, j := range deps[i] {
			if err := visit(j); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[i] = done
		out = append(out, defs[i])
		return nil
	}

	for i := range defs {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return out, nil
}
