package expr

import "strings"

// ContainsWord reports whether name occurs in text as a whole identifier.
// "cost" matches "cost * 2" but not "costBasis" or "my_cost".
// Text need not be a valid expression.
func ContainsWord(name, text string) bool {
	if name == "" {
		return false
	}
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], name)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(name)
		before := start == 0 || !isIdentChar(text[start-1])
		after := end == len(text) || !isIdentChar(text[end])
		if before && after {
			return true
		}
		from = start + 1
	}
	return false
}

// Identifiers returns the distinct names text refers to, in order of first
// appearance. Function names and boolean literals are excluded; table names
// are included.
func Identifiers(text string) ([]string, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	var out []string
	seen := make(map[string]bool)
	for i, t := range toks {
		if t.typ != tokIdent || t.lit == "true" || t.lit == "false" {
			continue
		}
		if i+1 < len(toks) && toks[i+1].typ == tokOp && toks[i+1].lit == "(" {
			continue
		}
		if !seen[t.lit] {
			seen[t.lit] = true
			out = append(out, t.lit)
		}
	}
	return out, nil
}

// RenameWord replaces every whole-identifier occurrence of old in text.
func RenameWord(text, old, new string) string {
	if old == "" || !ContainsWord(old, text) {
		return text
	}
	var b strings.Builder
	for i := 0; i < len(text); {
		if strings.HasPrefix(text[i:], old) &&
			(i == 0 || !isIdentChar(text[i-1])) &&
			(i+len(old) == len(text) || !isIdentChar(text[i+len(old)])) {
			b.WriteString(new)
			i += len(old)
			continue
		}
		b.WriteByte(text[i])
		i++
	}
	return b.String()
}
