package expr

import (
	"strconv"
	"strings"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokNumber
	tokString
	tokIdent
	tokOp
)

type token struct {
	typ tokenType
	lit string
	num float64
	pos int
}

// lex splits text into tokens. Whitespace is insignificant.
func lex(text string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isDigit(c) || (c == '.' && i+1 < len(text) && isDigit(text[i+1])):
			start := i
			for i < len(text) && (isDigit(text[i]) || text[i] == '.') {
				i++
			}
			if i < len(text) && (text[i] == 'e' || text[i] == 'E') {
				j := i + 1
				if j < len(text) && (text[j] == '+' || text[j] == '-') {
					j++
				}
				if j < len(text) && isDigit(text[j]) {
					i = j
					for i < len(text) && isDigit(text[i]) {
						i++
					}
				}
			}
			lit := text[start:i]
			f, err := strconv.ParseFloat(lit, 64)
			if err != nil {
				return nil, &SyntaxError{Expr: text, Pos: start, Token: lit, Msg: "malformed number"}
			}
			toks = append(toks, token{typ: tokNumber, lit: lit, num: f, pos: start})
		case isIdentStart(c):
			start := i
			for i < len(text) && isIdentChar(text[i]) {
				i++
			}
			toks = append(toks, token{typ: tokIdent, lit: text[start:i], pos: start})
		case c == '\'' || c == '"':
			start := i
			end := strings.IndexByte(text[i+1:], c)
			if end < 0 {
				return nil, &SyntaxError{Expr: text, Pos: start, Token: text[start:], Msg: "unterminated string"}
			}
			lit := text[i+1 : i+1+end]
			i += end + 2
			toks = append(toks, token{typ: tokString, lit: lit, pos: start})
		default:
			op := matchOperator(text[i:])
			if op == "" {
				return nil, &SyntaxError{Expr: text, Pos: i, Token: string(c), Msg: "unexpected character"}
			}
			toks = append(toks, token{typ: tokOp, lit: op, pos: i})
			i += len(op)
		}
	}
	toks = append(toks, token{typ: tokEOF, pos: len(text)})
	return toks, nil
}

var operators = []string{
	"==", "!=", "<=", ">=", "&&", "||",
	"+", "-", "*", "/", "^", "<", ">", "!", "(", ")", "[", "]", ",",
}

func matchOperator(s string) string {
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) }
