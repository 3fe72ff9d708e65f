package expr

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// ParseCacheSize bounds how many distinct expression texts stay parsed.
const ParseCacheSize = 4096

var parseCache = mustCache(ParseCacheSize)

func mustCache(size int) *lru.Cache[string, Node] {
	c, err := lru.New[string, Node](size)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse converts text into an AST. Successful parses are cached by text in
// a bounded LRU, so callers may parse the same expression on every cycle
// cheaply.
func Parse(text string) (Node, error) {
	if n, ok := parseCache.Get(text); ok {
		return n, nil
	}
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{text: text, toks: toks}
	if p.peek().typ == tokEOF {
		return nil, &SyntaxError{Expr: text, Msg: "empty expression"}
	}
	n, err := p.parseExpr(1)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.typ != tokEOF {
		return nil, p.errorf(t, "missing operator")
	}
	parseCache.Add(text, n)
	return n, nil
}

type parser struct {
	text string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, msg string) error {
	return &SyntaxError{Expr: p.text, Pos: t.pos, Token: t.lit, Msg: msg}
}

const unaryPower = 7

// bindingPower returns the left binding power of a binary operator, or 0.
func bindingPower(op string) int {
	switch op {
	case "||":
		return 1
	case "&&":
		return 2
	case "==", "!=", "<", "<=", ">", ">=":
		return 3
	case "+", "-":
		return 4
	case "*", "/":
		return 5
	case "^":
		return 8
	}
	return 0
}

func (p *parser) parseExpr(minPower int) (Node, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.typ != tokOp {
			if t.typ != tokEOF {
				return nil, p.errorf(t, "missing operator")
			}
			return left, nil
		}
		power := bindingPower(t.lit)
		if power == 0 || power < minPower {
			return left, nil
		}
		p.next()
		rightPower := power + 1
		if t.lit == "^" {
			rightPower = power
		}
		right, err := p.parseExpr(rightPower)
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: t.lit, X: left, Y: right, Offset: t.pos}
	}
}

func (p *parser) parsePrefix() (Node, error) {
	t := p.next()
	switch t.typ {
	case tokNumber:
		return &NumberLit{Value: t.num, Offset: t.pos}, nil
	case tokString:
		return &StringLit{Value: t.lit, Offset: t.pos}, nil
	case tokIdent:
		switch t.lit {
		case "true":
			return &BoolLit{Value: true, Offset: t.pos}, nil
		case "false":
			return &BoolLit{Value: false, Offset: t.pos}, nil
		}
		if nt := p.peek(); nt.typ == tokOp && (nt.lit == "(" || nt.lit == "[") {
			p.next()
			closing := ")"
			if nt.lit == "[" {
				closing = "]"
			}
			args, err := p.parseArgs(closing)
			if err != nil {
				return nil, err
			}
			if closing == ")" {
				return &Call{Name: t.lit, Args: args, Offset: t.pos}, nil
			}
			return &Index{Name: t.lit, Args: args, Offset: t.pos}, nil
		}
		return &Ident{Name: t.lit, Offset: t.pos}, nil
	case tokOp:
		switch t.lit {
		case "(":
			inner, err := p.parseExpr(1)
			if err != nil {
				return nil, err
			}
			if c := p.next(); c.typ != tokOp || c.lit != ")" {
				return nil, p.errorf(c, "expected )")
			}
			return inner, nil
		case "-", "!":
			x, err := p.parseExpr(unaryPower)
			if err != nil {
				return nil, err
			}
			return &Unary{Op: t.lit, X: x, Offset: t.pos}, nil
		}
		return nil, p.errorf(t, "unexpected operator")
	}
	return nil, p.errorf(t, "unexpected end of expression")
}

func (p *parser) parseArgs(closing string) ([]Node, error) {
	var args []Node
	if t := p.peek(); t.typ == tokOp && t.lit == closing {
		p.next()
		return args, nil
	}
	for {
		arg, err := p.parseExpr(1)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		t := p.next()
		if t.typ == tokOp && t.lit == "," {
			continue
		}
		if t.typ == tokOp && t.lit == closing {
			return args, nil
		}
		return nil, p.errorf(t, "expected , or "+closing)
	}
}
