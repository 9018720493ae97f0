package derivcalc

import (
	"strings"
	"unicode/utf8"
)

// E = E '+' T | E '-' T | T
// T = T '*' F | T '/' F | F
// F = '(' E ')' | num | 'sin' '(' E ')' | 'log' '(' E ')'

// Expr is a parsed expression. It can be evaluated and derived any number of
// times.
type Expr struct {
	// n is the root node of the expression.
	n *node
}

// Parse parses a token sequence, normally the result of Tokenize. The tokens
// must form exactly one expression followed by EOF, with brackets nested at
// most MaxNesting deep. A sequence that lacks a
// final EOF token is parsed as though it had one.
func Parse(toks []Token) (*Expr, error) {
	p := parser{toks: toks}
	n, err := p.parseE()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != TokenEOF {
		return nil, &TrailingTokensError{Col: tok.Pos, Kind: tok.Kind, Text: tok.Text}
	}
	return &Expr{n: n}, nil
}

// ParseString is a shortcut to tokenize and parse a string expression.
func ParseString(src string) (*Expr, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	return Parse(toks)
}

// MaxNesting is the deepest that brackets may nest, counting both bare
// brackets and function calls.
const MaxNesting = 200

type parser struct {
	toks []Token
	k    int
	// depth is the number of brackets open at the lookahead.
	depth int
}

// open enters a bracketed level opened by tok.
func (p *parser) open(tok Token) error {
	if p.depth >= MaxNesting {
		return &NestingError{Col: tok.Pos}
	}
	p.depth++
	return nil
}

// peek returns the lookahead token without consuming it.
func (p *parser) peek() Token {
	if p.k < len(p.toks) {
		return p.toks[p.k]
	}
	pos := 0
	if len(p.toks) > 0 {
		last := p.toks[len(p.toks)-1]
		pos = last.Pos + utf8.RuneCountInString(last.Text)
	}
	return Token{Kind: TokenEOF, Pos: pos}
}

// next consumes and returns the lookahead token. EOF is never consumed.
func (p *parser) next() Token {
	tok := p.peek()
	if tok.Kind != TokenEOF {
		p.k++
	}
	return tok
}

// expect consumes a token of the given kind.
func (p *parser) expect(kind TokenKind) error {
	tok := p.peek()
	if tok.Kind != kind {
		return &UnexpectedTokenError{Col: tok.Pos, Kind: tok.Kind, Text: tok.Text, Want: kind}
	}
	p.next()
	return nil
}

// parseE parses a sum of terms. Sums associate to the left.
func (p *parser) parseE() (*node, error) {
	n, err := p.parseT()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		var kind nodeKind
		switch tok.Kind {
		case TokenPlus:
			kind = nodeAdd
		case TokenMinus:
			kind = nodeSub
		default:
			return n, nil
		}
		p.next()
		rhs, err := p.parseT()
		if err != nil {
			return nil, err
		}
		n = &node{kind: kind, pos: tok.Pos, left: n, right: rhs}
	}
}

// parseT parses a product of factors. Products associate to the left.
func (p *parser) parseT() (*node, error) {
	n, err := p.parseF()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		var kind nodeKind
		switch tok.Kind {
		case TokenTimes:
			kind = nodeMul
		case TokenDiv:
			kind = nodeDiv
		default:
			return n, nil
		}
		p.next()
		rhs, err := p.parseF()
		if err != nil {
			return nil, err
		}
		n = &node{kind: kind, pos: tok.Pos, left: n, right: rhs}
	}
}

// parseF parses a literal, a bracketed expression, or a function call.
func (p *parser) parseF() (*node, error) {
	tok := p.next()
	switch tok.Kind {
	case TokenNumber:
		return &node{kind: nodeNum, text: tok.Text, val: tok.Value, pos: tok.Pos}, nil
	case TokenLParen:
		if err := p.open(tok); err != nil {
			return nil, err
		}
		defer func() { p.depth-- }()
		inner, err := p.parseE()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return &node{kind: nodeGroup, pos: tok.Pos, left: inner}, nil
	case TokenSin, TokenLog:
		if err := p.open(tok); err != nil {
			return nil, err
		}
		defer func() { p.depth-- }()
		if err := p.expect(TokenLParen); err != nil {
			return nil, err
		}
		arg, err := p.parseE()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return &node{kind: nodeCall, text: tok.Text, pos: tok.Pos, left: arg}, nil
	default:
		return nil, &UnexpectedTokenError{Col: tok.Pos, Kind: tok.Kind, Text: tok.Text}
	}
}

// String creates a string representation of the parsed expression, with
// alternating round and square brackets grouping each term.
func (e *Expr) String() string {
	return e.n.String()
}

// Text renders the expression's terminal symbols separated by single spaces.
// It is the final sentential form of the expression's derivation.
func (e *Expr) Text() string {
	return strings.Join(e.n.terminals(nil), " ")
}
