package derivcalc

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// Token is a lexical token of an expression.
type Token struct {
	// Kind is the kind of token.
	Kind TokenKind
	// Text is the token as it appears in a derivation: the digits of a
	// number as written, the lower-case function name, or the operator or
	// bracket. It is empty for EOF.
	Text string
	// Value is the value of a Number token.
	Value float64
	// Pos is the offset in runes of the token's first rune in the input.
	Pos int
}

func (t Token) String() string {
	return t.Kind.String() + ":" + t.Text + "@" + strconv.Itoa(t.Pos)
}

// TokenKind identifies the kind of a token.
type TokenKind int8

const (
	// TokenInvalid is the zero TokenKind. The lexer never produces it.
	TokenInvalid TokenKind = iota
	// TokenEOF marks the end of the input. The parser uses it as its final
	// lookahead.
	TokenEOF
	// TokenNumber is an integer or decimal literal.
	TokenNumber
	TokenPlus
	TokenMinus
	TokenTimes
	TokenDiv
	TokenLParen
	TokenRParen
	// TokenSin and TokenLog are the function names sin and log, in any case.
	TokenSin
	TokenLog
)

var tokenKindNames = [...]string{
	TokenInvalid: "Invalid",
	TokenEOF:     "EOF",
	TokenNumber:  "Number",
	TokenPlus:    "Plus",
	TokenMinus:   "Minus",
	TokenTimes:   "Times",
	TokenDiv:     "Div",
	TokenLParen:  "LParen",
	TokenRParen:  "RParen",
	TokenSin:     "Sin",
	TokenLog:     "Log",
}

func (k TokenKind) String() string {
	if k < 0 || int(k) >= len(tokenKindNames) {
		return "TokenKind(" + strconv.Itoa(int(k)) + ")"
	}
	return tokenKindNames[k]
}

// punct maps single-rune tokens to their kinds.
var punct = map[rune]TokenKind{
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenTimes,
	'/': TokenDiv,
	'(': TokenLParen,
	')': TokenRParen,
}

// funcs maps lower-case function names to their kinds.
var funcs = map[string]TokenKind{
	"sin": TokenSin,
	"log": TokenLog,
}

type lexer struct {
	src io.RuneScanner
	buf strings.Builder
	// rune is the offset of the next rune to be read.
	rune int
}

func lex(src io.RuneScanner) *lexer {
	return &lexer{src: src}
}

// Tokenize scans an entire expression. The last token is always EOF. If any
// part of the input is not a valid token, the result is nil and the error is
// an *UnexpectedCharacterError or *UnknownFunctionError.
func Tokenize(src string) ([]Token, error) {
	l := lex(strings.NewReader(src))
	var toks []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == TokenEOF {
			return toks, nil
		}
	}
}

// readRune reads a rune from the src and updates the lexer's position info.
func (l *lexer) readRune() (r rune, err error) {
	r, sz, err := l.src.ReadRune()
	if sz > 0 {
		l.rune++
	}
	return r, err
}

// unreadRune unreads a rune from the src and updates the lexer's position
// info. Panics if unreading returns an error.
func (l *lexer) unreadRune() {
	if err := l.src.UnreadRune(); err != nil {
		panic(err)
	}
	l.rune--
}

// next scans the next token from the input. Once the input is exhausted,
// every call returns an EOF token.
func (l *lexer) next() (Token, error) {
	defer l.buf.Reset()
	for {
		tok := Token{Pos: l.rune}
		r, err := l.readRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				tok.Kind = TokenEOF
				return tok, nil
			}
			return tok, err
		}
		switch {
		case unicode.IsSpace(r):
			continue
		case isDigit(r):
			l.unreadRune()
			if err := l.scanNum(); err != nil {
				return tok, err
			}
			tok.Text = l.buf.String()
			tok.Value = parseNum(tok.Text)
			tok.Kind = TokenNumber
			return tok, nil
		case unicode.IsLetter(r):
			l.unreadRune()
			if err := l.scanWord(); err != nil {
				return tok, err
			}
			name := l.buf.String()
			k, ok := funcs[strings.ToLower(name)]
			if !ok {
				return tok, &UnknownFunctionError{Name: name, Col: tok.Pos}
			}
			tok.Text = strings.ToLower(name)
			tok.Kind = k
			return tok, nil
		default:
			k, ok := punct[r]
			if !ok {
				return tok, &UnexpectedCharacterError{Char: r, Col: tok.Pos}
			}
			tok.Text = string(r)
			tok.Kind = k
			return tok, nil
		}
	}
}

// scanNum scans digits with at most one decimal point. A second point ends
// the number and is left for the next token.
func (l *lexer) scanNum() error {
	dot := false
	for {
		r, err := l.readRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		switch {
		case isDigit(r):
		case r == '.' && !dot:
			dot = true
		default:
			l.unreadRune()
			return nil
		}
		l.buf.WriteRune(r)
	}
}

// scanWord scans a run of letters.
func (l *lexer) scanWord() error {
	for {
		r, err := l.readRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// next unreads the rune that decides word scanning before
				// calling scanWord, so we have scanned at least one rune.
				return nil
			}
			return err
		}
		if !unicode.IsLetter(r) {
			l.unreadRune()
			return nil
		}
		l.buf.WriteRune(r)
	}
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

// parseNum converts the text of a scanned number. Runs of digits too long for
// a float64 become +Inf.
func parseNum(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		panic("derivcalc: invalid number: " + s + " (" + err.Error() + ")")
	}
	return v
}

// UnexpectedCharacterError indicates a rune that cannot begin any token. It
// implements InputError.
type UnexpectedCharacterError struct {
	// Char is the offending rune.
	Char rune
	// Col is the offset of the rune.
	Col int
}

func (err *UnexpectedCharacterError) Error() string {
	return errpos(err.Col, "unexpected character "+strconv.QuoteRune(err.Char))
}

func (err *UnexpectedCharacterError) Pos() int {
	return err.Col
}

// UnknownFunctionError indicates a word other than sin or log. It implements
// InputError.
type UnknownFunctionError struct {
	// Name is the word as written.
	Name string
	// Col is the offset of the word's first rune.
	Col int
}

func (err *UnknownFunctionError) Error() string {
	return errpos(err.Col, "unknown function "+strconv.Quote(err.Name))
}

func (err *UnknownFunctionError) Pos() int {
	return err.Col
}
