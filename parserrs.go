package derivcalc

import "strconv"

// EmptyExpressionError is an error indicating input with no tokens. It
// implements InputError.
type EmptyExpressionError struct {
	// Col is the length of the input in runes.
	Col int
}

func (err *EmptyExpressionError) Error() string {
	return errpos(err.Col, "empty expression")
}

func (err *EmptyExpressionError) Pos() int {
	return err.Col
}

// UnexpectedTokenError is an error indicating a token that does not fit the
// grammar where it appears. It implements InputError.
type UnexpectedTokenError struct {
	// Col is the position of the token.
	Col int
	// Kind is the kind of the token found.
	Kind TokenKind
	// Text is the text of the token found.
	Text string
	// Want is the kind of token the parser required, or TokenInvalid if the
	// parser wanted the start of a factor.
	Want TokenKind
}

func (err *UnexpectedTokenError) Error() string {
	if err.Want == TokenInvalid {
		return errpos(err.Col, "unexpected "+describe(err.Kind, err.Text))
	}
	return errpos(err.Col, "expected "+describe(err.Want, kindText[err.Want])+" but found "+describe(err.Kind, err.Text))
}

func (err *UnexpectedTokenError) Pos() int {
	return err.Col
}

// TrailingTokensError is an error indicating input left over after a complete
// expression. It implements InputError.
type TrailingTokensError struct {
	// Col is the position of the first extra token.
	Col int
	// Kind is the kind of the first extra token.
	Kind TokenKind
	// Text is the text of the first extra token.
	Text string
}

func (err *TrailingTokensError) Error() string {
	return errpos(err.Col, "unexpected "+describe(err.Kind, err.Text)+" after complete expression")
}

func (err *TrailingTokensError) Pos() int {
	return err.Col
}

// NestingError is an error indicating brackets nested more than MaxNesting
// deep. It implements InputError.
type NestingError struct {
	// Col is the position of the bracket or function name that opens the
	// level past the limit.
	Col int
}

func (err *NestingError) Error() string {
	return errpos(err.Col, "expression nested more than "+strconv.Itoa(MaxNesting)+" levels deep")
}

func (err *NestingError) Pos() int {
	return err.Col
}

// TooLongError is an error indicating input longer than the length limit
// of EvaluateExpression. It implements InputError.
type TooLongError struct {
	// Len is the length of the input in runes.
	Len int
	// Limit is the largest accepted length.
	Limit int
}

func (err *TooLongError) Error() string {
	return errpos(err.Limit, "expression is "+strconv.Itoa(err.Len)+" characters long, limit is "+strconv.Itoa(err.Limit))
}

// Pos returns the offset of the first rune past the limit.
func (err *TooLongError) Pos() int {
	return err.Limit
}

// DivisionByZeroError is an error indicating a divisor that evaluated to
// zero. It implements InputError.
type DivisionByZeroError struct {
	// Col is the position of the division operator.
	Col int
}

func (err *DivisionByZeroError) Error() string {
	return errpos(err.Col, "division by zero")
}

func (err *DivisionByZeroError) Pos() int {
	return err.Col
}

// kindText is the fixed text of each token kind that has one.
var kindText = map[TokenKind]string{
	TokenPlus:   "+",
	TokenMinus:  "-",
	TokenTimes:  "*",
	TokenDiv:    "/",
	TokenLParen: "(",
	TokenRParen: ")",
	TokenSin:    "sin",
	TokenLog:    "log",
}

// describe names a token for an error message.
func describe(kind TokenKind, text string) string {
	switch kind {
	case TokenEOF:
		return "end of input"
	case TokenNumber:
		return "number " + text
	default:
		return strconv.Quote(text)
	}
}

// errpos is a shortcut to create an error message with a position.
func errpos(pos int, msg string) string {
	return strconv.Itoa(pos) + ": " + msg
}

// InputError is an error with position information. Every error resulting from
// invalid input implements InputError.
type InputError interface {
	error
	// Pos returns the position of the error as the offset in runes of the
	// token or character that caused it.
	Pos() int
}

var (
	_ InputError = (*EmptyExpressionError)(nil)
	_ InputError = (*UnexpectedCharacterError)(nil)
	_ InputError = (*UnknownFunctionError)(nil)
	_ InputError = (*UnexpectedTokenError)(nil)
	_ InputError = (*TrailingTokensError)(nil)
	_ InputError = (*NestingError)(nil)
	_ InputError = (*TooLongError)(nil)
	_ InputError = (*DivisionByZeroError)(nil)
)
