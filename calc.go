package derivcalc

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Result is the outcome of evaluating an expression.
type Result struct {
	// Success is whether the expression parsed and evaluated.
	Success bool
	// Value is the value of the expression if Success is true and zero
	// otherwise.
	Value float64
	// Steps is the leftmost derivation of the expression. It is empty when
	// the input fails to lex or parse.
	Steps []Step
	// Errors holds one message describing the failure, or none on success.
	Errors []string
	// Err is the error that caused the failure, if any. Errors from invalid
	// input implement InputError.
	Err error
}

// EvaluateExpression lexes, parses, derives, and evaluates an expression.
// Every failure is reported in the result; EvaluateExpression does not panic.
// Inputs longer than DefaultMaxLength runes, or the limit set with
// LimitLength, fail with a *TooLongError before lexing.
//
// The derivation is generated before evaluation, so an expression that
// divides by zero still carries its complete derivation.
func EvaluateExpression(src string, opts ...Option) (res Result) {
	c := calc{log: zerolog.Nop(), maxLen: DefaultMaxLength}
	for _, opt := range opts {
		if opt != nil {
			opt.option(&c)
		}
	}
	var steps []Step
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		c.log.Error().Interface("panic", r).Str("expression", src).Msg("evaluation panicked")
		res = failed(steps, fmt.Errorf("derivcalc: internal error: %v", r))
	}()

	n := utf8.RuneCountInString(src)
	if strings.TrimSpace(src) == "" {
		return failed(nil, &EmptyExpressionError{Col: n})
	}
	if n > c.maxLen {
		c.log.Debug().Int("length", n).Int("limit", c.maxLen).Msg("input too long")
		return failed(nil, &TooLongError{Len: n, Limit: c.maxLen})
	}
	toks, err := Tokenize(src)
	if err != nil {
		c.log.Debug().Err(err).Msg("lex failed")
		return failed(nil, err)
	}
	c.log.Debug().Int("tokens", len(toks)).Msg("tokenized")
	e, err := Parse(toks)
	if err != nil {
		c.log.Debug().Err(err).Msg("parse failed")
		return failed(nil, err)
	}
	c.log.Debug().Stringer("tree", e).Msg("parsed")
	steps = Derive(e, c.derive...)
	c.log.Debug().Int("steps", len(steps)).Msg("derived")
	v, err := e.Eval()
	if err != nil {
		c.log.Debug().Err(err).Msg("evaluation failed")
		return failed(steps, err)
	}
	c.log.Debug().Float64("value", v).Msg("evaluated")
	return Result{
		Success: true,
		Value:   v,
		Steps:   steps,
		Errors:  []string{},
	}
}

func failed(steps []Step, err error) Result {
	if steps == nil {
		steps = []Step{}
	}
	return Result{
		Steps:  steps,
		Errors: []string{err.Error()},
		Err:    err,
	}
}

// FormatValue renders a value as text. Integers of moderate size have no
// fraction or exponent; very large or very small magnitudes use exponent
// form; NaN and infinities are "NaN", "+Inf", and "-Inf".
func FormatValue(v float64) string {
	if v == 0 {
		// Includes negative zero.
		return "0"
	}
	a := math.Abs(v)
	if math.IsNaN(v) || math.IsInf(v, 0) || a >= 1e21 || a < 1e-6 {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
