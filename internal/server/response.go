package server

import (
	"errors"

	"github.com/zephyrtronium/derivcalc"
)

// Response is the JSON form of an evaluation result. Value is text because
// results may be infinite or NaN, which JSON numbers cannot represent.
type Response struct {
	Expression string           `json:"expression"`
	Success    bool             `json:"success"`
	Value      *string          `json:"value"`
	Steps      []derivcalc.Step `json:"steps"`
	Errors     []string         `json:"errorMessages"`
	// Kind classifies the failure for clients that branch on it.
	Kind string `json:"errorKind,omitempty"`
}

// NewResponse converts a result for the wire. Value is null on failure.
func NewResponse(expr string, res derivcalc.Result) Response {
	r := Response{
		Expression: expr,
		Success:    res.Success,
		Steps:      res.Steps,
		Errors:     res.Errors,
	}
	if r.Steps == nil {
		r.Steps = []derivcalc.Step{}
	}
	if r.Errors == nil {
		r.Errors = []string{}
	}
	if res.Success {
		v := derivcalc.FormatValue(res.Value)
		r.Value = &v
	} else {
		r.Kind = errorKind(res.Err)
	}
	return r
}

// errorKind names the class of an evaluation error for metrics, traces,
// and responses.
func errorKind(err error) string {
	var (
		empty *derivcalc.EmptyExpressionError
		char  *derivcalc.UnexpectedCharacterError
		fn    *derivcalc.UnknownFunctionError
		tok   *derivcalc.UnexpectedTokenError
		trail *derivcalc.TrailingTokensError
		nest  *derivcalc.NestingError
		long  *derivcalc.TooLongError
		dz    *derivcalc.DivisionByZeroError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &empty):
		return "empty_expression"
	case errors.As(err, &char):
		return "unexpected_character"
	case errors.As(err, &fn):
		return "unknown_function"
	case errors.As(err, &tok):
		return "unexpected_token"
	case errors.As(err, &trail):
		return "trailing_tokens"
	case errors.As(err, &nest):
		return "nesting_too_deep"
	case errors.As(err, &long):
		return "too_long"
	case errors.As(err, &dz):
		return "division_by_zero"
	default:
		return "internal"
	}
}
