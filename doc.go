// Package derivcalc implements an arithmetic calculator that shows its work:
// besides the value of an expression, it produces the leftmost derivation of
// the expression in the grammar
//
//	E -> E + T | E - T | T
//	T -> T * F | T / F | F
//	F -> ( E ) | number | sin ( E ) | log ( E )
//
// Numbers are digits with at most one decimal point. sin takes radians and
// log is base 10. Function names are case-insensitive.
//
// The derivation is generated from the same syntax tree that is evaluated,
// one step per rewritten non-terminal, so the steps always agree with the
// value. EvaluateExpression runs the whole pipeline and never panics;
// Tokenize, Parse, Expr.Eval, and Derive expose the stages separately.
package derivcalc
