package derivcalc

import (
	"math"
	"math/big"

	"github.com/zephyrtronium/bigfloat"
)

// builtins are the functions callable from expressions, by token text.
var builtins = map[string]func(float64) float64{
	"sin": math.Sin,
	"log": Log10,
}

// logPrec is the precision in bits of the intermediate values of Log10.
const logPrec = 128

// Log10 returns the base-10 logarithm of x. For finite positive x it computes
// ln(x)/ln(10) with logPrec bits before rounding, so exact powers of ten
// have exact logarithms. Otherwise it follows math.Log10: Log10(0) is -Inf,
// Log10 of a negative number or NaN is NaN, and Log10(+Inf) is +Inf.
func Log10(x float64) float64 {
	if !(x > 0) || math.IsInf(x, 1) {
		return math.Log10(x)
	}
	in := new(big.Float).SetPrec(logPrec).SetFloat64(x)
	out := new(big.Float).SetPrec(logPrec)
	bigfloat.Log(out, in)
	in.SetFloat64(10)
	bigfloat.Log(in, in)
	r, _ := out.Quo(out, in).Float64()
	return r
}
