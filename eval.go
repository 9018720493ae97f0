package derivcalc

// Eval computes the value of the expression. The only error is a
// *DivisionByZeroError. Functions outside their domain, such as log of a
// negative number, produce NaN or infinities rather than errors.
func (e *Expr) Eval() (float64, error) {
	return e.n.eval()
}

// EvalString is a shortcut to parse and evaluate a string expression.
func EvalString(src string) (float64, error) {
	e, err := ParseString(src)
	if err != nil {
		return 0, err
	}
	return e.Eval()
}

func (n *node) eval() (float64, error) {
	switch n.kind {
	case nodeNum:
		return n.val, nil
	case nodeGroup:
		return n.left.eval()
	case nodeCall:
		x, err := n.left.eval()
		if err != nil {
			return 0, err
		}
		f := builtins[n.text]
		if f == nil {
			panic("derivcalc: no function " + n.text)
		}
		return f(x), nil
	case nodeAdd, nodeSub, nodeMul, nodeDiv:
		l, err := n.left.eval()
		if err != nil {
			return 0, err
		}
		r, err := n.right.eval()
		if err != nil {
			return 0, err
		}
		switch n.kind {
		case nodeAdd:
			return l + r, nil
		case nodeSub:
			return l - r, nil
		case nodeMul:
			return l * r, nil
		default:
			if r == 0 {
				return 0, &DivisionByZeroError{Col: n.pos}
			}
			return l / r, nil
		}
	default:
		panic("derivcalc: invalid AST node " + n.kind.String())
	}
}
