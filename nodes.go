package derivcalc

import (
	"strconv"
	"strings"
)

// node is a node in the abstract syntax tree of an expression.
type node struct {
	kind nodeKind

	// text is the literal text of a number or the name of a function.
	text string
	// val is the value of a number.
	val float64
	// pos is the position of the token that produced the node: the literal,
	// the function name, the open bracket, or the binary operator.
	pos int

	left  *node
	right *node
}

type nodeKind int8

const (
	nodeNone nodeKind = iota

	nodeNum   // text and val are the literal
	nodeCall  // text is the function name, left is the argument
	nodeGroup // left is the bracketed expression

	nodeAdd // left + right
	nodeSub // left - right
	nodeMul // left * right
	nodeDiv // left / right
)

var nodeKindNames = [...]string{
	nodeNone:  "None",
	nodeNum:   "Num",
	nodeCall:  "Call",
	nodeGroup: "Group",
	nodeAdd:   "Add",
	nodeSub:   "Sub",
	nodeMul:   "Mul",
	nodeDiv:   "Div",
}

func (k nodeKind) String() string {
	if k < 0 || int(k) >= len(nodeKindNames) {
		return "nodeKind(" + strconv.Itoa(int(k)) + ")"
	}
	return nodeKindNames[k]
}

// op returns the operator text of a binary node.
func (n *node) op() string {
	switch n.kind {
	case nodeAdd:
		return "+"
	case nodeSub:
		return "-"
	case nodeMul:
		return "*"
	case nodeDiv:
		return "/"
	default:
		panic("derivcalc: op of non-binary node " + n.kind.String())
	}
}

func (n *node) String() string {
	var b strings.Builder
	n.fmt(&b, false)
	return b.String()
}

// fmt writes the node with alternating round and square brackets around each
// subtree.
func (n *node) fmt(b *strings.Builder, square bool) {
	var l, r byte = '(', ')'
	if square {
		l, r = '[', ']'
	}
	b.WriteByte(l)
	defer b.WriteByte(r)
	switch n.kind {
	case nodeNum:
		b.WriteString(n.text)
	case nodeCall:
		b.WriteString(n.text)
		n.left.fmt(b, !square)
	case nodeGroup:
		n.left.fmt(b, !square)
	case nodeAdd, nodeSub, nodeMul, nodeDiv:
		n.left.fmt(b, !square)
		b.WriteByte(' ')
		b.WriteString(n.op())
		b.WriteByte(' ')
		n.right.fmt(b, !square)
	default:
		// Invalid nodes use invalid characters.
		b.WriteByte('$')
		b.WriteString(n.kind.String())
		b.WriteByte('$')
	}
}

// terminals appends the terminal symbols of the subtree in source order.
func (n *node) terminals(dst []string) []string {
	switch n.kind {
	case nodeNum:
		return append(dst, n.text)
	case nodeCall:
		dst = append(dst, n.text, "(")
		dst = n.left.terminals(dst)
		return append(dst, ")")
	case nodeGroup:
		dst = append(dst, "(")
		dst = n.left.terminals(dst)
		return append(dst, ")")
	case nodeAdd, nodeSub, nodeMul, nodeDiv:
		dst = n.left.terminals(dst)
		dst = append(dst, n.op())
		return n.right.terminals(dst)
	default:
		panic("derivcalc: invalid AST node " + n.kind.String())
	}
}
