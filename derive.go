package derivcalc

import "strings"

// NonTerminal is a grammar symbol rewritten by a derivation step.
type NonTerminal string

const (
	Expression NonTerminal = "E"
	Term       NonTerminal = "T"
	Factor     NonTerminal = "F"
)

// Step is one rewrite of a leftmost derivation.
type Step struct {
	// Index is the 1-based position of the step in the derivation.
	Index int `json:"index"`
	// Before is the sentential form that the step rewrites. It shares
	// memory with the previous step's After, so neither may be modified.
	Before []string `json:"before"`
	// After is the sentential form that the step produces.
	After []string `json:"after"`
	// Symbol is the non-terminal that the step rewrites.
	Symbol NonTerminal `json:"expandedSymbol"`
	// At is the index in Before of the rewritten symbol.
	At int `json:"at"`
	// Marked is Before joined by spaces, with the rewritten symbol surrounded
	// by the derivation's markers.
	Marked string `json:"renderedBefore"`
	// Production is Marked and After joined by " => ".
	Production string `json:"production"`
}

// symbol is a grammar symbol in a sentential form.
type symbol struct {
	text string
	// nt is whether the symbol is a non-terminal.
	nt bool
}

func nonterm(nt NonTerminal) symbol {
	return symbol{text: string(nt), nt: true}
}

func term(text string) symbol {
	return symbol{text: text}
}

// generator builds a leftmost derivation by walking an AST from the top
// down, rewriting one non-terminal per step.
type generator struct {
	form []symbol
	// cur is at most the index of the leftmost non-terminal in form. Every
	// symbol before it is terminal.
	cur   int
	steps []Step
	// last is the current form as strings, shared with the After of the
	// latest step.
	last []string
	// lmark and rmark surround the rewritten symbol in Step.Marked.
	lmark, rmark string
}

// Derive generates the leftmost derivation of the expression from E. The
// final step's After is the expression's terminal symbols, as by e.Text.
func Derive(e *Expr, opts ...DeriveOption) []Step {
	g := generator{
		form:  []symbol{nonterm(Expression)},
		lmark: DefaultMarker.Left,
		rmark: DefaultMarker.Right,
	}
	for _, opt := range opts {
		opt.deriveOption(&g)
	}
	g.last = g.texts()
	g.expandE(e.n)
	if i := g.leftmost(); i >= 0 {
		panic("derivcalc: derivation ended with non-terminal " + g.form[i].text)
	}
	return g.steps
}

// expandE derives the node from the leftmost E.
func (g *generator) expandE(n *node) {
	switch n.kind {
	case nodeAdd, nodeSub:
		g.rewrite(Expression, nonterm(Expression), term(n.op()), nonterm(Term))
		g.expandE(n.left)
		g.expandT(n.right)
	default:
		g.rewrite(Expression, nonterm(Term))
		g.expandT(n)
	}
}

// expandT derives the node from the leftmost T.
func (g *generator) expandT(n *node) {
	switch n.kind {
	case nodeMul, nodeDiv:
		g.rewrite(Term, nonterm(Term), term(n.op()), nonterm(Factor))
		g.expandT(n.left)
		g.expandF(n.right)
	default:
		g.rewrite(Term, nonterm(Factor))
		g.expandF(n)
	}
}

// expandF derives the node from the leftmost F.
func (g *generator) expandF(n *node) {
	switch n.kind {
	case nodeNum:
		g.rewrite(Factor, term(n.text))
	case nodeCall:
		g.rewrite(Factor, term(n.text), term("("), nonterm(Expression), term(")"))
		g.expandE(n.left)
	case nodeGroup:
		g.rewrite(Factor, term("("), nonterm(Expression), term(")"))
		g.expandE(n.left)
	default:
		// The parser wraps every sum or product that appears as a factor in
		// a group node.
		panic("derivcalc: cannot derive " + n.kind.String() + " from F")
	}
}

// leftmost advances cur to the leftmost non-terminal and returns its index,
// or -1 if the form is entirely terminal.
func (g *generator) leftmost() int {
	for g.cur < len(g.form) && !g.form[g.cur].nt {
		g.cur++
	}
	if g.cur == len(g.form) {
		return -1
	}
	return g.cur
}

// rewrite replaces the leftmost non-terminal, which must be nt, with the given
// symbols and records the step.
func (g *generator) rewrite(nt NonTerminal, with ...symbol) {
	i := g.leftmost()
	if i < 0 || g.form[i].text != string(nt) {
		panic("derivcalc: leftmost non-terminal of " + g.join(-1) + " is not " + string(nt))
	}
	before := g.last
	marked := g.join(i)
	form := make([]symbol, 0, len(g.form)+len(with)-1)
	form = append(form, g.form[:i]...)
	form = append(form, with...)
	form = append(form, g.form[i+1:]...)
	g.form = form
	after := g.texts()
	g.last = after
	g.steps = append(g.steps, Step{
		Index:      len(g.steps) + 1,
		Before:     before,
		After:      after,
		Symbol:     nt,
		At:         i,
		Marked:     marked,
		Production: marked + " => " + strings.Join(after, " "),
	})
}

// texts copies the current sentential form as strings.
func (g *generator) texts() []string {
	r := make([]string, len(g.form))
	for i, s := range g.form {
		r[i] = s.text
	}
	return r
}

// join renders the current sentential form separated by spaces, marking the
// symbol at index mark. A negative mark marks nothing.
func (g *generator) join(mark int) string {
	var b strings.Builder
	for i, s := range g.form {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i == mark {
			b.WriteString(g.lmark)
			b.WriteString(s.text)
			b.WriteString(g.rmark)
			continue
		}
		b.WriteString(s.text)
	}
	return b.String()
}
