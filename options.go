package derivcalc

import "github.com/rs/zerolog"

// DeriveOption is an option for generating derivations.
type DeriveOption interface {
	deriveOption(*generator)
}

// Option is an option for EvaluateExpression.
type Option interface {
	option(*calc)
}

// calc holds the configuration of one call to EvaluateExpression.
type calc struct {
	log    zerolog.Logger
	derive []DeriveOption
	// maxLen is the longest input accepted, in runes.
	maxLen int
}

// Marker is the pair of strings surrounding the rewritten symbol in each
// step's marked sentential form. It is both a DeriveOption and an Option.
type Marker struct {
	Left, Right string
}

// DefaultMarker surrounds rewritten symbols with Markdown strong emphasis.
var DefaultMarker = Marker{Left: "**", Right: "**"}

// MarkWith sets the markers around rewritten symbols.
func MarkWith(left, right string) Marker {
	return Marker{Left: left, Right: right}
}

func (m Marker) deriveOption(g *generator) {
	g.lmark, g.rmark = m.Left, m.Right
}

func (m Marker) option(c *calc) {
	c.derive = append(c.derive, m)
}

type logopt zerolog.Logger

// WithLogger sends debug events describing each stage of evaluation to a
// logger. By default EvaluateExpression logs nothing.
func WithLogger(log zerolog.Logger) Option {
	return logopt(log)
}

func (o logopt) option(c *calc) {
	c.log = zerolog.Logger(o)
}

// DefaultMaxLength is the longest input, in runes, that EvaluateExpression
// accepts unless LimitLength says otherwise.
const DefaultMaxLength = 1024

type lengthopt int

// LimitLength sets the longest input, in runes, that EvaluateExpression
// accepts. The memory used by a derivation grows with the square of the
// length of the input. A non-positive n means DefaultMaxLength.
func LimitLength(n int) Option {
	return lengthopt(n)
}

func (o lengthopt) option(c *calc) {
	c.maxLen = int(o)
	if c.maxLen <= 0 {
		c.maxLen = DefaultMaxLength
	}
}
