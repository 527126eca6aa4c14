// Package present turns a text node and its matches into concealed markup.
package present

import (
	"errors"
	"log/slog"
	"math"

	"golang.org/x/net/html"

	"github.com/nao1215/blurguard/internal/conceal"
	"github.com/nao1215/blurguard/internal/dom"
	"github.com/nao1215/blurguard/internal/pattern"
)

// Blur sizing. The radius follows the font size so that small and large
// text are obscured to a similar degree.
const (
	MinBlurRadius = 3.0
	BlurScale     = 0.35
)

// ErrNoMatches is returned when BuildFragment is given nothing to wrap.
var ErrNoMatches = errors.New("no matches to conceal")

// ErrBadMatch is returned for matches that do not fit the text.
var ErrBadMatch = errors.New("match does not fit the text node")

// BlurRadius returns the blur radius in pixels for a font size.
func BlurRadius(fontSize float64) float64 {
	return math.Max(MinBlurRadius, fontSize*BlurScale)
}

// activationEvent is the event a unit part responds to.
const activationEvent = "click"

// Builder replaces text nodes with concealed fragments and binds the
// activation listeners of the units it creates.
type Builder struct {
	doc    *dom.Document
	logger *slog.Logger
}

// NewBuilder creates a builder that mutates doc.
func NewBuilder(doc *dom.Document, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{doc: doc, logger: logger}
}

// Split slices text at match boundaries into plain runs and units, in
// order. Empty runs are dropped. matches must be ordered and must not
// overlap.
func Split(text string, matches []pattern.Match, fontSize float64) ([]*html.Node, error) {
	radius := BlurRadius(fontSize)
	nodes := make([]*html.Node, 0, 2*len(matches)+1)
	last := 0
	for _, m := range matches {
		if m.Start < last || m.End > len(text) || m.Start >= m.End || text[m.Start:m.End] != m.Text {
			return nil, ErrBadMatch
		}
		if m.Start > last {
			nodes = append(nodes, dom.NewText(text[last:m.Start]))
		}
		nodes = append(nodes, conceal.NewElement(conceal.NewUnit(m), radius))
		last = m.End
	}
	if last < len(text) {
		nodes = append(nodes, dom.NewText(text[last:]))
	}
	return nodes, nil
}

// BuildFragment replaces textNode in its parent with plain runs interleaved
// with one concealment unit per match, and returns the inserted nodes.
// The concatenated text of the result equals the original text. Every
// inserted unit is bound before BuildFragment returns.
func (b *Builder) BuildFragment(textNode *html.Node, matches []pattern.Match, fontSize float64) ([]*html.Node, error) {
	if len(matches) == 0 {
		return nil, ErrNoMatches
	}
	if textNode.Parent == nil {
		return nil, dom.ErrDetached
	}
	nodes, err := Split(textNode.Data, matches, fontSize)
	if err != nil {
		return nil, err
	}
	if err := b.doc.ReplaceWith(textNode, nodes...); err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if conceal.IsUnit(n) {
			b.Bind(n)
		}
	}
	return nodes, nil
}

// Bind attaches the activation listener to the surface, indicator and
// re-hide parts of wrapper. A handled click is cancelled and stops at the
// part, so page listeners on ancestors never see it. Parts that already
// have a listener are skipped.
func (b *Builder) Bind(wrapper *html.Node) {
	surface, indicator, rehide := conceal.Parts(wrapper)
	for _, part := range []*html.Node{surface, indicator, rehide} {
		if part == nil || b.doc.HasEventListener(part, activationEvent) {
			continue
		}
		b.doc.AddEventListener(part, activationEvent, b.activate)
	}
}

func (b *Builder) activate(ev *dom.Event) {
	u, handled := conceal.HandleActivation(ev.CurrentTarget)
	if !handled {
		return
	}
	ev.PreventDefault()
	ev.StopPropagation()
	b.logger.Debug("unit activated", "kind", u.Kind.String(), "state", u.State.String())
}
