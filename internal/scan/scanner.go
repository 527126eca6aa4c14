// Package scan walks a document (and the shadow roots inside it) for text
// nodes that should be concealed, and rewrites them.
package scan

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nao1215/blurguard/internal/conceal"
	"github.com/nao1215/blurguard/internal/dom"
	"github.com/nao1215/blurguard/internal/pattern"
	"github.com/nao1215/blurguard/internal/present"
	"github.com/nao1215/blurguard/internal/settings"
)

// excludedElements are never descended into. Their text is either not
// rendered as flow content or cannot hold element children.
var excludedElements = map[atom.Atom]bool{
	atom.Script:    true,
	atom.Style:     true,
	atom.Template:  true,
	atom.Noscript:  true,
	atom.Textarea:  true,
	atom.Title:     true,
	atom.Xmp:       true,
	atom.Iframe:    true,
	atom.Noembed:   true,
	atom.Noframes:  true,
	atom.Plaintext: true,
}

// Result counts what one scan did.
type Result struct {
	// TextNodes is the number of eligible text nodes examined.
	TextNodes int

	// Rewritten is the number of text nodes replaced by a fragment.
	Rewritten int

	// Units is the number of concealment units created.
	Units int
}

// Add accumulates o into r.
func (r *Result) Add(o Result) {
	r.TextNodes += o.TextNodes
	r.Rewritten += o.Rewritten
	r.Units += o.Units
}

// Scanner finds eligible text nodes and conceals their matches.
type Scanner struct {
	doc     *dom.Document
	matcher *pattern.Matcher
	builder *present.Builder
	logger  *slog.Logger

	// fontSize resolves the font size a text node's parent renders with.
	fontSize func(*html.Node) (float64, error)
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithMatcher replaces the default pattern matcher.
func WithMatcher(m *pattern.Matcher) Option {
	return func(s *Scanner) {
		if m != nil {
			s.matcher = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// New creates a scanner over doc.
func New(doc *dom.Document, opts ...Option) *Scanner {
	s := &Scanner{
		doc:      doc,
		matcher:  pattern.Default(),
		fontSize: doc.ComputedFontSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.builder = present.NewBuilder(doc, s.logger)
	return s
}

// walkState is inherited from ancestors during a walk.
type walkState struct {
	excluded bool
	editable bool
}

// Scan conceals matches in every eligible text node under root, including
// text inside shadow roots attached to root or its descendants. It does
// nothing when cfg enables no kind.
//
// Text nodes are collected during the walk and rewritten afterwards, so
// the walk never sees a node it created and sibling order is preserved.
// Units met on the way, such as those parsed from markup, are bound.
func (s *Scanner) Scan(root *html.Node, cfg settings.Settings) Result {
	var res Result
	if root == nil || !cfg.AnyEnabled() {
		return res
	}

	if root.Type == html.TextNode {
		if s.eligible(root) {
			res.TextNodes++
			res.Add(s.process(root, cfg))
		}
		return res
	}
	if conceal.IsUnit(root) {
		s.builder.Bind(root)
		return res
	}

	state := s.inheritedState(root)
	if state.excluded {
		return res
	}

	if sr := s.doc.ShadowRoot(root); sr != nil {
		res.Add(s.Scan(sr, cfg))
	}

	var pending []*html.Node
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		s.collect(c, state, cfg, &pending, &res)
	}

	res.TextNodes += len(pending)
	for _, n := range pending {
		res.Add(s.process(n, cfg))
	}
	return res
}

func (s *Scanner) collect(n *html.Node, state walkState, cfg settings.Settings, pending *[]*html.Node, res *Result) {
	switch n.Type {
	case html.TextNode:
		if !state.editable {
			*pending = append(*pending, n)
		}
		return
	case html.ElementNode:
		if conceal.IsUnit(n) {
			s.builder.Bind(n)
			return
		}
	default:
		return
	}

	state = enter(n, state)
	if state.excluded {
		return
	}
	if sr := s.doc.ShadowRoot(n); sr != nil {
		res.Add(s.Scan(sr, cfg))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s.collect(c, state, cfg, pending, res)
	}
}

// enter returns the state inside element n.
func enter(n *html.Node, state walkState) walkState {
	if excludedElements[n.DataAtom] || n.Namespace != "" || conceal.IsUnit(n) {
		state.excluded = true
		return state
	}
	if v, ok := dom.Attr(n, "contenteditable"); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "true", "plaintext-only":
			state.editable = true
		case "false":
			state.editable = false
		}
	}
	return state
}

// inheritedState computes the walk state at n from its ancestors within
// n's own tree. Shadow hosts are not consulted: contenteditable does not
// cross into a shadow root.
func (s *Scanner) inheritedState(n *html.Node) walkState {
	var chain []*html.Node
	for a := n; a != nil; a = a.Parent {
		if a.Type == html.ElementNode {
			chain = append(chain, a)
		}
	}
	var state walkState
	for i := len(chain) - 1; i >= 0; i-- {
		state = enter(chain[i], state)
		if state.excluded {
			return state
		}
	}
	return state
}

// eligible reports whether a text node may be concealed: it has a parent
// and sits outside units, editable regions and excluded content.
func (s *Scanner) eligible(n *html.Node) bool {
	if n == nil || n.Type != html.TextNode || n.Parent == nil {
		return false
	}
	state := s.inheritedState(n.Parent)
	return !state.excluded && !state.editable
}

// ProcessText conceals the matches of a single text node if it is eligible.
// This is the cheap path for character data edits and inserted text.
func (s *Scanner) ProcessText(n *html.Node, cfg settings.Settings) Result {
	if !cfg.AnyEnabled() || !s.eligible(n) {
		return Result{}
	}
	res := s.process(n, cfg)
	res.TextNodes = 1
	return res
}

// process rewrites one text node. A failure affects only this node: it is
// logged and the node is left as it was.
func (s *Scanner) process(n *html.Node, cfg settings.Settings) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("failed to conceal text node", "error", fmt.Sprint(r))
			res = Result{}
		}
	}()

	kinds := cfg.Kinds()
	if n.Parent == nil || !s.matcher.Contains(n.Data, kinds) {
		return res
	}
	matches := s.matcher.FindMatches(n.Data, kinds)
	if len(matches) == 0 {
		return res
	}

	fontSize, err := s.fontSize(n.Parent)
	if err != nil {
		s.logger.Debug("font size unavailable, using default", "error", err)
		fontSize = dom.DefaultFontSize
	}

	if _, err := s.builder.BuildFragment(n, matches, fontSize); err != nil {
		s.logger.Warn("failed to conceal text node", "error", err)
		return res
	}
	res.Rewritten = 1
	res.Units = len(matches)
	s.logger.Debug("concealed text node",
		"kind", matches[0].Kind.String(),
		"units", len(matches),
		"font_size", fontSize,
	)
	return res
}
