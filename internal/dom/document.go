package dom

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Tree errors.
var (
	// ErrDetached is returned when an operation needs a node that is part of
	// the document (or of one of its shadow roots) and the node is not.
	ErrDetached = errors.New("node is not connected to the document")

	// ErrNotChild is returned by RemoveChild when child's parent is not parent.
	ErrNotChild = errors.New("node is not a child of the given parent")

	// ErrNotElement is returned when an element node is required.
	ErrNotElement = errors.New("node is not an element")

	// ErrShadowExists is returned by AttachShadow for hosts that already
	// carry a shadow root.
	ErrShadowExists = errors.New("element already hosts a shadow root")

	// ErrHierarchy is returned when an insertion would make a node its own
	// ancestor.
	ErrHierarchy = errors.New("insertion would create a cycle")

	// ErrNoCharacterData is returned by SetText for nodes other than text
	// and comments.
	ErrNoCharacterData = errors.New("node has no character data")
)

// ShadowMode mirrors the mode of an attached shadow root.
type ShadowMode string

const (
	// ShadowOpen is an open shadow root.
	ShadowOpen ShadowMode = "open"

	// ShadowClosed is a closed shadow root.
	ShadowClosed ShadowMode = "closed"
)

// shadowRootData is the Data value of shadow root nodes.
const shadowRootData = "#shadow-root"

// Scheduler queues work for a later turn of the host loop.
// Post returns false when the work cannot be delivered.
type Scheduler interface {
	Post(fn func()) bool
}

type shadow struct {
	root *html.Node
	mode ShadowMode
}

// Document is a live HTML tree with shadow roots, observers and listeners.
type Document struct {
	root *html.Node

	// shadows maps host elements to their shadow root, hosts the reverse.
	shadows map[*html.Node]shadow
	hosts   map[*html.Node]*html.Node

	observers []*Observer
	scheduler Scheduler

	listeners map[*html.Node]map[string][]listenerEntry
	nextID    uint64
}

// New wraps an existing parsed tree. root must be an html.DocumentNode.
func New(root *html.Node) *Document {
	return &Document{
		root:      root,
		shadows:   make(map[*html.Node]shadow),
		hosts:     make(map[*html.Node]*html.Node),
		listeners: make(map[*html.Node]map[string][]listenerEntry),
	}
}

// Parse reads an HTML document and lifts declarative shadow roots into
// attached shadow roots.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	d := New(root)
	d.liftDeclarativeShadows(root)
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// DocumentElement returns the <html> element, or nil when the tree has none.
func (d *Document) DocumentElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// Body returns the <body> element, or nil.
func (d *Document) Body() *html.Node {
	return findElement(d.root, atom.Body)
}

// Head returns the <head> element, or nil.
func (d *Document) Head() *html.Node {
	return findElement(d.root, atom.Head)
}

// SetScheduler installs the scheduler used to deliver mutation records.
// Without a scheduler, records accumulate until Observer.Flush or
// Observer.TakeRecords is called.
func (d *Document) SetScheduler(s Scheduler) {
	d.scheduler = s
}

// AttachShadow creates an empty shadow root on host.
func (d *Document) AttachShadow(host *html.Node, mode ShadowMode) (*html.Node, error) {
	if host == nil || host.Type != html.ElementNode {
		return nil, ErrNotElement
	}
	if _, ok := d.shadows[host]; ok {
		return nil, ErrShadowExists
	}
	if mode == "" {
		mode = ShadowOpen
	}
	root := &html.Node{Type: html.DocumentNode, Data: shadowRootData}
	d.shadows[host] = shadow{root: root, mode: mode}
	d.hosts[root] = host
	return root, nil
}

// ShadowRoot returns the shadow root attached to host, or nil.
// Closed roots are returned too; the engine scans them like open ones.
func (d *Document) ShadowRoot(host *html.Node) *html.Node {
	if host == nil {
		return nil
	}
	return d.shadows[host].root
}

// ShadowMode returns the mode of host's shadow root, or "" without one.
func (d *Document) ShadowMode(host *html.Node) ShadowMode {
	return d.shadows[host].mode
}

// Host returns the element a shadow root is attached to, or nil when n is
// not a shadow root.
func (d *Document) Host(n *html.Node) *html.Node {
	return d.hosts[n]
}

// IsShadowRoot reports whether n is a shadow root of this document.
func (d *Document) IsShadowRoot(n *html.Node) bool {
	_, ok := d.hosts[n]
	return ok
}

// ShadowRoots returns every attached shadow root reachable from the
// document, outermost first.
func (d *Document) ShadowRoots() []*html.Node {
	var roots []*html.Node
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if sr := d.ShadowRoot(n); sr != nil {
			roots = append(roots, sr)
			visit(sr)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(d.root)
	return roots
}

// ComposedParent returns n's parent, stepping from a shadow root to its host.
func (d *Document) ComposedParent(n *html.Node) *html.Node {
	if n.Parent != nil {
		return n.Parent
	}
	return d.hosts[n]
}

// IsConnected reports whether n is reachable from the document node,
// possibly through shadow roots.
func (d *Document) IsConnected(n *html.Node) bool {
	for n != nil {
		if n == d.root {
			return true
		}
		n = d.ComposedParent(n)
	}
	return false
}

// AppendChild appends child to parent. A child that is already in a tree is
// moved.
func (d *Document) AppendChild(parent, child *html.Node) error {
	return d.InsertBefore(parent, child, nil)
}

// InsertBefore inserts child into parent before ref. A nil ref appends.
func (d *Document) InsertBefore(parent, child, ref *html.Node) error {
	if ref != nil && ref.Parent != parent {
		return ErrNotChild
	}
	if ref == child {
		return nil
	}
	if isInclusiveAncestor(child, parent) {
		return ErrHierarchy
	}
	if child.Parent != nil {
		if err := d.RemoveChild(child.Parent, child); err != nil {
			return err
		}
	}
	parent.InsertBefore(child, ref)
	d.queueRecord(MutationRecord{
		Type:       ChildList,
		Target:     parent,
		AddedNodes: []*html.Node{child},
	})
	return nil
}

// RemoveChild detaches child from parent.
func (d *Document) RemoveChild(parent, child *html.Node) error {
	if child == nil || child.Parent != parent || parent == nil {
		return ErrNotChild
	}
	parent.RemoveChild(child)
	d.queueRecord(MutationRecord{
		Type:         ChildList,
		Target:       parent,
		RemovedNodes: []*html.Node{child},
	})
	return nil
}

// ReplaceWith puts nodes in old's place, in order, and detaches old.
// Observers receive a single childList record listing every added node and
// old as removed, the same shape a fragment replacement produces in a
// browser.
func (d *Document) ReplaceWith(old *html.Node, nodes ...*html.Node) error {
	parent := old.Parent
	if parent == nil {
		return ErrDetached
	}
	for _, n := range nodes {
		if n == old || isInclusiveAncestor(n, parent) {
			return ErrHierarchy
		}
	}
	for _, n := range nodes {
		if n.Parent != nil {
			if err := d.RemoveChild(n.Parent, n); err != nil {
				return err
			}
		}
		parent.InsertBefore(n, old)
	}
	parent.RemoveChild(old)
	d.queueRecord(MutationRecord{
		Type:         ChildList,
		Target:       parent,
		AddedNodes:   append([]*html.Node(nil), nodes...),
		RemovedNodes: []*html.Node{old},
	})
	return nil
}

// SetText replaces the character data of a text or comment node.
func (d *Document) SetText(n *html.Node, text string) error {
	if n.Type != html.TextNode && n.Type != html.CommentNode {
		return ErrNoCharacterData
	}
	if n.Data == text {
		return nil
	}
	n.Data = text
	d.queueRecord(MutationRecord{
		Type:   CharacterData,
		Target: n,
	})
	return nil
}

// SetInnerHTML replaces the children of el with the parsed fragment.
func (d *Document) SetInnerHTML(el *html.Node, markup string) error {
	if el.Type != html.ElementNode && !d.IsShadowRoot(el) {
		return ErrNotElement
	}
	context := el
	if d.IsShadowRoot(el) {
		context = &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return err
	}
	var removed []*html.Node
	for c := el.FirstChild; c != nil; {
		next := c.NextSibling
		el.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	for _, n := range nodes {
		el.AppendChild(n)
	}
	for _, n := range nodes {
		d.liftDeclarativeShadows(n)
	}
	d.queueRecord(MutationRecord{
		Type:         ChildList,
		Target:       el,
		AddedNodes:   nodes,
		RemovedNodes: removed,
	})
	return nil
}

// ParseFragment parses markup in the context of el without inserting it.
func (d *Document) ParseFragment(el *html.Node, markup string) ([]*html.Node, error) {
	context := el
	if el == nil || el.Type != html.ElementNode {
		context = &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		d.liftDeclarativeShadows(n)
	}
	return nodes, nil
}

// liftDeclarativeShadows turns <template shadowrootmode> children into
// attached shadow roots, including templates nested inside them.
func (d *Document) liftDeclarativeShadows(n *html.Node) {
	var templates []*html.Node
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.ElementNode && c.DataAtom == atom.Template {
			if _, ok := Attr(c, "shadowrootmode"); ok {
				templates = append(templates, c)
			}
		}
		return true
	})

	for _, tpl := range templates {
		host := tpl.Parent
		if host == nil || host.Type != html.ElementNode || d.ShadowRoot(host) != nil {
			continue
		}
		modeAttr, _ := Attr(tpl, "shadowrootmode")
		mode := ShadowMode(strings.ToLower(modeAttr))
		if mode != ShadowOpen && mode != ShadowClosed {
			continue
		}
		root, err := d.AttachShadow(host, mode)
		if err != nil {
			continue
		}
		for c := tpl.FirstChild; c != nil; {
			next := c.NextSibling
			tpl.RemoveChild(c)
			root.AppendChild(c)
			c = next
		}
		host.RemoveChild(tpl)
	}
}

// Render writes the document as HTML. Shadow roots are written back as
// declarative templates at the start of their host.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.renderClone(d.root))
}

// RenderNode writes a single subtree, including the shadow roots under it.
func (d *Document) RenderNode(w io.Writer, n *html.Node) error {
	return html.Render(w, d.renderClone(n))
}

// String renders the document, returning "" on error.
func (d *Document) String() string {
	var sb strings.Builder
	if err := d.Render(&sb); err != nil {
		return ""
	}
	return sb.String()
}

func (d *Document) renderClone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	if sh, ok := d.shadows[n]; ok {
		tpl := &html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Template,
			Data:     "template",
			Attr:     []html.Attribute{{Key: "shadowrootmode", Val: string(sh.mode)}},
		}
		for sc := sh.root.FirstChild; sc != nil; sc = sc.NextSibling {
			tpl.AppendChild(d.renderClone(sc))
		}
		c.AppendChild(tpl)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(d.renderClone(child))
	}
	return c
}

// isInclusiveAncestor reports whether a is b or one of b's ancestors.
// Shadow boundaries are not crossed.
func isInclusiveAncestor(a, b *html.Node) bool {
	for n := b; n != nil; n = n.Parent {
		if n == a {
			return true
		}
	}
	return false
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	Walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if c.Type == html.ElementNode && c.DataAtom == a {
			found = c
			return false
		}
		return true
	})
	return found
}
