package dom

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultFontSize is the user-agent root font size in CSS pixels.
const DefaultFontSize = 16.0

// Declaration is one property: value pair of an inline style attribute.
type Declaration struct {
	Property string
	Value    string
}

// ParseDeclarations splits an inline style attribute into declarations.
// Property names are lowercased; empty and malformed entries are dropped.
func ParseDeclarations(style string) []Declaration {
	var decls []Declaration
	for _, part := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if name == "" || value == "" {
			continue
		}
		decls = append(decls, Declaration{Property: name, Value: value})
	}
	return decls
}

// FormatDeclarations is the inverse of ParseDeclarations.
func FormatDeclarations(decls []Declaration) string {
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d.Property + ": " + d.Value
	}
	return strings.Join(parts, "; ")
}

// StyleProperty returns the last inline declaration of property on n.
func StyleProperty(n *html.Node, property string) (string, bool) {
	style, ok := Attr(n, "style")
	if !ok {
		return "", false
	}
	property = strings.ToLower(property)
	var (
		value string
		found bool
	)
	for _, d := range ParseDeclarations(style) {
		if d.Property == property {
			value, found = d.Value, true
		}
	}
	return value, found
}

// SetStyleProperty sets an inline declaration on n, replacing any existing
// declaration of the same property. Custom properties keep their case.
func SetStyleProperty(n *html.Node, property, value string) {
	style, _ := Attr(n, "style")
	decls := ParseDeclarations(style)
	key := strings.ToLower(property)
	replaced := false
	for i := range decls {
		if decls[i].Property == key {
			decls[i].Value = value
			replaced = true
		}
	}
	if !replaced {
		decls = append(decls, Declaration{Property: property, Value: value})
	}
	SetAttr(n, "style", FormatDeclarations(decls))
}

// uaFontScale holds user-agent font-size defaults relative to the parent.
var uaFontScale = map[atom.Atom]float64{
	atom.H1:    2,
	atom.H2:    1.5,
	atom.H3:    1.17,
	atom.H5:    0.83,
	atom.H6:    0.67,
	atom.Small: 1 / 1.2,
	atom.Big:   1.2,
	atom.Sub:   0.83,
	atom.Sup:   0.83,
}

var fontKeywords = map[string]float64{
	"xx-small":  9,
	"x-small":   10,
	"small":     13,
	"medium":    16,
	"large":     18,
	"x-large":   24,
	"xx-large":  32,
	"xxx-large": 48,
}

var lengthUnits = map[string]float64{
	"px": 1,
	"pt": 96.0 / 72.0,
	"pc": 16,
	"in": 96,
	"cm": 96 / 2.54,
	"mm": 96 / 25.4,
	"q":  96 / 101.6,
}

// ComputedFontSize resolves the font size in pixels that applies to n.
// Only inline style declarations and user-agent defaults are considered;
// stylesheets are not evaluated. A size that resolves to zero yields
// DefaultFontSize. A node that is not connected to the document yields
// ErrDetached.
func (d *Document) ComputedFontSize(n *html.Node) (float64, error) {
	if n == nil || !d.IsConnected(n) {
		return 0, ErrDetached
	}

	var chain []*html.Node
	for c := n; c != nil; c = d.ComposedParent(c) {
		if c.Type == html.ElementNode {
			chain = append(chain, c)
		}
	}

	size := DefaultFontSize
	rootSize := DefaultFontSize
	for i := len(chain) - 1; i >= 0; i-- {
		size = resolveFontSize(chain[i], size, rootSize)
		if chain[i].DataAtom == atom.Html {
			rootSize = size
		}
	}
	if size <= 0 {
		return DefaultFontSize, nil
	}
	return size, nil
}

func resolveFontSize(el *html.Node, parent, root float64) float64 {
	if v, ok := StyleProperty(el, "font-size"); ok {
		if px, ok := ParseFontSize(v, parent, root); ok {
			return px
		}
	}
	if scale, ok := uaFontScale[el.DataAtom]; ok {
		return parent * scale
	}
	return parent
}

// ParseFontSize converts a CSS font-size value to pixels given the parent
// and root sizes. ok is false for values it cannot resolve.
func ParseFontSize(value string, parent, root float64) (px float64, ok bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.TrimSpace(strings.TrimSuffix(v, "!important"))
	if v == "" {
		return 0, false
	}

	if kw, ok := fontKeywords[v]; ok {
		return kw, true
	}
	switch v {
	case "smaller":
		return parent / 1.2, true
	case "larger":
		return parent * 1.2, true
	case "inherit", "unset":
		return parent, true
	case "initial":
		return DefaultFontSize, true
	}

	end := 0
	for end < len(v) && (v[end] == '.' || v[end] == '-' || v[end] == '+' || (v[end] >= '0' && v[end] <= '9')) {
		end++
	}
	num, err := strconv.ParseFloat(v[:end], 64)
	if err != nil || num < 0 {
		return 0, false
	}
	unit := v[end:]

	switch unit {
	case "em":
		return num * parent, true
	case "rem":
		return num * root, true
	case "%":
		return num * parent / 100, true
	case "ex", "ch":
		return num * parent / 2, true
	case "":
		// Unitless zero is the only valid unitless length.
		if num == 0 {
			return 0, true
		}
		return 0, false
	}
	if factor, ok := lengthUnits[unit]; ok {
		return num * factor, true
	}
	return 0, false
}
