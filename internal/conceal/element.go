package conceal

import (
	"math"
	"strconv"

	"golang.org/x/net/html"

	"github.com/nao1215/blurguard/internal/dom"
	"github.com/nao1215/blurguard/internal/pattern"
)

// Markup contract. Stylesheets key off these names.
const (
	ClassUnit            = "sb-wrapper"
	ClassSurface         = "sb-blurred"
	ClassSurfaceRevealed = "sb-revealed"
	ClassRevealed        = "revealed"
	ClassIndicator       = "sb-eye-icon"
	ClassWarning         = "warning"
	ClassRehide          = "sb-reblur-icon"
	ClassDisabled        = "disabled-by-setting"
	AttrKind             = "data-kind"
	AttrGroup            = "data-type"
	BlurRadiusProperty   = "--blur-radius"
	RehideTitle          = "Hide content"
)

// Selector matches unit wrappers.
const Selector = "span." + ClassUnit

// Role is the part of a unit a node plays.
type Role int

const (
	// RoleNone is any node that is not a unit part.
	RoleNone Role = iota

	// RoleSurface is the span holding the concealed text.
	RoleSurface

	// RoleIndicator is the eye glyph; activating it activates the surface.
	RoleIndicator

	// RoleRehide is the glyph that hides a revealed unit again.
	RoleRehide
)

// NewElement builds the wrapper markup for u:
//
//	<span class="sb-wrapper" data-kind="email" data-type="email">
//	  <span class="sb-blurred" style="--blur-radius: 5.6px">a@b.com</span>
//	  <span class="sb-eye-icon"></span>
//	  <span class="sb-reblur-icon" title="Hide content"></span>
//	</span>
//
// The only text node inside is the original text, so the wrapper's text
// content equals u.OriginalText.
func NewElement(u Unit, blurRadius float64) *html.Node {
	wrapper := dom.NewElement("span",
		"class", ClassUnit,
		AttrKind, u.Kind.String(),
		AttrGroup, string(u.Kind.Group()),
	)

	surface := dom.NewElement("span", "class", ClassSurface)
	dom.SetStyleProperty(surface, BlurRadiusProperty, FormatPx(blurRadius))
	surface.AppendChild(dom.NewText(u.OriginalText))

	indicator := dom.NewElement("span", "class", ClassIndicator)
	rehide := dom.NewElement("span", "class", ClassRehide, "title", RehideTitle)

	wrapper.AppendChild(surface)
	wrapper.AppendChild(indicator)
	wrapper.AppendChild(rehide)

	Store(wrapper, u)
	return wrapper
}

// FormatPx formats a pixel length with at most two decimals.
func FormatPx(px float64) string {
	return strconv.FormatFloat(math.Round(px*100)/100, 'f', -1, 64) + "px"
}

// IsUnit reports whether n is a unit wrapper.
func IsUnit(n *html.Node) bool {
	return dom.HasClass(n, ClassUnit)
}

// Enclosing returns the unit wrapper containing n (n included), or nil.
func Enclosing(n *html.Node) *html.Node {
	return dom.Closest(n, IsUnit)
}

// RoleOf returns the part of a unit that n is, or RoleNone.
func RoleOf(n *html.Node) Role {
	if n == nil || n.Type != html.ElementNode || !IsUnit(n.Parent) {
		return RoleNone
	}
	switch {
	case dom.HasClass(n, ClassSurface):
		return RoleSurface
	case dom.HasClass(n, ClassIndicator):
		return RoleIndicator
	case dom.HasClass(n, ClassRehide):
		return RoleRehide
	default:
		return RoleNone
	}
}

// Parts returns the surface, indicator and re-hide children of a unit
// wrapper. Missing parts are nil.
func Parts(wrapper *html.Node) (surface, indicator, rehide *html.Node) {
	for c := wrapper.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case dom.HasClass(c, ClassSurface):
			surface = c
		case dom.HasClass(c, ClassIndicator):
			indicator = c
		case dom.HasClass(c, ClassRehide):
			rehide = c
		}
	}
	return surface, indicator, rehide
}

// Load reads the unit state back from its wrapper. ok is false when the
// node is not a well-formed unit.
func Load(wrapper *html.Node) (u Unit, ok bool) {
	if !IsUnit(wrapper) {
		return Unit{}, false
	}
	surface, indicator, _ := Parts(wrapper)
	if surface == nil {
		return Unit{}, false
	}
	kindName, _ := dom.Attr(wrapper, AttrKind)
	kind, err := pattern.ParseKind(kindName)
	if err != nil {
		return Unit{}, false
	}

	u = Unit{
		Kind:              kind,
		OriginalText:      dom.TextContent(surface),
		DisabledBySetting: dom.HasClass(wrapper, ClassDisabled),
	}
	switch {
	case dom.HasClass(wrapper, ClassRevealed):
		u.State = Revealed
	case indicator != nil && dom.HasClass(indicator, ClassWarning):
		u.State = Armed
	default:
		u.State = Hidden
	}
	return u, true
}

// Store writes u's state into the wrapper's class lists. The text is left
// untouched.
func Store(wrapper *html.Node, u Unit) {
	surface, indicator, _ := Parts(wrapper)
	dom.ToggleClass(wrapper, ClassRevealed, u.State == Revealed)
	dom.ToggleClass(wrapper, ClassDisabled, u.DisabledBySetting)
	if surface != nil {
		dom.ToggleClass(surface, ClassSurfaceRevealed, u.State == Revealed)
	}
	if indicator != nil {
		dom.ToggleClass(indicator, ClassWarning, u.State == Armed)
	}
}

// HandleActivation applies a pointer activation on target. Activating the
// surface or indicator advances the unit; activating the re-hide glyph
// hides it. handled is false when target is not a unit part.
func HandleActivation(target *html.Node) (u Unit, handled bool) {
	if target != nil && target.Type == html.TextNode {
		target = target.Parent
	}
	role := RoleOf(target)
	if role == RoleNone {
		return Unit{}, false
	}
	wrapper := target.Parent
	u, ok := Load(wrapper)
	if !ok {
		return Unit{}, false
	}
	switch role {
	case RoleSurface, RoleIndicator:
		u = u.Activate()
	case RoleRehide:
		u = u.Rehide()
	}
	Store(wrapper, u)
	return u, true
}
