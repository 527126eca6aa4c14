// Package conceal implements the per-match concealment unit: a small state
// machine and its markup.
//
// A unit starts Hidden. The first activation arms it (a warning shows on
// the indicator), the second reveals it, and the re-hide glyph returns it
// to Hidden with the arming reset. Settings broadcasts force units of a
// disabled kind to Revealed and flag them, and force them back to Hidden
// when their kind is enabled again. No transition touches the original
// text.
package conceal

import (
	"github.com/nao1215/blurguard/internal/pattern"
	"github.com/nao1215/blurguard/internal/settings"
)

// State is the reveal state of a unit.
type State int

const (
	// Hidden is the initial state; the content is obscured.
	Hidden State = iota

	// Armed follows one activation; still obscured, warning shown.
	Armed

	// Revealed shows the content.
	Revealed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Armed:
		return "armed"
	case Revealed:
		return "revealed"
	default:
		return "unknown"
	}
}

// Unit is the state of one concealed match.
type Unit struct {
	Kind              pattern.Kind
	OriginalText      string
	State             State
	DisabledBySetting bool
}

// NewUnit returns a Hidden unit for a match.
func NewUnit(m pattern.Match) Unit {
	return Unit{Kind: m.Kind, OriginalText: m.Text, State: Hidden}
}

// Activate applies a primary activation (surface or indicator).
func (u Unit) Activate() Unit {
	switch u.State {
	case Hidden:
		u.State = Armed
	case Armed:
		u.State = Revealed
	}
	return u
}

// Rehide applies the re-hide activation. Only a Revealed unit changes.
func (u Unit) Rehide() Unit {
	if u.State == Revealed {
		u.State = Hidden
	}
	return u
}

// ApplySettings re-evaluates the unit under the settings of a broadcast.
//
// A kind that next does not hide is Revealed with the disabled flag set.
// A kind that next hides is Hidden with the flag cleared, whatever its
// state was, so every broadcast also undoes earlier reveals.
func (u Unit) ApplySettings(next settings.Settings) Unit {
	if !next.Hides(u.Kind) {
		u.State = Revealed
		u.DisabledBySetting = true
		return u
	}
	u.State = Hidden
	u.DisabledBySetting = false
	return u
}

// Concealed reports whether the content is currently obscured.
func (u Unit) Concealed() bool {
	return u.State != Revealed
}
