package model

import (
	"encoding/hex"
	"slices"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/blurguard/internal/conceal"
	"github.com/nao1215/blurguard/internal/pattern"
	"github.com/nao1215/blurguard/internal/settings"
)

// fingerprintLength is the number of hex digits kept from the digest.
const fingerprintLength = 16

// UnitRecord describes one concealment unit in a rendered document.
type UnitRecord struct {
	// Kind is the match kind ("email", "ipv4", "ipv6").
	Kind string `json:"kind"`

	// Group is the setting group governing the kind ("email", "ip").
	Group string `json:"group"`

	// State is the reveal state ("hidden", "armed", "revealed").
	State string `json:"state"`

	// DisabledBySetting is set when the unit is revealed because its kind
	// is switched off.
	DisabledBySetting bool `json:"disabled_by_setting"`

	// InShadowRoot is set for units inside a shadow root.
	InShadowRoot bool `json:"in_shadow_root"`

	// Fingerprint identifies the concealed value without revealing it.
	// Equal values of the same kind share a fingerprint.
	Fingerprint string `json:"fingerprint"`
}

// NewUnitRecord builds the record of u.
func NewUnitRecord(u conceal.Unit, inShadowRoot bool) UnitRecord {
	return UnitRecord{
		Kind:              u.Kind.String(),
		Group:             string(u.Kind.Group()),
		State:             u.State.String(),
		DisabledBySetting: u.DisabledBySetting,
		InShadowRoot:      inShadowRoot,
		Fingerprint:       Fingerprint(u.Kind, u.OriginalText),
	}
}

// Fingerprint returns a truncated SHA3-256 digest of kind and text.
func Fingerprint(kind pattern.Kind, text string) string {
	sum := sha3.Sum256([]byte(kind.String() + ":" + text))
	return hex.EncodeToString(sum[:])[:fingerprintLength]
}

// DocumentReport is the result of processing one document.
type DocumentReport struct {
	// Path is the input file.
	Path string `json:"path"`

	// DateProcessed is when processing started.
	DateProcessed time.Time `json:"date_processed"`

	// Duration is how long processing took.
	Duration time.Duration `json:"duration_ns"`

	// Settings are the flags in effect when the document was rendered.
	Settings settings.Settings `json:"settings"`

	// TextNodes is the number of text nodes examined across all scans.
	TextNodes int `json:"text_nodes"`

	// Rewritten is the number of text nodes replaced by concealment markup.
	Rewritten int `json:"rewritten"`

	// ShadowRoots is the number of shadow roots in the rendered document.
	ShadowRoots int `json:"shadow_roots"`

	// ReplaySteps is the number of replay script steps that completed.
	ReplaySteps int `json:"replay_steps,omitempty"`

	// Units lists every unit in the rendered document, in document order.
	Units []UnitRecord `json:"units,omitempty"`

	// Steps lists the pipeline steps that ran, in order.
	Steps []string `json:"steps,omitempty"`

	// Output is where the rendered document was written.
	Output string `json:"output,omitempty"`

	// TimedOut indicates the session hit its deadline.
	TimedOut bool `json:"timed_out"`

	// Error contains any error message if processing failed.
	Error string `json:"error,omitempty"`
}

// NewDocumentReport creates an empty report for path.
func NewDocumentReport(path string) *DocumentReport {
	return &DocumentReport{
		Path:          path,
		DateProcessed: time.Now(),
	}
}

// TotalUnits returns the number of units.
func (r *DocumentReport) TotalUnits() int {
	return len(r.Units)
}

// HasUnits reports whether the document has any unit.
func (r *DocumentReport) HasUnits() bool {
	return len(r.Units) > 0
}

// Failed reports whether processing ended with an error.
func (r *DocumentReport) Failed() bool {
	return r.Error != ""
}

// CountByKind returns unit counts keyed by kind name.
func (r *DocumentReport) CountByKind() map[string]int {
	counts := make(map[string]int)
	for _, u := range r.Units {
		counts[u.Kind]++
	}
	return counts
}

// CountByState returns unit counts keyed by state name.
func (r *DocumentReport) CountByState() map[string]int {
	counts := make(map[string]int)
	for _, u := range r.Units {
		counts[u.State]++
	}
	return counts
}

// Exposed returns the number of units whose content is visible.
func (r *DocumentReport) Exposed() int {
	n := 0
	for _, u := range r.Units {
		if u.State == conceal.Revealed.String() {
			n++
		}
	}
	return n
}

// DistinctValues returns the number of distinct fingerprints.
func (r *DocumentReport) DistinctValues() int {
	seen := make([]string, 0, len(r.Units))
	for _, u := range r.Units {
		seen = append(seen, u.Fingerprint)
	}
	slices.Sort(seen)
	return len(slices.Compact(seen))
}

// KindNames returns every kind name in matching priority order.
func KindNames() []string {
	names := make([]string, len(pattern.Kinds))
	for i, k := range pattern.Kinds {
		names[i] = k.String()
	}
	return names
}

// StateNames returns every state name in transition order.
func StateNames() []string {
	return []string{
		conceal.Hidden.String(),
		conceal.Armed.String(),
		conceal.Revealed.String(),
	}
}
