// Package settings holds the two concealment flags and the bridge that
// carries changes to running engines.
//
// A Settings value is an immutable snapshot. Engines receive a new snapshot
// for every broadcast instead of having fields mutated under them, and each
// snapshot carries a version so later code can tell which one it acted on.
package settings

import (
	"context"
	"fmt"

	"github.com/nao1215/blurguard/internal/pattern"
)

// Store keys.
const (
	KeyHideEmails = "hideEmails"
	KeyHideIps    = "hideIps"
)

// Keys lists every key the engine reads.
var Keys = []string{KeyHideEmails, KeyHideIps}

// Settings is one snapshot of the concealment flags.
type Settings struct {
	HideEmails bool   `json:"hideEmails" yaml:"hideEmails"`
	HideIps    bool   `json:"hideIps" yaml:"hideIps"`
	Version    uint64 `json:"-" yaml:"-"`
}

// Default returns the settings used when the store has no values.
func Default() Settings {
	return Settings{HideEmails: true, HideIps: true}
}

// Next returns a new snapshot with the given flags and a higher version.
func (s Settings) Next(hideEmails, hideIps bool) Settings {
	return Settings{
		HideEmails: hideEmails,
		HideIps:    hideIps,
		Version:    s.Version + 1,
	}
}

// AnyEnabled reports whether at least one flag is on. When it is false the
// engine does not scan at all.
func (s Settings) AnyEnabled() bool {
	return s.HideEmails || s.HideIps
}

// Hides reports whether matches of kind are concealed under s.
func (s Settings) Hides(kind pattern.Kind) bool {
	switch kind.Group() {
	case pattern.GroupEmail:
		return s.HideEmails
	case pattern.GroupIP:
		return s.HideIps
	default:
		return false
	}
}

// Kinds returns the set of kinds concealed under s.
func (s Settings) Kinds() pattern.KindSet {
	var set pattern.KindSet
	for _, k := range pattern.Kinds {
		if s.Hides(k) {
			set = set.With(k)
		}
	}
	return set
}

// Values returns the flags as store values.
func (s Settings) Values() map[string]bool {
	return map[string]bool{
		KeyHideEmails: s.HideEmails,
		KeyHideIps:    s.HideIps,
	}
}

// String formats the snapshot for logs.
func (s Settings) String() string {
	return fmt.Sprintf("hideEmails=%t hideIps=%t version=%d", s.HideEmails, s.HideIps, s.Version)
}

// FromValues builds a snapshot from store values. Missing keys are true.
func FromValues(values map[string]bool) Settings {
	s := Default()
	if v, ok := values[KeyHideEmails]; ok {
		s.HideEmails = v
	}
	if v, ok := values[KeyHideIps]; ok {
		s.HideIps = v
	}
	return s
}

// Store is the key-value settings store. Implementations must be safe for
// concurrent use; the engine reads from a goroutine of its own.
type Store interface {
	// Get returns the stored values for keys. Keys that were never set are
	// absent from the result.
	Get(ctx context.Context, keys ...string) (map[string]bool, error)

	// Set writes values.
	Set(ctx context.Context, values map[string]bool) error
}

// Load reads both flags from store, defaulting absent ones to true.
func Load(ctx context.Context, store Store) (Settings, error) {
	values, err := store.Get(ctx, Keys...)
	if err != nil {
		return Default(), fmt.Errorf("failed to load settings: %w", err)
	}
	return FromValues(values), nil
}
